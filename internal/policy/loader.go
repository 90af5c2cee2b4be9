package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	"marquee/internal/models"
)

// Loader fetches the policy source and holds the current sanitized Policy.
// Load never fails: a missing or unparseable source falls back to the
// built-in defaults wholesale and the failure shows up as a validation
// issue instead of an error.
type Loader struct {
	source string
	client *http.Client

	mu       sync.RWMutex
	policy   Policy
	hash     string
	issues   []string
	loadedAt time.Time
}

func NewLoader(source string) *Loader {
	return &Loader{
		source: source,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: Defaults(),
		hash:   Hash(Defaults()),
	}
}

// Load re-fetches and re-sanitizes the policy source, replacing the current
// policy. Safe to call at any time (hot reload).
func (l *Loader) Load(ctx context.Context) Policy {
	pol, issues := l.loadOnce(ctx)
	hash := Hash(pol)

	l.mu.Lock()
	l.policy = pol
	l.hash = hash
	l.issues = issues
	l.loadedAt = time.Now()
	l.mu.Unlock()

	if len(issues) > 0 {
		log.Printf("[policy] loaded %s with %d validation issue(s)", l.source, len(issues))
	}
	return pol
}

func (l *Loader) loadOnce(ctx context.Context) (Policy, []string) {
	data, err := l.fetch(ctx)
	if err != nil {
		return Defaults(), []string{fmt.Sprintf("policy source unavailable (%v); using built-in defaults", err)}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Defaults(), []string{fmt.Sprintf("policy source is not valid JSON (%v); using built-in defaults", err)}
	}
	return sanitize(raw)
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("policy fetch returned %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(l.source)
}

// Current returns the active policy.
func (l *Loader) Current() Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}

// CurrentHash returns the fingerprint of the active policy.
func (l *Loader) CurrentHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hash
}

// ValidationIssues returns the substitutions recorded by the last load.
func (l *Loader) ValidationIssues() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.issues))
	copy(out, l.issues)
	return out
}

func (l *Loader) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}

// ──────────────────── Sanitization ────────────────────

type issueList []string

func (il *issueList) addf(format string, args ...any) {
	*il = append(*il, fmt.Sprintf(format, args...))
}

// sanitize builds a fully-populated Policy from untrusted JSON. Every
// correction is recorded; the result never has partial or invalid fields.
func sanitize(raw map[string]any) (Policy, []string) {
	def := Defaults()
	var issues issueList
	p := Policy{}

	p.PoolSizeMovies = positiveInt(raw["poolSizeMovies"], "poolSizeMovies", def.PoolSizeMovies, &issues)
	p.PoolSizeSeries = positiveInt(raw["poolSizeSeries"], "poolSizeSeries", def.PoolSizeSeries, &issues)

	p.Slots = sanitizeSlots(raw["slots"], def.Slots, &issues)

	div := subMap(raw, "diversity")
	p.Diversity = Diversity{
		Genre:      weight(div["genre"], "diversity.genre", def.Diversity.Genre, &issues),
		Year:       weight(div["year"], "diversity.year", def.Diversity.Year, &issues),
		AntiRepeat: weight(div["antiRepeat"], "diversity.antiRepeat", def.Diversity.AntiRepeat, &issues),
	}

	rot := subMap(raw, "rotation")
	p.Rotation = Rotation{
		IntervalMinutes:      positiveInt(rot["intervalMinutes"], "rotation.intervalMinutes", def.Rotation.IntervalMinutes, &issues),
		MinPoolSize:          positiveInt(rot["minPoolSize"], "rotation.minPoolSize", def.Rotation.MinPoolSize, &issues),
		HistoryLookbackHours: positiveInt(rot["historyLookbackHours"], "rotation.historyLookbackHours", def.Rotation.HistoryLookbackHours, &issues),
	}

	tc := subMap(raw, "textClamp")
	p.TextClamp = TextClamp{
		Title:    positiveInt(tc["title"], "textClamp.title", def.TextClamp.Title, &issues),
		Subtitle: positiveInt(tc["subtitle"], "textClamp.subtitle", def.TextClamp.Subtitle, &issues),
		Summary:  positiveInt(tc["summary"], "textClamp.summary", def.TextClamp.Summary, &issues),
	}

	fb := subMap(raw, "fallback")
	p.Fallback = sanitizeFallback(fb, def.Fallback, &issues)

	lang := cast.ToString(raw["language"])
	if strings.TrimSpace(lang) == "" {
		if _, present := raw["language"]; present {
			issues.addf("language is blank; using %q", def.Language)
		}
		lang = def.Language
	}
	p.Language = lang

	cc := subMap(raw, "cache")
	p.Cache = Cache{
		TTLHours:     positiveFloat(cc["ttlHours"], "cache.ttlHours", def.Cache.TTLHours, &issues),
		GraceMinutes: nonNegativeInt(cc["graceMinutes"], "cache.graceMinutes", def.Cache.GraceMinutes, &issues),
	}

	return p, issues
}

func subMap(raw map[string]any, key string) map[string]any {
	m, err := cast.ToStringMapE(raw[key])
	if err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func positiveInt(v any, field string, def int, issues *issueList) int {
	if v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 1 {
		issues.addf("%s=%v is not a positive integer; using %d", field, v, def)
		return def
	}
	return n
}

func nonNegativeInt(v any, field string, def int, issues *issueList) int {
	if v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		issues.addf("%s=%v is not a non-negative integer; using %d", field, v, def)
		return def
	}
	return n
}

func positiveFloat(v any, field string, def float64, issues *issueList) float64 {
	if v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f <= 0 || f != f {
		issues.addf("%s=%v is not a positive number; using %g", field, v, def)
		return def
	}
	return f
}

// weight clamps a diversity weight to [0,1].
func weight(v any, field string, def float64, issues *issueList) float64 {
	if v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f != f {
		issues.addf("%s=%v is not a number; using %g", field, v, def)
		return def
	}
	if f < 0 {
		issues.addf("%s=%g below 0; clamped to 0", field, f)
		return 0
	}
	if f > 1 {
		issues.addf("%s=%g above 1; clamped to 1", field, f)
		return 1
	}
	return f
}

func sanitizeFallback(fb map[string]any, def Fallback, issues *issueList) Fallback {
	out := def
	if v, ok := fb["prefer"]; ok {
		s := cast.ToString(v)
		if kind, known := models.ParseMediaKind(s); known {
			out.Prefer = kind
		} else {
			issues.addf("fallback.prefer=%q is not one of movies/series; using %q", s, def.Prefer)
		}
	}
	if v, ok := fb["allowDuplicates"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			issues.addf("fallback.allowDuplicates=%v is not a boolean; using %v", v, def.AllowDuplicates)
		} else {
			out.AllowDuplicates = b
		}
	}
	return out
}

// sanitizeSlots parses the slot map, clamps quotas, scales an over-allocated
// set back to 1.0, and synthesizes a "random" catch-all covering whatever
// fraction remains. Slots come out in a fixed priority order with the
// catch-all last so selection is deterministic across loads.
func sanitizeSlots(v any, def []Slot, issues *issueList) []Slot {
	rawSlots, err := cast.ToStringMapE(v)
	if err != nil || len(rawSlots) == 0 {
		if v != nil {
			issues.addf("slots is not a map of slot definitions; using defaults")
		}
		return append([]Slot(nil), def...)
	}

	var slots []Slot
	var quotaSum float64
	for name, rawSlot := range rawSlots {
		sub, err := cast.ToStringMapE(rawSlot)
		if err != nil {
			issues.addf("slots.%s is not an object; ignored", name)
			continue
		}
		q, err := cast.ToFloat64E(sub["quota"])
		if err != nil || q != q || q < 0 {
			issues.addf("slots.%s.quota=%v invalid; using 0", name, sub["quota"])
			q = 0
		}
		if q > 1 {
			issues.addf("slots.%s.quota=%g above 1; clamped to 1", name, q)
			q = 1
		}
		s := Slot{Name: name, Quota: q}
		if mr, ok := sub["minRating"]; ok {
			if f, err := cast.ToFloat64E(mr); err == nil && f >= 0 {
				s.MinRating = f
			} else {
				issues.addf("slots.%s.minRating=%v invalid; ignored", name, mr)
			}
		}
		if ma, ok := sub["minAgeYears"]; ok {
			if n, err := cast.ToIntE(ma); err == nil && n >= 0 {
				s.MinAgeYears = n
			} else {
				issues.addf("slots.%s.minAgeYears=%v invalid; ignored", name, ma)
			}
		}
		if s.Name != SlotRandom {
			quotaSum += s.Quota
		}
		slots = append(slots, s)
	}
	if len(slots) == 0 {
		issues.addf("no usable slot definitions; using defaults")
		return append([]Slot(nil), def...)
	}

	// Over-allocation: scale named slots down so the catch-all still exists.
	if quotaSum > 1 {
		issues.addf("slot quotas sum to %.2f; scaled down to 1.0", quotaSum)
		for i := range slots {
			if slots[i].Name != SlotRandom {
				slots[i].Quota /= quotaSum
			}
		}
		quotaSum = 1
	}

	leftover := 1 - quotaSum
	found := false
	for i := range slots {
		if slots[i].Name == SlotRandom {
			slots[i].Quota = leftover
			found = true
		}
	}
	if !found {
		issues.addf("no catch-all slot defined; synthesized random slot with quota %.2f", leftover)
		slots = append(slots, Slot{Name: SlotRandom, Quota: leftover})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		pi, pj := slotRank(slots[i].Name), slotRank(slots[j].Name)
		if pi != pj {
			return pi < pj
		}
		return slots[i].Name < slots[j].Name
	})
	return slots
}

func slotRank(name string) int {
	if p, ok := slotPriority[name]; ok {
		return p
	}
	return 50
}
