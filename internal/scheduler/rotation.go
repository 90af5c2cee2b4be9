package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"marquee/internal/models"
	"marquee/internal/policy"
)

// OnRotationDue is called once per kind when a rotation tick fires.
type OnRotationDue func(kind models.MediaKind)

// Rotation periodically triggers pool rebuilds at the policy's rotation
// interval. If a policy reload changes the interval, the job is rescheduled
// on the next tick.
type Rotation struct {
	loader   *policy.Loader
	callback OnRotationDue
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration

	// Short reports whether a kind's last pool came up below the policy
	// minimum. Short pools refresh at half the normal cadence so fallback
	// entries get replaced as soon as the catalog recovers. Optional.
	Short func(kind models.MediaKind) bool
}

// New creates a rotation scheduler.
func New(loader *policy.Loader, cb OnRotationDue) *Rotation {
	return &Rotation{
		loader:   loader,
		callback: cb,
		cron:     cron.New(),
	}
}

// Start schedules the rotation job and begins the cron loop.
func (r *Rotation) Start() {
	r.interval = r.loader.Current().RotationInterval()
	r.schedule(r.interval)
	r.cron.Start()
	log.Printf("[scheduler] rotation started (interval=%s)", r.interval)
}

// Stop stops the scheduler. Running jobs finish first.
func (r *Rotation) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] rotation stopped")
}

func (r *Rotation) schedule(interval time.Duration) {
	if r.entry != 0 {
		r.cron.Remove(r.entry)
	}
	id, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), r.tick)
	if err != nil {
		log.Printf("[scheduler] schedule error: %v", err)
		return
	}
	r.entry = id
}

func (r *Rotation) tick() {
	for _, kind := range models.AllKinds() {
		r.callback(kind)
	}
	next := r.loader.Current().RotationInterval()
	if r.anyShort() {
		next = next / 2
	}
	if next != r.interval {
		log.Printf("[scheduler] rotation interval changed %s -> %s", r.interval, next)
		r.interval = next
		r.schedule(next)
	}
}

func (r *Rotation) anyShort() bool {
	if r.Short == nil {
		return false
	}
	for _, kind := range models.AllKinds() {
		if r.Short(kind) {
			return true
		}
	}
	return false
}
