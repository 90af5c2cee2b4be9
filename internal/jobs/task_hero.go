package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"marquee/internal/hero"
	"marquee/internal/models"
	"marquee/internal/policy"
)

// ──────── Hero Rebuild Handler ────────

type HeroRebuildHandler struct {
	orch     *hero.Orchestrator
	notifier EventNotifier
}

func NewHeroRebuildHandler(orch *hero.Orchestrator, notifier EventNotifier) *HeroRebuildHandler {
	return &HeroRebuildHandler{orch: orch, notifier: notifier}
}

func (h *HeroRebuildHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload HeroRebuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	kind, ok := models.ParseMediaKind(payload.Kind)
	if !ok {
		return fmt.Errorf("unknown media kind %q", payload.Kind)
	}

	result, err := h.orch.Rebuild(ctx, kind)
	if err == hero.ErrDisabled {
		log.Printf("Hero rebuild: pipeline disabled, skipping %s", kind)
		return nil
	}
	if err != nil {
		return fmt.Errorf("rebuild %s pool: %w", kind, err)
	}

	log.Printf("Hero rebuild: %s pool rebuilt with %d items", kind, len(result.Items))
	if h.notifier != nil {
		h.notifier.Broadcast("hero:updated", map[string]interface{}{
			"kind":       string(kind),
			"items":      len(result.Items),
			"policyHash": result.PolicyHash,
			"expiresAt":  result.ExpiresAt,
		})
	}
	return nil
}

// ──────── Policy Reload Handler ────────
// Reloads the policy source and rebuilds every pool whose hash no longer
// matches.

type PolicyReloadHandler struct {
	loader   *policy.Loader
	orch     *hero.Orchestrator
	notifier EventNotifier
}

func NewPolicyReloadHandler(loader *policy.Loader, orch *hero.Orchestrator, notifier EventNotifier) *PolicyReloadHandler {
	return &PolicyReloadHandler{loader: loader, orch: orch, notifier: notifier}
}

func (h *PolicyReloadHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	before := h.loader.CurrentHash()
	h.loader.Load(ctx)
	after := h.loader.CurrentHash()
	if before == after {
		log.Printf("Policy reload: hash unchanged (%s)", after)
		return nil
	}

	log.Printf("Policy reload: hash changed %s -> %s, rebuilding pools", before, after)
	for _, kind := range models.AllKinds() {
		if _, err := h.orch.Rebuild(ctx, kind); err != nil && err != hero.ErrDisabled {
			log.Printf("Policy reload: rebuild %s failed: %v", kind, err)
		}
	}
	if h.notifier != nil {
		h.notifier.Broadcast("policy:reloaded", map[string]interface{}{
			"policyHash": after,
			"issues":     h.loader.ValidationIssues(),
		})
	}
	return nil
}
