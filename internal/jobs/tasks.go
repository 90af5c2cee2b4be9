package jobs

import (
	"marquee/internal/hero"
	"marquee/internal/policy"
)

// ──────── Payloads ────────

type HeroRebuildPayload struct {
	Kind string `json:"kind"`
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, orch *hero.Orchestrator, loader *policy.Loader, notifier EventNotifier) {
	q.RegisterHandler(TaskHeroRebuild, NewHeroRebuildHandler(orch, notifier))
	q.RegisterHandler(TaskPolicyReload, NewPolicyReloadHandler(loader, orch, notifier))
}
