package workers

import (
	"context"
	"log/slog"
	"time"

	"guidance-lab/domain"
)

// Pulse is the presence operation a heartbeat loop needs. Implemented by
// services.PresenceService.
type Pulse interface {
	Heartbeat(ctx context.Context, caller domain.Identity, agentID string) error
}

// HeartbeatWorker keeps one agent's presence fresh while their client is
// active. Missing a beat has no cancellation semantics: the presence row
// simply expires and the agent reads as offline until the next Activate.
type HeartbeatWorker struct {
	log      *slog.Logger
	presence Pulse
	agent    domain.Identity
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, presence Pulse, agent domain.Identity, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, presence: presence, agent: agent, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence heartbeat", "agent", w.agent.ID)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.presence.Heartbeat(ctx, w.agent, w.agent.ID); err != nil {
				w.log.Warn("Heartbeat not applied", "agent", w.agent.ID, "err", err)
			}
		}
	}
}
