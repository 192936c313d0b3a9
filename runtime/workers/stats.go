package workers

import (
	"context"
	"log/slog"
	"time"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	"guidance-lab/repositories"
)

// StatsWorker refreshes the per-agent completed-session aggregate whenever
// a session reaches a terminal state. The aggregate is eventually
// consistent with the transition that caused it; a dropped event is healed
// by the next recomputation since counting always restarts from the
// session rows.
type StatsWorker struct {
	log    *slog.Logger
	events <-chan event.DomainEvent
	stats  repositories.IStatsRepository
}

func NewStatsWorker(log *slog.Logger, events <-chan event.DomainEvent, stats repositories.IStatsRepository) *StatsWorker {
	return &StatsWorker{log: log, events: events, stats: stats}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats worker")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			transition, isTransition := evt.(event.SessionTransitioned)
			if !isTransition || transition.AgentID == "" {
				continue
			}
			if transition.To != domain.StatusCompleted && transition.To != domain.StatusCancelled {
				continue
			}
			if _, err := w.stats.Recompute(transition.AgentID, time.Now().UTC()); err != nil {
				w.log.Error("Stats recomputation failed", "agent", transition.AgentID, "err", err)
			}
		}
	}
}
