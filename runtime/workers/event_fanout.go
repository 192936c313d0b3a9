package workers

import (
	"context"
	"log/slog"
	"time"

	"guidance-lab/contract"
	"guidance-lab/domain/event"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout broadcasts domain events to live subscribers after the store
// write already happened.
//
// Delivery to subscriber sinks is best-effort and at-least-once: a slow
// sink is cut off by the sink timeout and the loop moves on. Within one
// session events leave in the order services emitted them; across sessions
// there is no ordering at all.
//
// Every event is also forwarded to the notifier channel (blocking, those
// feed durable rows) and to the stats channel (non-blocking, the aggregate
// is recomputed from source and heals on the next completion anyway).
type EventFanout struct {
	log         *slog.Logger
	registry    contract.IRegistry
	events      <-chan event.DomainEvent
	notifier    chan<- event.DomainEvent
	stats       chan<- event.DomainEvent
	permanent   []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events <-chan event.DomainEvent,
	notifier chan<- event.DomainEvent,
	stats chan<- event.DomainEvent,
	sinkTimeout time.Duration,
) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		events:      events,
		notifier:    notifier,
		stats:       stats,
		sinkTimeout: sinkTimeout,
	}
}

// Add registers sinks that receive every event regardless of session.
func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.permanent = append(w.permanent, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)

			if w.notifier != nil {
				select {
				case w.notifier <- evt:
				case <-ctx.Done():
					return nil
				}
			}
			if w.stats != nil {
				select {
				case w.stats <- evt:
				default:
					w.log.Debug("Stats event dropped, recompute will catch up")
				}
			}
		}
	}
}

// Fanout delivers one event to the permanent sinks and to every live
// watcher of the event's session.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	watchers := w.registry.SinksForSession(evt.Session())
	sinks := make([]contract.EventSink, 0, len(w.permanent)+len(watchers))
	sinks = append(sinks, w.permanent...)
	sinks = append(sinks, watchers...)
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink rejected event", "err", err)
		}
		cancel()
	}
}
