package workers

import (
	"context"
	"fmt"
	"log/slog"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	"guidance-lab/repositories"

	"github.com/google/uuid"
)

// Dispatcher turns one event into a durable notification row plus a
// best-effort live push. Implemented by services.NotificationService.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentID string, typ domain.NotificationType,
		title, message string, sessionID *uuid.UUID) (domain.Notification, error)
}

// NotifierWorker consumes the fanned-out event stream and produces the
// agent-facing notifications. Running it off the request path keeps
// dispatch latency away from the operation that caused the event, while
// the blocking hand-off from the fanout preserves per-agent ordering.
type NotifierWorker struct {
	log        *slog.Logger
	events     <-chan event.DomainEvent
	dispatcher Dispatcher
	sessions   repositories.ISessionRepository
}

func NewNotifierWorker(
	log *slog.Logger,
	events <-chan event.DomainEvent,
	dispatcher Dispatcher,
	sessions repositories.ISessionRepository,
) *NotifierWorker {
	return &NotifierWorker{log: log, events: events, dispatcher: dispatcher, sessions: sessions}
}

func (w *NotifierWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping notifier")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, evt); err != nil {
				w.log.Error("Notification dispatch failed", "err", err)
			}
		}
	}
}

func (w *NotifierWorker) handle(ctx context.Context, evt event.DomainEvent) error {
	switch e := evt.(type) {
	case event.AgentAssigned:
		_, err := w.dispatcher.Dispatch(ctx, e.AgentID, domain.NotifySessionUpdate,
			"Session assigned",
			fmt.Sprintf("Session %s is now yours", e.Number),
			ptr(e.SessionID))
		return err

	case event.SlotBooked:
		_, err := w.dispatcher.Dispatch(ctx, e.AgentID, domain.NotifySessionUpdate,
			"Slot booked",
			fmt.Sprintf("Session %s confirmed for %s", e.Number,
				e.ScheduledAt.Format("Mon Jan 2 15:04")),
			ptr(e.SessionID))
		return err

	case event.SessionTransitioned:
		if e.AgentID == "" {
			return nil
		}
		_, err := w.dispatcher.Dispatch(ctx, e.AgentID, domain.NotifySessionUpdate,
			"Session updated",
			fmt.Sprintf("Session %s moved from %s to %s", e.Number, e.From, e.To),
			ptr(e.SessionID))
		return err

	case event.MessagePosted:
		// Agent-authored messages reach the requester through live
		// session watchers; durable rows only target agents.
		if e.SenderType != domain.SenderUser {
			return nil
		}
		session, err := w.sessions.Get(e.SessionID)
		if err != nil {
			return err
		}
		if !session.Assigned() {
			return nil
		}
		_, err = w.dispatcher.Dispatch(ctx, session.AssignedAgentID, domain.NotifyNewMessage,
			"New message",
			fmt.Sprintf("New message in session %s", session.Number),
			ptr(e.SessionID))
		return err

	case event.FeedbackRequested:
		_, err := w.dispatcher.Dispatch(ctx, e.AgentID, domain.NotifyFeedbackRequest,
			"Feedback requested",
			fmt.Sprintf("Feedback solicitation sent for session %s", e.Number),
			ptr(e.SessionID))
		return err
	}
	return nil
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
