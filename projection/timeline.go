// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and status tracking.
// Does not emit events or touch the store directly.
package projection

import (
	"context"
	"sync"

	"guidance-lab/domain"
	"guidance-lab/domain/event"

	"github.com/google/uuid"
)

// Timeline is a live, per-session view a subscriber keeps up to date by
// feeding it the session's event stream. It satisfies contract.EventSink
// so it can be registered as a session watcher directly.
type Timeline struct {
	mu        sync.Mutex
	SessionID uuid.UUID
	Status    domain.SessionStatus
	Messages  []domain.Message

	seen map[uuid.UUID]struct{}
}

func NewTimeline(sessionID uuid.UUID) *Timeline {
	return &Timeline{
		SessionID: sessionID,
		seen:      make(map[uuid.UUID]struct{}),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.SessionCreated:
		t.Status = domain.StatusPending
	case event.SessionTransitioned:
		t.Status = evt.To
	case event.MessagePosted:
		// A reconnect may replay messages already applied.
		if _, dup := t.seen[evt.ID]; dup {
			return nil
		}
		t.seen[evt.ID] = struct{}{}
		t.Messages = append(t.Messages, fromEvent(evt))
	case event.MessagesRead:
		for i := range t.Messages {
			if t.Messages[i].SenderID != evt.ReaderID {
				t.Messages[i].IsRead = true
			}
		}
	}
	return nil
}

// Snapshot returns a copy safe to render while events keep arriving.
func (t *Timeline) Snapshot() (domain.SessionStatus, []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.Messages))
	copy(out, t.Messages)
	return t.Status, out
}

func fromEvent(evt event.MessagePosted) domain.Message {
	return domain.Message{
		ID:         evt.ID,
		SessionID:  evt.SessionID,
		SenderID:   evt.SenderID,
		SenderType: evt.SenderType,
		Content:    evt.Content,
		CreatedAt:  evt.At,
	}
}
