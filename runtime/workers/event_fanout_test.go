package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"guidance-lab/contract"
	"guidance-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recorderSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recorderSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recorderSink) all() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

// slowSink never answers; only the per-sink timeout unblocks the fanout.
type slowSink struct{}

func (slowSink) Consume(ctx context.Context, _ event.DomainEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubRegistry struct {
	contract.IRegistry
	session uuid.UUID
	sinks   []contract.EventSink
}

func (r *stubRegistry) SinksForSession(sessionID uuid.UUID) []contract.EventSink {
	if sessionID == r.session {
		return r.sinks
	}
	return nil
}

func TestEventFanout_Fanout(t *testing.T) {
	req := require.New(t)

	// Given: a watcher on one session and a permanent sink
	sessionID := uuid.New()
	watcher := &recorderSink{}
	permanent := &recorderSink{}
	registry := &stubRegistry{session: sessionID, sinks: []contract.EventSink{watcher}}
	fanout := NewEventFanout(slog.Default(), registry, nil, nil, nil, time.Second).Add(permanent)

	// When: one event for the watched session, one for another
	watched := event.MessagePosted{ID: uuid.New(), SessionID: sessionID, Content: "hello"}
	other := event.MessagePosted{ID: uuid.New(), SessionID: uuid.New(), Content: "elsewhere"}
	fanout.Fanout(context.Background(), watched)
	fanout.Fanout(context.Background(), other)

	// Then: the watcher only hears its own session, the permanent sink hears both
	req.Equal([]event.DomainEvent{watched}, watcher.all())
	req.Equal([]event.DomainEvent{watched, other}, permanent.all())
}

func TestEventFanout_SlowSinkDoesNotStarveOthers(t *testing.T) {
	req := require.New(t)

	sessionID := uuid.New()
	watcher := &recorderSink{}
	registry := &stubRegistry{session: sessionID, sinks: []contract.EventSink{watcher}}
	fanout := NewEventFanout(slog.Default(), registry, nil, nil, nil, 20*time.Millisecond).Add(slowSink{})

	evt := event.SessionCreated{SessionID: sessionID, Number: "GS-1"}
	fanout.Fanout(context.Background(), evt)

	// Fanout returned despite the blocked sink, and the watcher was served
	req.Equal([]event.DomainEvent{evt}, watcher.all())
}

func TestEventFanout_Run_ForwardsDownstream(t *testing.T) {
	req := require.New(t)

	// Given: a running fanout with a notifier reader but nobody on stats
	events := make(chan event.DomainEvent, 4)
	notifier := make(chan event.DomainEvent, 4)
	stats := make(chan event.DomainEvent)
	registry := &stubRegistry{}
	fanout := NewEventFanout(slog.Default(), registry, events, notifier, stats, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		req.NoError(fanout.Run(ctx))
		close(done)
	}()

	// When: two events flow through
	first := event.SessionCreated{SessionID: uuid.New(), Number: "GS-1"}
	second := event.SessionCreated{SessionID: uuid.New(), Number: "GS-2"}
	events <- first
	events <- second

	// Then: both reach the notifier; receiving the second proves the
	// first event's stats hand-off was dropped instead of blocking the loop
	for _, want := range []event.DomainEvent{first, second} {
		select {
		case got := <-notifier:
			req.Equal(want, got)
		case <-time.After(time.Second):
			req.Fail("event never reached the notifier channel")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("fanout should stop on context cancel")
	}
}
