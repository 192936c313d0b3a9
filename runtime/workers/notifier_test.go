package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"log/slog"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	errs "guidance-lab/errors"
	"guidance-lab/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type dispatchCall struct {
	agentID   string
	typ       domain.NotificationType
	title     string
	message   string
	sessionID *uuid.UUID
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *stubDispatcher) Dispatch(_ context.Context, agentID string, typ domain.NotificationType,
	title, message string, sessionID *uuid.UUID) (domain.Notification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{agentID, typ, title, message, sessionID})
	return domain.Notification{}, nil
}

func (d *stubDispatcher) all() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

type stubSessions struct {
	repositories.ISessionRepository
	session domain.Session
	err     error
}

func (s *stubSessions) Get(uuid.UUID) (domain.Session, error) {
	return s.session, s.err
}

func newNotifier(dispatcher *stubDispatcher, sessions repositories.ISessionRepository) *NotifierWorker {
	return NewNotifierWorker(slog.Default(), nil, dispatcher, sessions)
}

func TestNotifierWorker_AgentAssigned(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	sessionID := uuid.New()
	err := worker.handle(context.Background(), event.AgentAssigned{
		SessionID: sessionID, Number: "GS-7", AgentID: "agent-1",
	})

	req.NoError(err)
	calls := dispatcher.all()
	req.Len(calls, 1)
	req.Equal("agent-1", calls[0].agentID)
	req.Equal(domain.NotifySessionUpdate, calls[0].typ)
	req.Equal("Session assigned", calls[0].title)
	req.Contains(calls[0].message, "GS-7")
	req.Equal(sessionID, *calls[0].sessionID)
}

func TestNotifierWorker_SlotBooked(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	scheduled := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	err := worker.handle(context.Background(), event.SlotBooked{
		SessionID: uuid.New(), Number: "GS-7", AgentID: "agent-1", ScheduledAt: scheduled,
	})

	req.NoError(err)
	calls := dispatcher.all()
	req.Len(calls, 1)
	req.Equal("Slot booked", calls[0].title)
	req.Contains(calls[0].message, "Mon May 4 10:00")
}

func TestNotifierWorker_Transition_NoAgentNoNotification(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	err := worker.handle(context.Background(), event.SessionTransitioned{
		SessionID: uuid.New(), Number: "GS-7",
		From: domain.StatusPending, To: domain.StatusCancelled,
	})

	req.NoError(err)
	req.Empty(dispatcher.all())
}

func TestNotifierWorker_Transition(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	err := worker.handle(context.Background(), event.SessionTransitioned{
		SessionID: uuid.New(), Number: "GS-7", AgentID: "agent-1",
		From: domain.StatusConfirmed, To: domain.StatusInProgress,
	})

	req.NoError(err)
	calls := dispatcher.all()
	req.Len(calls, 1)
	req.Contains(calls[0].message, "confirmed")
	req.Contains(calls[0].message, "in_progress")
}

func TestNotifierWorker_MessagePosted_UserMessageReachesAgent(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	session := domain.Session{ID: uuid.New(), Number: "GS-7", AssignedAgentID: "agent-1"}
	worker := newNotifier(dispatcher, &stubSessions{session: session})

	err := worker.handle(context.Background(), event.MessagePosted{
		ID: uuid.New(), SessionID: session.ID,
		SenderID: "user-1", SenderType: domain.SenderUser, Content: "hello",
	})

	req.NoError(err)
	calls := dispatcher.all()
	req.Len(calls, 1)
	req.Equal("agent-1", calls[0].agentID)
	req.Equal(domain.NotifyNewMessage, calls[0].typ)
}

func TestNotifierWorker_MessagePosted_AgentMessageIsSilent(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	err := worker.handle(context.Background(), event.MessagePosted{
		ID: uuid.New(), SessionID: uuid.New(),
		SenderID: "agent-1", SenderType: domain.SenderAgent, Content: "hi",
	})

	req.NoError(err)
	req.Empty(dispatcher.all())
}

func TestNotifierWorker_MessagePosted_UnassignedSessionIsSilent(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	session := domain.Session{ID: uuid.New(), Number: "GS-7"}
	worker := newNotifier(dispatcher, &stubSessions{session: session})

	err := worker.handle(context.Background(), event.MessagePosted{
		ID: uuid.New(), SessionID: session.ID,
		SenderID: "user-1", SenderType: domain.SenderUser, Content: "anyone there?",
	})

	req.NoError(err)
	req.Empty(dispatcher.all())
}

func TestNotifierWorker_MessagePosted_LookupFailure(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, &stubSessions{err: errs.ErrNotFound})

	err := worker.handle(context.Background(), event.MessagePosted{
		ID: uuid.New(), SessionID: uuid.New(),
		SenderID: "user-1", SenderType: domain.SenderUser, Content: "hello",
	})

	req.ErrorIs(err, errs.ErrNotFound)
	req.Empty(dispatcher.all())
}

func TestNotifierWorker_FeedbackRequested(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	err := worker.handle(context.Background(), event.FeedbackRequested{
		SessionID: uuid.New(), Number: "GS-7", RequesterID: "user-1", AgentID: "agent-1",
	})

	req.NoError(err)
	calls := dispatcher.all()
	req.Len(calls, 1)
	req.Equal(domain.NotifyFeedbackRequest, calls[0].typ)
}

func TestNotifierWorker_UnhandledEventIsIgnored(t *testing.T) {
	req := require.New(t)
	dispatcher := &stubDispatcher{}
	worker := newNotifier(dispatcher, nil)

	err := worker.handle(context.Background(), event.SessionCreated{
		SessionID: uuid.New(), Number: "GS-7", RequesterID: "user-1",
	})

	req.NoError(err)
	req.Empty(dispatcher.all())
}
