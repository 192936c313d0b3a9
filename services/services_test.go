package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	"guidance-lab/observability"
	"guidance-lab/repositories"
	"guidance-lab/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// fixture wires the services over a real store in a temp dir, with a
// frozen clock so scheduling and staleness tests need no sleeping.
type fixture struct {
	sessions      *repositories.SessionRepository
	sessionSvc    *SessionService
	bookingSvc    *BookingService
	messageSvc    *MessageService
	presenceSvc   *PresenceService
	notifications *NotificationService
	registry      *runtime.Registry
	events        chan event.DomainEvent
	clock         time.Time
}

const testStaleness = 2 * time.Minute

func newFixture(t *testing.T) *fixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	sessions, err := repositories.NewSessionRepository(db, log)
	req.NoError(err)
	t.Cleanup(func() { _ = sessions.Close() })

	messages := repositories.NewMessageRepository(db, log)
	notificationRepo := repositories.NewNotificationRepository(db, log)
	presenceRepo := repositories.NewPresenceRepository(db, log, testStaleness)
	availability := repositories.NewAvailabilityRepository(db, log)
	stats := repositories.NewStatsRepository(db, log, sessions)

	monitoring := observability.NewMonitoringManager(log)
	registry := runtime.NewRegistry()
	events := make(chan event.DomainEvent, 64)

	f := &fixture{
		sessions: sessions,
		registry: registry,
		events:   events,
		clock:    time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), // a Monday morning
	}
	now := func() time.Time { return f.clock }

	f.messageSvc = NewMessageService(log, sessions, messages, presenceRepo, nil, monitoring, events)
	f.messageSvc.now = now
	f.sessionSvc = NewSessionService(log, sessions, stats, f.messageSvc, nil, monitoring, events)
	f.sessionSvc.now = now
	f.bookingSvc = NewBookingService(log, sessions, availability, monitoring, events)
	f.bookingSvc.now = now
	f.presenceSvc = NewPresenceService(log, presenceRepo, monitoring, testStaleness)
	f.presenceSvc.now = now
	f.notifications = NewNotificationService(log, notificationRepo, registry, monitoring, time.Second, 50)
	f.notifications.now = now

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// createAssigned opens a session for the requester and hands it to the
// agent, the common starting point of most scenarios.
func (f *fixture) createAssigned(t *testing.T, requester, agent domain.Identity) domain.Session {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	s, err := f.sessionSvc.Create(ctx, CreateSessionCommand{
		Requester: requester,
		Topic:     "guidance needed",
	})
	req.NoError(err)
	assigned, err := f.sessionSvc.Assign(ctx, agent, s.ID, agent.ID)
	req.NoError(err)
	return assigned
}

// openWeekdays gives the agent a 09:00-18:00 window on every weekday.
func (f *fixture) openWeekdays(t *testing.T, agent domain.Identity) {
	t.Helper()
	require.NoError(t, f.bookingSvc.SetAvailability(context.Background(), agent, agent.ID, domain.DefaultWeek(agent.ID)))
}

func (f *fixture) drainEvents() []event.DomainEvent {
	var drained []event.DomainEvent
	for {
		select {
		case e := <-f.events:
			drained = append(drained, e)
		default:
			return drained
		}
	}
}

// recordSink captures consumed events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recordSink) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordSink) all() []event.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

var (
	requester = domain.Identity{ID: "user-1", Role: domain.RoleUser}
	agent     = domain.Identity{ID: "agent-1", Role: domain.RoleAgent}
	otherUser = domain.Identity{ID: "user-2", Role: domain.RoleUser}
	manager   = domain.Identity{ID: "boss-1", Role: domain.RoleManager}
)
