package runtime

import (
	"context"
	"log/slog"
	"time"

	"guidance-lab/auth"
	"guidance-lab/contract"
	"guidance-lab/domain"
	"guidance-lab/domain/event"
	"guidance-lab/moderation"
	"guidance-lab/observability"
	"guidance-lab/repositories"
	"guidance-lab/runtime/workers"
	"guidance-lab/search"
	"guidance-lab/services"

	"github.com/google/uuid"
)

// Repos groups the persistence layer a Core is built on.
type Repos struct {
	Sessions      repositories.ISessionRepository
	Messages      repositories.IMessageRepository
	Notifications repositories.INotificationRepository
	Presence      repositories.IPresenceRepository
	Availability  repositories.IAvailabilityRepository
	Stats         repositories.IStatsRepository
}

// Settings carries the tunables the Core needs from configuration.
type Settings struct {
	BufferSize        int
	NotificationLimit int
	SinkTimeout       time.Duration
	PushTimeout       time.Duration
	OperationTimeout  time.Duration
	PresenceStaleness time.Duration
	HeartbeatInterval time.Duration
	MetricInterval    time.Duration
}

// Core is the coordination surface a front end mounts: every operation a
// client can perform lives on one of its services, and Start runs the
// event pipeline that fans writes out to live subscribers and the
// notification dispatcher.
type Core struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	monitoring *observability.MonitoringManager

	Sessions      *services.SessionService
	Bookings      *services.BookingService
	Messages      *services.MessageService
	Presence      *services.PresenceService
	Notifications *services.NotificationService
	Auth          *auth.Authenticator

	events     chan event.DomainEvent
	notifierCh chan event.DomainEvent
	statsCh    chan event.DomainEvent

	repos    Repos
	settings Settings
}

func NewCore(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	monitoring *observability.MonitoringManager,
	repos Repos,
	index *search.Index,
	moderator *moderation.Moderator,
	authenticator *auth.Authenticator,
	settings Settings,
) *Core {
	events := make(chan event.DomainEvent, settings.BufferSize)
	notifierCh := make(chan event.DomainEvent, settings.BufferSize)
	statsCh := make(chan event.DomainEvent, settings.BufferSize)

	messages := services.NewMessageService(log, repos.Sessions, repos.Messages, repos.Presence, moderator, monitoring, events)
	sessions := services.NewSessionService(log, repos.Sessions, repos.Stats, messages, index, monitoring, events)
	bookings := services.NewBookingService(log, repos.Sessions, repos.Availability, monitoring, events)
	presence := services.NewPresenceService(log, repos.Presence, monitoring, settings.PresenceStaleness)
	notifications := services.NewNotificationService(log, repos.Notifications, registry, monitoring,
		settings.PushTimeout, settings.NotificationLimit)

	return &Core{
		log:           log,
		supervisor:    supervisor,
		registry:      registry,
		monitoring:    monitoring,
		Sessions:      sessions,
		Bookings:      bookings,
		Messages:      messages,
		Presence:      presence,
		Notifications: notifications,
		Auth:          authenticator,
		events:        events,
		notifierCh:    notifierCh,
		statsCh:       statsCh,
		repos:         repos,
		settings:      settings,
	}
}

// Watch registers a live sink for one session's event stream.
func (c *Core) Watch(watcherID string, sessionID uuid.UUID, sink contract.EventSink) {
	c.registry.WatchSession(watcherID, sessionID, sink)
}

func (c *Core) Unwatch(watcherID string, sessionID uuid.UUID) {
	c.registry.UnwatchSession(watcherID, sessionID)
}

// WatchAgent registers a live sink for an agent's notification pushes.
func (c *Core) WatchAgent(watcherID, agentID string, sink contract.EventSink) {
	c.registry.WatchAgent(watcherID, agentID, sink)
}

func (c *Core) UnwatchAgent(watcherID, agentID string) {
	c.registry.UnwatchAgent(watcherID, agentID)
}

// OpContext bounds one operation with the configured request-level
// timeout; an expired budget surfaces as ErrTimeout from the service.
func (c *Core) OpContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.settings.OperationTimeout)
}

// StartHeartbeat keeps one agent's presence fresh until ctx cancels.
// Called when an agent's client connects; the worker runs under the
// supervisor like every other one.
func (c *Core) StartHeartbeat(ctx context.Context, agent domain.Identity) {
	worker := workers.NewHeartbeatWorker(c.log, c.Presence, agent, c.settings.HeartbeatInterval)
	c.supervisor.Start(ctx, worker)
}

// Start registers the pipeline workers with the supervisor and blocks
// until the context cancels or Stop is called.
func (c *Core) Start(ctx context.Context) {
	c.supervisor.Add(
		workers.NewEventFanout(c.log, c.registry, c.events, c.notifierCh, c.statsCh, c.settings.SinkTimeout),
		workers.NewNotifierWorker(c.log, c.notifierCh, c.Notifications, c.repos.Sessions),
		workers.NewStatsWorker(c.log, c.statsCh, c.repos.Stats),
		workers.NewHealthMonitoringWorker(c.log, c.monitoring, c.settings.MetricInterval),
	)

	c.log.Info("Starting guidance core and all supervised workers")
	c.supervisor.Run(ctx)
}

func (c *Core) Stop() {
	c.supervisor.Stop()
}
