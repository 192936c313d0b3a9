//go:generate go run go.uber.org/mock/mockgen -source=notification_service.go -destination=../mocks/mock_notification_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/contract"
	"guidance-lab/domain"
	"guidance-lab/domain/event"
	errs "guidance-lab/errors"
	"guidance-lab/observability"
	"guidance-lab/repositories"

	"github.com/google/uuid"
)

type INotificationService interface {
	Dispatch(ctx context.Context, agentID string, typ domain.NotificationType,
		title, message string, sessionID *uuid.UUID) (domain.Notification, error)
	List(ctx context.Context, caller domain.Identity, agentID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, caller domain.Identity, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, caller domain.Identity, agentID string) (int, error)
}

type NotificationService struct {
	log           *slog.Logger
	notifications repositories.INotificationRepository
	registry      contract.IRegistry
	monitoring    *observability.MonitoringManager
	pushTimeout   time.Duration
	defaultLimit  int
	now           func() time.Time
}

func NewNotificationService(
	log *slog.Logger,
	notifications repositories.INotificationRepository,
	registry contract.IRegistry,
	monitoring *observability.MonitoringManager,
	pushTimeout time.Duration,
	defaultLimit int,
) *NotificationService {
	return &NotificationService{
		log:           log,
		notifications: notifications,
		registry:      registry,
		monitoring:    monitoring,
		pushTimeout:   pushTimeout,
		defaultLimit:  defaultLimit,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch writes the durable row first, then attempts a best-effort push
// to any live subscriber of the agent. A failed or absent push never rolls
// the row back; the agent finds it on their next List.
func (n *NotificationService) Dispatch(ctx context.Context, agentID string, typ domain.NotificationType,
	title, message string, sessionID *uuid.UUID) (domain.Notification, error) {
	if agentID == "" {
		return domain.Notification{}, errs.Validationf("notification needs a target agent")
	}
	notification := domain.Notification{
		ID:        uuid.New(),
		AgentID:   agentID,
		Type:      typ,
		Title:     title,
		Message:   message,
		SessionID: sessionID,
		CreatedAt: n.now(),
	}
	if err := n.notifications.Store(notification); err != nil {
		return domain.Notification{}, err
	}
	n.monitoring.IncrNotificationsDispatched()

	for _, sink := range n.registry.SinksForAgent(agentID) {
		pushCtx, cancel := context.WithTimeout(ctx, n.pushTimeout)
		if err := sink.Consume(pushCtx, event.NotificationCreated{Notification: notification}); err != nil {
			n.monitoring.IncrPushFailures()
			n.log.Warn("Live push failed, row remains queryable", "agent", agentID, "err", err)
		}
		cancel()
	}
	return notification, nil
}

func (n *NotificationService) List(ctx context.Context, caller domain.Identity, agentID string, limit int) ([]domain.Notification, error) {
	if err := budget(ctx); err != nil {
		return nil, err
	}
	if !caller.CanManage(agentID) {
		return nil, fmt.Errorf("%w: feed of %s is agent or manager owned", errs.ErrForbidden, agentID)
	}
	if limit <= 0 {
		limit = n.defaultLimit
	}
	return n.notifications.List(agentID, limit)
}

func (n *NotificationService) MarkRead(ctx context.Context, caller domain.Identity, notificationID uuid.UUID) error {
	if err := budget(ctx); err != nil {
		return err
	}
	if caller.Role == domain.RoleUser {
		return fmt.Errorf("%w: notifications are agent facing", errs.ErrForbidden)
	}
	return n.notifications.MarkRead(notificationID)
}

func (n *NotificationService) MarkAllRead(ctx context.Context, caller domain.Identity, agentID string) (int, error) {
	if err := budget(ctx); err != nil {
		return 0, err
	}
	if !caller.CanManage(agentID) {
		return 0, fmt.Errorf("%w: feed of %s is agent or manager owned", errs.ErrForbidden, agentID)
	}
	return n.notifications.MarkAllRead(agentID)
}
