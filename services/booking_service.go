//go:generate go run go.uber.org/mock/mockgen -source=booking_service.go -destination=../mocks/mock_booking_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	errs "guidance-lab/errors"
	"guidance-lab/observability"
	"guidance-lab/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IBookingService interface {
	Book(ctx context.Context, caller domain.Identity, cmd BookSlotCommand) (domain.Session, error)
	OpenSlots(ctx context.Context, agentID, date string) ([]string, error)
	SetAvailability(ctx context.Context, caller domain.Identity, agentID string, week []domain.AvailabilityWindow) error
	Week(ctx context.Context, agentID string) ([]domain.AvailabilityWindow, error)
}

type BookSlotCommand struct {
	SessionID uuid.UUID
	Date      string `validate:"required,datetime=2006-01-02"`
	Slot      string `validate:"required"`
}

type BookingService struct {
	log          *slog.Logger
	sessions     repositories.ISessionRepository
	availability repositories.IAvailabilityRepository
	monitoring   *observability.MonitoringManager
	events       chan<- event.DomainEvent
	now          func() time.Time
}

func NewBookingService(
	log *slog.Logger,
	sessions repositories.ISessionRepository,
	availability repositories.IAvailabilityRepository,
	monitoring *observability.MonitoringManager,
	events chan<- event.DomainEvent,
) *BookingService {
	return &BookingService{
		log:          log,
		sessions:     sessions,
		availability: availability,
		monitoring:   monitoring,
		events:       events,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Book reserves one discrete slot for a pending session and confirms it,
// atomically from the caller's point of view. Rejections are specific
// enough for a client to immediately offer alternatives: past instant,
// outside the agent's window, or taken by someone faster.
func (b *BookingService) Book(ctx context.Context, caller domain.Identity, cmd BookSlotCommand) (domain.Session, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, err
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Session{}, errs.Validation(err)
	}
	if !domain.CatalogSlot(cmd.Slot) {
		return domain.Session{}, errs.Validationf("%q is not a bookable slot", cmd.Slot)
	}

	day, err := domain.ParseDay(cmd.Date)
	if err != nil {
		return domain.Session{}, errs.Validation(err)
	}
	at, err := domain.CombineSlot(day, cmd.Slot)
	if err != nil {
		return domain.Session{}, errs.Validation(err)
	}

	session, err := b.sessions.Get(cmd.SessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if caller.ID != session.RequesterID && !caller.CanManage(session.AssignedAgentID) {
		return domain.Session{}, fmt.Errorf("%w: not a party of session %s", errs.ErrForbidden, session.Number)
	}
	if !session.Assigned() {
		return domain.Session{}, errs.Validationf("session %s has no assigned agent yet", session.Number)
	}

	if !at.After(b.now()) {
		return domain.Session{}, fmt.Errorf("%w: %s %s", errs.ErrPastSlot, cmd.Date, cmd.Slot)
	}
	if err := b.checkWindow(session.AssignedAgentID, day.Weekday(), cmd.Slot); err != nil {
		return domain.Session{}, err
	}

	updated, err := b.sessions.Reserve(cmd.SessionID, at)
	if err != nil {
		if errors.Is(err, errs.ErrSlotTaken) {
			b.monitoring.IncrBookingConflicts()
		}
		return domain.Session{}, err
	}

	emit(ctx, b.events, b.log, event.SlotBooked{
		SessionID:   updated.ID,
		Number:      updated.Number,
		AgentID:     updated.AssignedAgentID,
		ScheduledAt: at,
		At:          b.now(),
	})
	return updated, nil
}

// OpenSlots lists the catalog slots still bookable for the agent on the
// given day: inside their window, not yet reserved, and in the future.
// This is what a client shows after a SlotTaken rejection.
func (b *BookingService) OpenSlots(ctx context.Context, agentID, date string) ([]string, error) {
	if err := budget(ctx); err != nil {
		return nil, err
	}
	day, err := domain.ParseDay(date)
	if err != nil {
		return nil, errs.Validation(err)
	}
	window, err := b.availability.Window(agentID, day.Weekday())
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	occupied, err := b.sessions.OccupiedSlots(agentID, day)
	if err != nil {
		return nil, err
	}
	taken := lo.SliceToMap(occupied, func(slot string) (string, struct{}) {
		return slot, struct{}{}
	})

	now := b.now()
	var open []string
	for _, slot := range domain.SlotCatalog() {
		if !window.Covers(slot) {
			continue
		}
		if _, ok := taken[slot]; ok {
			continue
		}
		at, err := domain.CombineSlot(day, slot)
		if err != nil || !at.After(now) {
			continue
		}
		open = append(open, slot)
	}
	return open, nil
}

// SetAvailability replaces the agent's weekly windows wholesale. One row
// per weekday; an unavailable day must not carry times.
func (b *BookingService) SetAvailability(ctx context.Context, caller domain.Identity, agentID string, week []domain.AvailabilityWindow) error {
	if err := budget(ctx); err != nil {
		return err
	}
	if !caller.CanManage(agentID) {
		return fmt.Errorf("%w: availability of %s is agent or manager owned", errs.ErrForbidden, agentID)
	}
	seen := map[time.Weekday]bool{}
	for i := range week {
		week[i].AgentID = agentID
		if seen[week[i].Day] {
			return errs.Validationf("duplicate window for %s", week[i].Day)
		}
		seen[week[i].Day] = true
		if err := week[i].Validate(); err != nil {
			return errs.Validation(err)
		}
	}
	return b.availability.SaveWeek(agentID, week)
}

func (b *BookingService) Week(ctx context.Context, agentID string) ([]domain.AvailabilityWindow, error) {
	if err := budget(ctx); err != nil {
		return nil, err
	}
	return b.availability.Week(agentID)
}

func (b *BookingService) checkWindow(agentID string, day time.Weekday, slot string) error {
	window, err := b.availability.Window(agentID, day)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: agent %s has no window on %s", errs.ErrOutsideAvailability, agentID, day)
		}
		return err
	}
	if !window.Covers(slot) {
		return fmt.Errorf("%w: %s is outside %s's %s window", errs.ErrOutsideAvailability, slot, agentID, day)
	}
	return nil
}
