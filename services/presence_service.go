//go:generate go run go.uber.org/mock/mockgen -source=presence_service.go -destination=../mocks/mock_presence_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"
	"guidance-lab/observability"
	"guidance-lab/repositories"
)

type IPresenceService interface {
	Activate(ctx context.Context, caller domain.Identity, agentID string) error
	Heartbeat(ctx context.Context, caller domain.Identity, agentID string) error
	Deactivate(ctx context.Context, caller domain.Identity, agentID string) error
	IsOnline(ctx context.Context, agentID string) (bool, error)
}

// PresenceService answers "is this agent reachable" with bounded
// staleness. Consumers must never look at the raw stored flag: the
// derived check here is the only authoritative answer, because the flag
// lies after an ungraceful disconnect until the TTL clears it.
type PresenceService struct {
	log        *slog.Logger
	presence   repositories.IPresenceRepository
	monitoring *observability.MonitoringManager
	staleness  time.Duration
	now        func() time.Time
}

func NewPresenceService(
	log *slog.Logger,
	presence repositories.IPresenceRepository,
	monitoring *observability.MonitoringManager,
	staleness time.Duration,
) *PresenceService {
	return &PresenceService{
		log:        log,
		presence:   presence,
		monitoring: monitoring,
		staleness:  staleness,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *PresenceService) Activate(ctx context.Context, caller domain.Identity, agentID string) error {
	if err := budget(ctx); err != nil {
		return err
	}
	if err := p.authorize(caller, agentID); err != nil {
		return err
	}
	return p.presence.Activate(agentID, p.now())
}

// Heartbeat refreshes the last-seen timestamp while the agent is online.
// A beat landing after logout or expiry is silently ignored; the client
// re-activates on its next session start.
func (p *PresenceService) Heartbeat(ctx context.Context, caller domain.Identity, agentID string) error {
	if err := budget(ctx); err != nil {
		return err
	}
	if err := p.authorize(caller, agentID); err != nil {
		return err
	}
	refreshed, err := p.presence.Heartbeat(agentID, p.now())
	if err != nil {
		return err
	}
	if refreshed {
		p.monitoring.IncrHeartbeatsApplied()
	}
	return nil
}

// Deactivate is the explicit logout, also used by managers for forced
// logout. Exit signals from dying clients are best-effort only; losing
// one is fine because the staleness check self-heals within the
// threshold.
func (p *PresenceService) Deactivate(ctx context.Context, caller domain.Identity, agentID string) error {
	if err := budget(ctx); err != nil {
		return err
	}
	if err := p.authorize(caller, agentID); err != nil {
		return err
	}
	return p.presence.Deactivate(agentID, p.now())
}

func (p *PresenceService) IsOnline(ctx context.Context, agentID string) (bool, error) {
	if err := budget(ctx); err != nil {
		return false, err
	}
	record, found, err := p.presence.Get(agentID)
	if err != nil || !found {
		return false, err
	}
	return record.Reachable(p.now(), p.staleness), nil
}

func (p *PresenceService) authorize(caller domain.Identity, agentID string) error {
	if caller.CanManage(agentID) {
		return nil
	}
	return fmt.Errorf("%w: presence of %s is agent or manager owned", errs.ErrForbidden, agentID)
}
