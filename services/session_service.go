//go:generate go run go.uber.org/mock/mockgen -source=session_service.go -destination=../mocks/mock_session_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	errs "guidance-lab/errors"
	"guidance-lab/observability"
	"guidance-lab/repositories"
	"guidance-lab/search"

	"github.com/google/uuid"
)

const feedbackSolicitation = "Thanks for your time! We'd love to hear how this session went for you."

type ISessionService interface {
	Create(ctx context.Context, cmd CreateSessionCommand) (domain.Session, error)
	Get(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (domain.Session, error)
	Assign(ctx context.Context, caller domain.Identity, sessionID uuid.UUID, agentID string) (domain.Session, error)
	Transition(ctx context.Context, caller domain.Identity, sessionID uuid.UUID, target domain.SessionStatus) (domain.Session, error)
	RequestFeedback(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (domain.Session, domain.Message, error)
	Search(ctx context.Context, caller domain.Identity, term string, limit int) ([]domain.Session, error)
	CompletedSessions(ctx context.Context, agentID string) (int, error)
}

type CreateSessionCommand struct {
	Requester   domain.Identity
	Topic       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
}

type SessionService struct {
	log        *slog.Logger
	sessions   repositories.ISessionRepository
	stats      repositories.IStatsRepository
	messages   *MessageService
	index      *search.Index
	monitoring *observability.MonitoringManager
	events     chan<- event.DomainEvent
	now        func() time.Time
}

func NewSessionService(
	log *slog.Logger,
	sessions repositories.ISessionRepository,
	stats repositories.IStatsRepository,
	messages *MessageService,
	index *search.Index,
	monitoring *observability.MonitoringManager,
	events chan<- event.DomainEvent,
) *SessionService {
	return &SessionService{
		log:        log,
		sessions:   sessions,
		stats:      stats,
		messages:   messages,
		index:      index,
		monitoring: monitoring,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new engagement in pending state on behalf of the
// requester.
func (s *SessionService) Create(ctx context.Context, cmd CreateSessionCommand) (domain.Session, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, err
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Session{}, errs.Validation(err)
	}
	if cmd.Requester.ID == "" {
		return domain.Session{}, errs.Validationf("requester identity is required")
	}

	number, err := s.sessions.NextNumber()
	if err != nil {
		return domain.Session{}, err
	}
	session := domain.NewSession(number, cmd.Requester.ID, cmd.Topic, cmd.Description, s.now())
	if err := s.sessions.Create(session); err != nil {
		return domain.Session{}, err
	}
	s.monitoring.IncrSessionsCreated()
	s.indexBestEffort(session)

	emit(ctx, s.events, s.log, event.SessionCreated{
		SessionID:   session.ID,
		Number:      session.Number,
		RequesterID: session.RequesterID,
		Topic:       session.Topic,
		At:          session.CreatedAt,
	})
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (domain.Session, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, err
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if caller.ID != session.RequesterID && !caller.CanManage(session.AssignedAgentID) && !caller.IsManager() {
		return domain.Session{}, fmt.Errorf("%w: not a party of session %s", errs.ErrForbidden, session.Number)
	}
	return session, nil
}

// Assign hands the session to an agent. The write is conditional on no
// agent being assigned yet; losing that race is a conflict for the caller.
func (s *SessionService) Assign(ctx context.Context, caller domain.Identity, sessionID uuid.UUID, agentID string) (domain.Session, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, err
	}
	if agentID == "" {
		return domain.Session{}, errs.Validationf("agent id is required")
	}
	if caller.Role == domain.RoleUser {
		return domain.Session{}, fmt.Errorf("%w: assignment is agent or manager driven", errs.ErrForbidden)
	}
	if caller.Role == domain.RoleAgent && caller.ID != agentID {
		return domain.Session{}, fmt.Errorf("%w: agents only claim sessions for themselves", errs.ErrForbidden)
	}

	session, err := s.sessions.Assign(sessionID, agentID)
	if err != nil {
		return domain.Session{}, err
	}
	emit(ctx, s.events, s.log, event.AgentAssigned{
		SessionID: session.ID,
		Number:    session.Number,
		AgentID:   agentID,
		At:        s.now(),
	})
	return session, nil
}

// Transition moves the session along the lifecycle graph. The status is
// re-checked inside the store transaction, so a concurrent writer turns a
// stale expectation into a conflict rather than a silent overwrite.
func (s *SessionService) Transition(ctx context.Context, caller domain.Identity, sessionID uuid.UUID, target domain.SessionStatus) (domain.Session, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, err
	}
	if !domain.ValidStatus(target) {
		return domain.Session{}, errs.Validationf("unknown status %q", target)
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !caller.CanManage(session.AssignedAgentID) {
		// The requester may withdraw their own request, but only while no
		// agent has picked it up yet.
		requesterWithdrawal := target == domain.StatusCancelled &&
			caller.ID == session.RequesterID &&
			session.AssignedAgentID == ""
		if !requesterWithdrawal {
			return domain.Session{}, fmt.Errorf("%w: transitions on %s require the assigned agent or a manager",
				errs.ErrForbidden, session.Number)
		}
	}
	if !session.Status.CanTransitionTo(target) {
		return domain.Session{}, errs.InvalidTransition(string(session.Status), string(target))
	}

	updated, err := s.sessions.Transition(sessionID, session.Status, target, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if target == domain.StatusCompleted {
		s.monitoring.IncrSessionsCompleted()
	}
	s.indexBestEffort(updated)

	emit(ctx, s.events, s.log, event.SessionTransitioned{
		SessionID:   updated.ID,
		Number:      updated.Number,
		RequesterID: updated.RequesterID,
		AgentID:     updated.AssignedAgentID,
		From:        session.Status,
		To:          target,
		At:          s.now(),
	})
	return updated, nil
}

// RequestFeedback flips the one-shot feedback flag and posts the
// solicitation into the session chat. This is the single place where the
// state machine and the message channel are coupled on purpose: the
// solicitation is itself a chat message.
func (s *SessionService) RequestFeedback(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (domain.Session, domain.Message, error) {
	if err := budget(ctx); err != nil {
		return domain.Session{}, domain.Message{}, err
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return domain.Session{}, domain.Message{}, err
	}
	if !caller.CanManage(session.AssignedAgentID) {
		return domain.Session{}, domain.Message{}, fmt.Errorf(
			"%w: feedback on %s requires the assigned agent or a manager",
			errs.ErrForbidden, session.Number)
	}

	updated, err := s.sessions.RequestFeedback(sessionID, s.now())
	if err != nil {
		return domain.Session{}, domain.Message{}, err
	}
	message, err := s.messages.sendSystem(ctx, updated, feedbackSolicitation)
	if err != nil {
		// The flag is already set; the solicitation can be re-posted by
		// hand but the one-shot semantics must not reset.
		s.log.Error("Feedback flag set but solicitation message failed", "session", updated.Number, "err", err)
		return updated, domain.Message{}, err
	}

	emit(ctx, s.events, s.log, event.FeedbackRequested{
		SessionID:   updated.ID,
		Number:      updated.Number,
		RequesterID: updated.RequesterID,
		AgentID:     updated.AssignedAgentID,
		At:          s.now(),
	})
	return updated, message, nil
}

// Search finds sessions by topic or description. Manager-only: agents and
// requesters work from their own lists, discovery across all engagements
// is a supervision concern.
func (s *SessionService) Search(ctx context.Context, caller domain.Identity, term string, limit int) ([]domain.Session, error) {
	if err := budget(ctx); err != nil {
		return nil, err
	}
	if !caller.IsManager() {
		return nil, fmt.Errorf("%w: search is manager only", errs.ErrForbidden)
	}
	if s.index == nil {
		return nil, errs.Validationf("search index not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.index.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	var sessions []domain.Session
	for _, id := range ids {
		session, err := s.sessions.Get(id)
		if err != nil {
			s.log.Warn("Indexed session missing from store", "id", id, "err", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// CompletedSessions reads the eventually-consistent per-agent aggregate.
func (s *SessionService) CompletedSessions(ctx context.Context, agentID string) (int, error) {
	if err := budget(ctx); err != nil {
		return 0, err
	}
	return s.stats.Completed(agentID)
}

func (s *SessionService) indexBestEffort(session domain.Session) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexSession(session); err != nil {
		s.log.Warn("Session indexing failed", "session", session.Number, "err", err)
	}
}
