//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	"guidance-lab/domain/event"
	errs "guidance-lab/errors"
	"guidance-lab/moderation"
	"guidance-lab/observability"
	"guidance-lab/repositories"

	"github.com/google/uuid"
)

type IMessageService interface {
	Send(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	List(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) ([]domain.Message, error)
	MarkRead(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (int, error)
}

type SendMessageCommand struct {
	SessionID  uuid.UUID
	Sender     domain.Identity
	SenderType domain.SenderType
	Content    string `validate:"required,max=4000"`
}

type MessageService struct {
	log        *slog.Logger
	sessions   repositories.ISessionRepository
	messages   repositories.IMessageRepository
	presence   repositories.IPresenceRepository
	moderator  *moderation.Moderator
	monitoring *observability.MonitoringManager
	events     chan<- event.DomainEvent
	now        func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	sessions repositories.ISessionRepository,
	messages repositories.IMessageRepository,
	presence repositories.IPresenceRepository,
	moderator *moderation.Moderator,
	monitoring *observability.MonitoringManager,
	events chan<- event.DomainEvent,
) *MessageService {
	return &MessageService{
		log:        log,
		sessions:   sessions,
		messages:   messages,
		presence:   presence,
		moderator:  moderator,
		monitoring: monitoring,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send appends one chat turn to the session. Messaging stays open in
// completed sessions to support feedback flows; only cancellation closes
// the channel.
func (s *MessageService) Send(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	if err := budget(ctx); err != nil {
		return domain.Message{}, err
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, errs.Validation(err)
	}
	if cmd.SenderType != domain.SenderUser && cmd.SenderType != domain.SenderAgent {
		return domain.Message{}, errs.Validationf("unknown sender type %q", cmd.SenderType)
	}

	session, err := s.sessions.Get(cmd.SessionID)
	if err != nil {
		return domain.Message{}, err
	}
	if session.Status == domain.StatusCancelled {
		return domain.Message{}, fmt.Errorf("%w: session %s is cancelled",
			errs.ErrSessionClosed, session.Number)
	}
	if err := s.authorizeSender(session, cmd); err != nil {
		return domain.Message{}, err
	}

	content := cmd.Content
	if s.moderator != nil {
		content = s.moderator.Censor(content)
	}

	message := domain.Message{
		ID:         uuid.New(),
		SessionID:  session.ID,
		SenderID:   cmd.Sender.ID,
		SenderType: cmd.SenderType,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Store(message); err != nil {
		return domain.Message{}, err
	}
	s.monitoring.IncrMessagesStored()

	// An agent writing in chat is visibly active; refresh their presence
	// the way a heartbeat would, best effort.
	if cmd.SenderType == domain.SenderAgent && s.presence != nil {
		if refreshed, err := s.presence.Heartbeat(cmd.Sender.ID, s.now()); err != nil {
			s.log.Warn("Presence refresh on send failed", "agent", cmd.Sender.ID, "err", err)
		} else if refreshed {
			s.monitoring.IncrHeartbeatsApplied()
		}
	}

	emit(ctx, s.events, s.log, event.MessagePosted{
		ID:         message.ID,
		SessionID:  message.SessionID,
		SenderID:   message.SenderID,
		SenderType: message.SenderType,
		Content:    message.Content,
		At:         message.CreatedAt,
	})
	return message, nil
}

func (s *MessageService) List(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) ([]domain.Message, error) {
	if err := budget(ctx); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(session, caller); err != nil {
		return nil, err
	}
	return s.messages.List(sessionID)
}

// MarkRead flips the unread messages authored by the other party. A repeat
// call finds nothing to flip and still succeeds.
func (s *MessageService) MarkRead(ctx context.Context, caller domain.Identity, sessionID uuid.UUID) (int, error) {
	if err := budget(ctx); err != nil {
		return 0, err
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return 0, err
	}
	if err := s.authorizeParty(session, caller); err != nil {
		return 0, err
	}
	count, err := s.messages.MarkRead(sessionID, caller.ID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		emit(ctx, s.events, s.log, event.MessagesRead{
			SessionID: sessionID,
			ReaderID:  caller.ID,
			Count:     count,
			At:        s.now(),
		})
	}
	return count, nil
}

// sendSystem posts the feedback solicitation on behalf of the assigned
// agent, skipping the sender checks regular sends go through.
func (s *MessageService) sendSystem(ctx context.Context, session domain.Session, content string) (domain.Message, error) {
	message := domain.Message{
		ID:         uuid.New(),
		SessionID:  session.ID,
		SenderID:   session.AssignedAgentID,
		SenderType: domain.SenderAgent,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Store(message); err != nil {
		return domain.Message{}, err
	}
	s.monitoring.IncrMessagesStored()
	emit(ctx, s.events, s.log, event.MessagePosted{
		ID:         message.ID,
		SessionID:  message.SessionID,
		SenderID:   message.SenderID,
		SenderType: message.SenderType,
		Content:    message.Content,
		At:         message.CreatedAt,
	})
	return message, nil
}

func (s *MessageService) authorizeSender(session domain.Session, cmd SendMessageCommand) error {
	switch cmd.SenderType {
	case domain.SenderUser:
		if cmd.Sender.ID != session.RequesterID {
			return fmt.Errorf("%w: only the requester writes as user", errs.ErrForbidden)
		}
	case domain.SenderAgent:
		if !cmd.Sender.CanManage(session.AssignedAgentID) {
			return fmt.Errorf("%w: only the assigned agent writes as agent", errs.ErrForbidden)
		}
	}
	return nil
}

func (s *MessageService) authorizeParty(session domain.Session, caller domain.Identity) error {
	if caller.ID == session.RequesterID || caller.CanManage(session.AssignedAgentID) {
		return nil
	}
	return fmt.Errorf("%w: not a party of session %s", errs.ErrForbidden, session.Number)
}
