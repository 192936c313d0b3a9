// Package event defines the domain events fanned out to live subscribers
// and to the notifier pipeline after a store write succeeded.
package event

import (
	"time"

	"guidance-lab/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything observable about one session. Ordering is
// guaranteed per session only; sessions are independent.
type DomainEvent interface {
	Session() uuid.UUID
}

type SessionCreated struct {
	SessionID   uuid.UUID
	Number      string
	RequesterID string
	Topic       string
	At          time.Time
}

func (e SessionCreated) Session() uuid.UUID { return e.SessionID }

type AgentAssigned struct {
	SessionID uuid.UUID
	Number    string
	AgentID   string
	At        time.Time
}

func (e AgentAssigned) Session() uuid.UUID { return e.SessionID }

type SessionTransitioned struct {
	SessionID   uuid.UUID
	Number      string
	RequesterID string
	AgentID     string
	From        domain.SessionStatus
	To          domain.SessionStatus
	At          time.Time
}

func (e SessionTransitioned) Session() uuid.UUID { return e.SessionID }

type SlotBooked struct {
	SessionID   uuid.UUID
	Number      string
	AgentID     string
	ScheduledAt time.Time
	At          time.Time
}

func (e SlotBooked) Session() uuid.UUID { return e.SessionID }

type MessagePosted struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	SenderID   string
	SenderType domain.SenderType
	Content    string
	At         time.Time
}

func (e MessagePosted) Session() uuid.UUID { return e.SessionID }

type MessagesRead struct {
	SessionID uuid.UUID
	ReaderID  string
	Count     int
	At        time.Time
}

func (e MessagesRead) Session() uuid.UUID { return e.SessionID }

type FeedbackRequested struct {
	SessionID   uuid.UUID
	Number      string
	RequesterID string
	AgentID     string
	At          time.Time
}

func (e FeedbackRequested) Session() uuid.UUID { return e.SessionID }

// NotificationCreated is pushed to an agent's live sinks right after the
// durable notification row was written.
type NotificationCreated struct {
	Notification domain.Notification
}

func (e NotificationCreated) Session() uuid.UUID {
	if e.Notification.SessionID == nil {
		return uuid.Nil
	}
	return *e.Notification.SessionID
}
