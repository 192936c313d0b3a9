// Package domain contains core concepts of the guidance system.
// This file defines Session entities, the lifecycle state machine,
// and related invariants. No runtime, network, or UI logic here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusConfirmed  SessionStatus = "confirmed"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// transitions is the full lifecycle graph. Anything absent here is rejected.
var transitions = map[SessionStatus][]SessionStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether moving from s to target is a legal step.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s SessionStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Session represents one guidance engagement between a requester and an
// assigned agent. Sessions are never deleted; terminal ones are history.
type Session struct {
	ID                  uuid.UUID
	Number              string // human-readable, e.g. "GS-42"
	Topic               string
	Description         string
	Status              SessionStatus
	RequesterID         string
	AssignedAgentID     string // empty until assigned
	ScheduledAt         *time.Time
	CreatedAt           time.Time
	CompletedAt         *time.Time
	FeedbackRequested   bool
	FeedbackRequestedAt *time.Time
}

func NewSession(number, requesterID, topic, description string, now time.Time) Session {
	return Session{
		ID:          uuid.New(),
		Number:      number,
		Topic:       topic,
		Description: description,
		Status:      StatusPending,
		RequesterID: requesterID,
		CreatedAt:   now,
	}
}

// Assigned reports whether an agent owns this session.
func (s Session) Assigned() bool {
	return s.AssignedAgentID != ""
}
