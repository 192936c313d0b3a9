package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifySessionUpdate   NotificationType = "session_update"
	NotifyNewMessage      NotificationType = "new_message"
	NotifyFeedbackRequest NotificationType = "feedback_request"
)

// Notification is one durable event addressed to an agent. Rows are
// retained, not pruned; reads are capped by query limit instead.
type Notification struct {
	ID        uuid.UUID
	AgentID   string
	Type      NotificationType
	Title     string
	Message   string
	SessionID *uuid.UUID
	IsRead    bool
	CreatedAt time.Time
}
