// This file defines Message entities of the session chat channel.
// Messages are immutable once created except for the IsRead flag, which
// only ever moves false -> true.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAgent SenderType = "agent"
)

// Message is one chat turn within a session. Ordering is by CreatedAt,
// ties broken by insertion order.
type Message struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	SenderID   string
	SenderType SenderType
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}
