package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	req := require.New(t)

	// Legal steps
	req.True(StatusPending.CanTransitionTo(StatusConfirmed))
	req.True(StatusPending.CanTransitionTo(StatusCancelled))
	req.True(StatusConfirmed.CanTransitionTo(StatusInProgress))
	req.True(StatusConfirmed.CanTransitionTo(StatusCompleted))
	req.True(StatusConfirmed.CanTransitionTo(StatusCancelled))
	req.True(StatusInProgress.CanTransitionTo(StatusCompleted))

	// Skipping a step or moving backwards is rejected
	req.False(StatusPending.CanTransitionTo(StatusCompleted))
	req.False(StatusPending.CanTransitionTo(StatusInProgress))
	req.False(StatusInProgress.CanTransitionTo(StatusCancelled))
	req.False(StatusConfirmed.CanTransitionTo(StatusPending))
	req.False(StatusCompleted.CanTransitionTo(StatusPending))
}

func TestSessionStatus_Terminal(t *testing.T) {
	req := require.New(t)

	req.True(StatusCompleted.Terminal())
	req.True(StatusCancelled.Terminal())
	req.False(StatusPending.Terminal())
	req.False(StatusConfirmed.Terminal())
	req.False(StatusInProgress.Terminal())
}

func TestSessionStatus_SelfTransitionRejected(t *testing.T) {
	req := require.New(t)

	for _, s := range []SessionStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled} {
		req.False(s.CanTransitionTo(s), "self transition on %s", s)
	}
}

func TestValidStatus(t *testing.T) {
	req := require.New(t)

	req.True(ValidStatus(StatusPending))
	req.True(ValidStatus(StatusCancelled))
	req.False(ValidStatus("archived"))
	req.False(ValidStatus(""))
}

func TestNewSession(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()

	s := NewSession("GS-7", "user-1", "career advice", "switching teams", now)

	req.NotEqual(s.ID.String(), "00000000-0000-0000-0000-000000000000")
	req.Equal("GS-7", s.Number)
	req.Equal(StatusPending, s.Status)
	req.Equal("user-1", s.RequesterID)
	req.False(s.Assigned())
	req.Nil(s.ScheduledAt)
	req.Nil(s.CompletedAt)
	req.False(s.FeedbackRequested)
	req.Equal(now, s.CreatedAt)
}
