package repositories

import (
	"sync"
	"testing"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSessionRepo(t *testing.T) *SessionRepository {
	t.Helper()
	repo, err := NewSessionRepository(newTestDB(t), newTestLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func pendingSession(t *testing.T, repo *SessionRepository, requesterID string) domain.Session {
	t.Helper()
	number, err := repo.NextNumber()
	require.NoError(t, err)
	s := domain.NewSession(number, requesterID, "onboarding help", "first week questions", time.Now().UTC())
	require.NoError(t, repo.Create(s))
	return s
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)

	// Given: a stored pending session
	s := pendingSession(t, repo, "user-1")

	// When: fetching it back
	fetched, err := repo.Get(s.ID)

	// Then: the row round-trips
	req.NoError(err)
	req.Equal(s.ID, fetched.ID)
	req.Equal(s.Number, fetched.Number)
	req.Equal(domain.StatusPending, fetched.Status)
	req.Equal("user-1", fetched.RequesterID)
	req.False(fetched.Assigned())
	req.WithinDuration(s.CreatedAt, fetched.CreatedAt, time.Millisecond)
}

func TestSessionRepository_Get_NotFound(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)

	_, err := repo.Get(uuid.New())

	req.ErrorIs(err, errs.ErrNotFound)
}

func TestSessionRepository_NextNumber_Unique(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		n, err := repo.NextNumber()
		req.NoError(err)
		req.False(seen[n], "duplicate number %s", n)
		seen[n] = true
	}
}

func TestSessionRepository_Assign(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	s := pendingSession(t, repo, "user-1")

	// First claim succeeds
	assigned, err := repo.Assign(s.ID, "agent-1")
	req.NoError(err)
	req.Equal("agent-1", assigned.AssignedAgentID)

	// Second claim is a conflict, never a silent overwrite
	_, err = repo.Assign(s.ID, "agent-2")
	req.ErrorIs(err, errs.ErrConflict)

	fetched, err := repo.Get(s.ID)
	req.NoError(err)
	req.Equal("agent-1", fetched.AssignedAgentID)
}

func TestSessionRepository_Transition_OptimisticConcurrency(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	s := pendingSession(t, repo, "user-1")
	now := time.Now().UTC()

	// Moving with the right expectation works
	moved, err := repo.Transition(s.ID, domain.StatusPending, domain.StatusCancelled, now)
	req.NoError(err)
	req.Equal(domain.StatusCancelled, moved.Status)

	// A stale expectation is a conflict
	_, err = repo.Transition(s.ID, domain.StatusPending, domain.StatusConfirmed, now)
	req.ErrorIs(err, errs.ErrConflict)
}

func TestSessionRepository_Transition_Completed_SetsTimestamp(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	s := pendingSession(t, repo, "user-1")
	_, err := repo.Assign(s.ID, "agent-1")
	req.NoError(err)

	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	_, err = repo.Reserve(s.ID, at)
	req.NoError(err)

	now := time.Now().UTC()
	_, err = repo.Transition(s.ID, domain.StatusConfirmed, domain.StatusInProgress, now)
	req.NoError(err)
	done, err := repo.Transition(s.ID, domain.StatusInProgress, domain.StatusCompleted, now)
	req.NoError(err)

	req.NotNil(done.CompletedAt)
	req.WithinDuration(now, *done.CompletedAt, time.Millisecond)
}

func TestSessionRepository_Reserve(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	s := pendingSession(t, repo, "user-1")
	at := time.Date(2026, 4, 2, 14, 30, 0, 0, time.UTC)

	// Reserving an unassigned session is invalid
	_, err := repo.Reserve(s.ID, at)
	req.ErrorIs(err, errs.ErrValidation)

	_, err = repo.Assign(s.ID, "agent-1")
	req.NoError(err)

	// When: booking the slot
	confirmed, err := repo.Reserve(s.ID, at)

	// Then: the session is confirmed and scheduled in one step
	req.NoError(err)
	req.Equal(domain.StatusConfirmed, confirmed.Status)
	req.NotNil(confirmed.ScheduledAt)
	req.True(at.Equal(*confirmed.ScheduledAt))

	// And: a second session cannot take the same (agent, instant)
	other := pendingSession(t, repo, "user-2")
	_, err = repo.Assign(other.ID, "agent-1")
	req.NoError(err)
	_, err = repo.Reserve(other.ID, at)
	req.ErrorIs(err, errs.ErrSlotTaken)

	// And: a confirmed session cannot be reserved again
	_, err = repo.Reserve(s.ID, at.Add(time.Hour))
	req.ErrorIs(err, errs.ErrInvalidTransition)
}

func TestSessionRepository_Reserve_ConcurrentBookings_OneWinner(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	at := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)

	const contenders = 8
	ids := make([]uuid.UUID, contenders)
	for i := range ids {
		s := pendingSession(t, repo, "user-1")
		_, err := repo.Assign(s.ID, "agent-1")
		req.NoError(err)
		ids[i] = s.ID
	}

	// When: all contenders race for the same slot
	errors := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errors[i] = repo.Reserve(ids[i], at)
		}(i)
	}
	wg.Wait()

	// Then: exactly one wins, every loser sees the slot as taken
	winners := 0
	for _, err := range errors {
		if err == nil {
			winners++
		} else {
			req.ErrorIs(err, errs.ErrSlotTaken)
		}
	}
	req.Equal(1, winners)
}

func TestSessionRepository_Cancel_FreesSlot(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	at := time.Date(2026, 4, 6, 11, 0, 0, 0, time.UTC)

	s := pendingSession(t, repo, "user-1")
	_, err := repo.Assign(s.ID, "agent-1")
	req.NoError(err)
	_, err = repo.Reserve(s.ID, at)
	req.NoError(err)

	// When: the confirmed session is cancelled
	cancelled, err := repo.Transition(s.ID, domain.StatusConfirmed, domain.StatusCancelled, time.Now().UTC())
	req.NoError(err)

	// Then: the schedule is cleared, in memory and on disk
	req.Nil(cancelled.ScheduledAt)
	stored, err := repo.Get(s.ID)
	req.NoError(err)
	req.Nil(stored.ScheduledAt)

	// And: the slot can be booked again
	other := pendingSession(t, repo, "user-2")
	_, err = repo.Assign(other.ID, "agent-1")
	req.NoError(err)
	_, err = repo.Reserve(other.ID, at)
	req.NoError(err)
}

func TestSessionRepository_OccupiedSlots(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	day := time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)

	for _, slot := range []string{"09:00", "14:30"} {
		s := pendingSession(t, repo, "user-1")
		_, err := repo.Assign(s.ID, "agent-1")
		req.NoError(err)
		at, err := domain.CombineSlot(day, slot)
		req.NoError(err)
		_, err = repo.Reserve(s.ID, at)
		req.NoError(err)
	}

	// A booking on another day must not leak into this one
	s := pendingSession(t, repo, "user-2")
	_, err := repo.Assign(s.ID, "agent-1")
	req.NoError(err)
	nextDay, err := domain.CombineSlot(day.Add(24*time.Hour), "09:00")
	req.NoError(err)
	_, err = repo.Reserve(s.ID, nextDay)
	req.NoError(err)

	occupied, err := repo.OccupiedSlots("agent-1", day)
	req.NoError(err)
	req.ElementsMatch([]string{"09:00", "14:30"}, occupied)
}

func TestSessionRepository_RequestFeedback_OnceOnly(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	s := pendingSession(t, repo, "user-1")
	now := time.Now().UTC()

	// Feedback on a non-completed session is invalid
	_, err := repo.RequestFeedback(s.ID, now)
	req.ErrorIs(err, errs.ErrInvalidTransition)

	_, err = repo.Assign(s.ID, "agent-1")
	req.NoError(err)
	at := time.Date(2026, 4, 8, 15, 0, 0, 0, time.UTC)
	_, err = repo.Reserve(s.ID, at)
	req.NoError(err)
	_, err = repo.Transition(s.ID, domain.StatusConfirmed, domain.StatusCompleted, now)
	req.NoError(err)

	// First request flips the flag
	flagged, err := repo.RequestFeedback(s.ID, now)
	req.NoError(err)
	req.True(flagged.FeedbackRequested)
	req.NotNil(flagged.FeedbackRequestedAt)

	// Second request is a conflict
	_, err = repo.RequestFeedback(s.ID, now)
	req.ErrorIs(err, errs.ErrConflict)
}

func TestSessionRepository_CompletedCount(t *testing.T) {
	req := require.New(t)
	repo := newSessionRepo(t)
	now := time.Now().UTC()

	complete := func(slot string) {
		s := pendingSession(t, repo, "user-1")
		_, err := repo.Assign(s.ID, "agent-1")
		req.NoError(err)
		at, err := domain.CombineSlot(time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), slot)
		req.NoError(err)
		_, err = repo.Reserve(s.ID, at)
		req.NoError(err)
		_, err = repo.Transition(s.ID, domain.StatusConfirmed, domain.StatusCompleted, now)
		req.NoError(err)
	}
	complete("09:00")
	complete("10:00")

	// A cancelled session never counts
	s := pendingSession(t, repo, "user-2")
	_, err := repo.Assign(s.ID, "agent-1")
	req.NoError(err)
	_, err = repo.Transition(s.ID, domain.StatusPending, domain.StatusCancelled, now)
	req.NoError(err)

	count, err := repo.CompletedCount("agent-1")
	req.NoError(err)
	req.Equal(2, count)

	none, err := repo.CompletedCount("agent-9")
	req.NoError(err)
	req.Equal(0, none)
}
