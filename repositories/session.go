//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ISessionRepository interface {
	Create(s domain.Session) error
	Get(id uuid.UUID) (domain.Session, error)
	Assign(id uuid.UUID, agentID string) (domain.Session, error)
	Transition(id uuid.UUID, from, to domain.SessionStatus, now time.Time) (domain.Session, error)
	Reserve(id uuid.UUID, at time.Time) (domain.Session, error)
	RequestFeedback(id uuid.UUID, now time.Time) (domain.Session, error)
	OccupiedSlots(agentID string, day time.Time) ([]string, error)
	CompletedCount(agentID string) (int, error)
	NextNumber() (string, error)
}

// SessionRow is the stored shape of a session, CBOR-encoded under
// "session:{uuid}".
type SessionRow struct {
	ID                  string
	Number              string
	Topic               string
	Description         string
	Status              string
	RequesterID         string
	AgentID             string
	ScheduledAt         *time.Time
	CreatedAt           time.Time
	CompletedAt         *time.Time
	FeedbackRequested   bool
	FeedbackRequestedAt *time.Time
}

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) (*SessionRepository, error) {
	seq, err := db.GetSequence([]byte("seq:session"), 64)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &SessionRepository{db: db, log: log, seq: seq}, nil
}

// Close releases the unused tail of the number sequence.
func (r *SessionRepository) Close() error {
	return r.seq.Release()
}

// NextNumber produces the human-readable session number. Gaps after a
// restart are acceptable; uniqueness is what matters.
func (r *SessionRepository) NextNumber() (string, error) {
	n, err := r.seq.Next()
	if err != nil {
		return "", mapStoreErr(err)
	}
	return fmt.Sprintf("GS-%d", n+1), nil
}

func sessionKey(id uuid.UUID) []byte {
	return []byte("session:" + id.String())
}

// slotKey reserves one discrete slot for one agent. The key is the
// concurrency guard: two bookings for the same (agent, instant) collide on
// it inside serializable badger transactions, so the check-then-act race
// of a naive read-then-write design cannot occur.
func slotKey(agentID string, at time.Time) []byte {
	return []byte(fmt.Sprintf("slot:%s:%010d", agentID, at.Unix()))
}

func (r *SessionRepository) Create(s domain.Session) error {
	data, err := encode(fromSession(s))
	if err != nil {
		return err
	}
	return mapStoreErr(r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(s.ID), data)
	}))
}

func (r *SessionRepository) Get(id uuid.UUID) (domain.Session, error) {
	var s domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		row, err := getSessionRow(txn, id)
		if err != nil {
			return err
		}
		s, err = toSession(row)
		return err
	})
	return s, mapStoreErr(err)
}

// Assign sets the owning agent, conditional on no agent being set yet.
// Last write wins is not acceptable here: a concurrent double assignment
// must surface as a conflict, never silently overwrite.
func (r *SessionRepository) Assign(id uuid.UUID, agentID string) (domain.Session, error) {
	var s domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		row, err := getSessionRow(txn, id)
		if err != nil {
			return err
		}
		if row.AgentID != "" {
			return fmt.Errorf("%w: session %s already assigned to %s",
				errs.ErrConflict, row.Number, row.AgentID)
		}
		if row.Status != string(domain.StatusPending) {
			return errs.InvalidTransition(row.Status, "assign")
		}
		row.AgentID = agentID
		if s, err = toSession(row); err != nil {
			return err
		}
		return putSessionRow(txn, row)
	})
	return s, mapStoreErr(err)
}

// Transition moves the session from -> to under optimistic concurrency:
// the status is re-read inside the transaction and compared against the
// caller's expectation. A stale expectation is a conflict.
func (r *SessionRepository) Transition(id uuid.UUID, from, to domain.SessionStatus, now time.Time) (domain.Session, error) {
	var s domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		row, err := getSessionRow(txn, id)
		if err != nil {
			return err
		}
		if row.Status != string(from) {
			return fmt.Errorf("%w: session %s is %s, expected %s",
				errs.ErrConflict, row.Number, row.Status, from)
		}
		row.Status = string(to)
		switch to {
		case domain.StatusCompleted:
			row.CompletedAt = &now
		case domain.StatusCancelled:
			// A cancelled session frees its slot for rebooking; only
			// confirmed, in-progress and completed sessions carry a schedule.
			if row.ScheduledAt != nil && row.AgentID != "" {
				if err := txn.Delete(slotKey(row.AgentID, *row.ScheduledAt)); err != nil {
					return err
				}
			}
			row.ScheduledAt = nil
		}
		if s, err = toSession(row); err != nil {
			return err
		}
		return putSessionRow(txn, row)
	})
	return s, mapStoreErr(err)
}

// Reserve books the slot and confirms the session in one transaction:
// either both happen or neither does. An existing slot key, or a commit
// conflict with a concurrent reservation, reads as the slot being taken.
func (r *SessionRepository) Reserve(id uuid.UUID, at time.Time) (domain.Session, error) {
	var s domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		row, err := getSessionRow(txn, id)
		if err != nil {
			return err
		}
		if row.AgentID == "" {
			return errs.Validationf("session %s has no assigned agent", row.Number)
		}
		if row.Status != string(domain.StatusPending) {
			return errs.InvalidTransition(row.Status, string(domain.StatusConfirmed))
		}
		key := slotKey(row.AgentID, at)
		switch _, err = txn.Get(key); {
		case err == nil:
			return fmt.Errorf("%w: agent %s at %s", errs.ErrSlotTaken,
				row.AgentID, at.Format(time.RFC3339))
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(key, []byte(row.ID)); err != nil {
			return err
		}
		row.Status = string(domain.StatusConfirmed)
		row.ScheduledAt = &at
		if s, err = toSession(row); err != nil {
			return err
		}
		return putSessionRow(txn, row)
	})
	if errors.Is(err, badger.ErrConflict) {
		// The other booking won the commit; same outcome as a taken slot.
		return domain.Session{}, fmt.Errorf("%w: concurrent reservation", errs.ErrSlotTaken)
	}
	return s, mapStoreErr(err)
}

// RequestFeedback flips the one-shot feedback flag; a second call is a
// conflict, not a repeat.
func (r *SessionRepository) RequestFeedback(id uuid.UUID, now time.Time) (domain.Session, error) {
	var s domain.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		row, err := getSessionRow(txn, id)
		if err != nil {
			return err
		}
		if row.Status != string(domain.StatusCompleted) {
			return errs.InvalidTransition(row.Status, "feedback_request")
		}
		if row.FeedbackRequested {
			return fmt.Errorf("%w: feedback already requested for %s",
				errs.ErrConflict, row.Number)
		}
		row.FeedbackRequested = true
		row.FeedbackRequestedAt = &now
		if s, err = toSession(row); err != nil {
			return err
		}
		return putSessionRow(txn, row)
	})
	return s, mapStoreErr(err)
}

// OccupiedSlots returns the "HH:MM" markers already reserved for the agent
// on the given calendar day. The slot keys, not the session rows, are the
// source of truth for occupancy.
func (r *SessionRepository) OccupiedSlots(agentID string, day time.Time) ([]string, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var slots []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("slot:" + agentID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			sec, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				r.log.Warn("Skipping malformed slot key", "key", string(it.Item().Key()))
				continue
			}
			at := time.Unix(sec, 0).UTC()
			if !at.Before(start) && at.Before(end) {
				slots = append(slots, domain.SlotOf(at))
			}
		}
		return nil
	})
	return slots, mapStoreErr(err)
}

// CompletedCount recounts the agent's completed sessions from the rows
// themselves. Recompute-from-source keeps the derived aggregate idempotent
// under retries.
func (r *SessionRepository) CompletedCount(agentID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("session:")
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var row SessionRow
				if err := decode(val, &row); err != nil {
					return err
				}
				if row.AgentID == agentID && row.Status == string(domain.StatusCompleted) {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return count, mapStoreErr(err)
}

func getSessionRow(txn *badger.Txn, id uuid.UUID) (SessionRow, error) {
	item, err := txn.Get(sessionKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return SessionRow{}, fmt.Errorf("%w: session %s", errs.ErrNotFound, id)
		}
		return SessionRow{}, err
	}
	var row SessionRow
	err = item.Value(func(val []byte) error {
		return decode(val, &row)
	})
	return row, err
}

func putSessionRow(txn *badger.Txn, row SessionRow) error {
	data, err := encode(row)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return err
	}
	return txn.Set(sessionKey(id), data)
}

func fromSession(s domain.Session) SessionRow {
	return SessionRow{
		ID:                  s.ID.String(),
		Number:              s.Number,
		Topic:               s.Topic,
		Description:         s.Description,
		Status:              string(s.Status),
		RequesterID:         s.RequesterID,
		AgentID:             s.AssignedAgentID,
		ScheduledAt:         s.ScheduledAt,
		CreatedAt:           s.CreatedAt,
		CompletedAt:         s.CompletedAt,
		FeedbackRequested:   s.FeedbackRequested,
		FeedbackRequestedAt: s.FeedbackRequestedAt,
	}
}

func toSession(row SessionRow) (domain.Session, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:                  id,
		Number:              row.Number,
		Topic:               row.Topic,
		Description:         row.Description,
		Status:              domain.SessionStatus(row.Status),
		RequesterID:         row.RequesterID,
		AssignedAgentID:     row.AgentID,
		ScheduledAt:         row.ScheduledAt,
		CreatedAt:           row.CreatedAt,
		CompletedAt:         row.CompletedAt,
		FeedbackRequested:   row.FeedbackRequested,
		FeedbackRequestedAt: row.FeedbackRequestedAt,
	}, nil
}
