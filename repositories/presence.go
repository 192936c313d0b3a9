//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"errors"
	"log/slog"
	"time"

	"guidance-lab/domain"

	"github.com/dgraph-io/badger/v4"
)

type IPresenceRepository interface {
	Activate(agentID string, now time.Time) error
	Heartbeat(agentID string, now time.Time) (bool, error)
	Deactivate(agentID string, now time.Time) error
	Get(agentID string) (domain.PresenceRecord, bool, error)
}

// PresenceRepository keeps one row per agent under "presence:{agent}".
// Online rows carry a badger TTL equal to the staleness threshold, so the
// store itself expires ghosts left behind by clients that died without an
// exit signal. Offline rows have no TTL: an explicit logout is durable.
type PresenceRepository struct {
	db        *badger.DB
	log       *slog.Logger
	staleness time.Duration
}

func NewPresenceRepository(db *badger.DB, log *slog.Logger, staleness time.Duration) PresenceRepository {
	return PresenceRepository{db: db, log: log, staleness: staleness}
}

type PresenceRow struct {
	AgentID    string
	IsOnline   bool
	LastSeenAt time.Time
}

func presenceKey(agentID string) []byte {
	return []byte("presence:" + agentID)
}

func (p PresenceRepository) Activate(agentID string, now time.Time) error {
	return p.putOnline(agentID, now)
}

// Heartbeat refreshes LastSeenAt only while the agent is currently online.
// A heartbeat after logout or after TTL expiry is a no-op; the client is
// expected to Activate again. Returns whether the refresh applied.
func (p PresenceRepository) Heartbeat(agentID string, now time.Time) (bool, error) {
	refreshed := false
	err := p.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(agentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var row PresenceRow
		if err := item.Value(func(val []byte) error {
			return decode(val, &row)
		}); err != nil {
			return err
		}
		if !row.IsOnline {
			return nil
		}
		row.LastSeenAt = now
		data, err := encode(row)
		if err != nil {
			return err
		}
		refreshed = true
		entry := badger.NewEntry(presenceKey(agentID), data).WithTTL(p.staleness)
		return txn.SetEntry(entry)
	})
	return refreshed, mapStoreErr(err)
}

func (p PresenceRepository) Deactivate(agentID string, now time.Time) error {
	row := PresenceRow{AgentID: agentID, IsOnline: false, LastSeenAt: now}
	data, err := encode(row)
	if err != nil {
		return err
	}
	return mapStoreErr(p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(presenceKey(agentID), data)
	}))
}

// Get returns the record and whether one exists. A missing row (never
// activated, or expired by TTL) reads as offline.
func (p PresenceRepository) Get(agentID string) (domain.PresenceRecord, bool, error) {
	var row PresenceRow
	found := false
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(agentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return decode(val, &row)
		})
	})
	if err != nil || !found {
		return domain.PresenceRecord{}, false, mapStoreErr(err)
	}
	return domain.PresenceRecord{
		AgentID:    row.AgentID,
		IsOnline:   row.IsOnline,
		LastSeenAt: row.LastSeenAt,
	}, true, nil
}

func (p PresenceRepository) putOnline(agentID string, now time.Time) error {
	row := PresenceRow{AgentID: agentID, IsOnline: true, LastSeenAt: now}
	data, err := encode(row)
	if err != nil {
		return err
	}
	return mapStoreErr(p.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(presenceKey(agentID), data).WithTTL(p.staleness)
		return txn.SetEntry(entry)
	}))
}
