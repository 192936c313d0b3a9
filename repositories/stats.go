//go:generate go run go.uber.org/mock/mockgen -source=stats.go -destination=../mocks/mock_stats_repository.go -package=mocks
package repositories

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IStatsRepository interface {
	Recompute(agentID string, now time.Time) (int, error)
	Completed(agentID string) (int, error)
}

// StatsRepository maintains the per-agent completed-session count as an
// eventually-consistent read model under "stats:{agent}". The count is
// always recomputed from the session rows, never incremented in place, so
// a retried recomputation converges instead of double counting.
type StatsRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sessions ISessionRepository
}

func NewStatsRepository(db *badger.DB, log *slog.Logger, sessions ISessionRepository) StatsRepository {
	return StatsRepository{db: db, log: log, sessions: sessions}
}

type StatsRow struct {
	Completed   int
	RefreshedAt time.Time
}

func statsKey(agentID string) []byte {
	return []byte("stats:" + agentID)
}

func (s StatsRepository) Recompute(agentID string, now time.Time) (int, error) {
	count, err := s.sessions.CompletedCount(agentID)
	if err != nil {
		return 0, err
	}
	data, err := encode(StatsRow{Completed: count, RefreshedAt: now})
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(statsKey(agentID), data)
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}
	s.log.Debug("Agent stats recomputed", "agent", agentID, "completed", count)
	return count, nil
}

// Completed returns the last recomputed count; zero when the agent has no
// row yet.
func (s StatsRepository) Completed(agentID string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statsKey(agentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var row StatsRow
		if err := item.Value(func(val []byte) error {
			return decode(val, &row)
		}); err != nil {
			return err
		}
		count = row.Completed
		return nil
	})
	return count, mapStoreErr(err)
}
