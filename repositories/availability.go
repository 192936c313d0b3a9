//go:generate go run go.uber.org/mock/mockgen -source=availability.go -destination=../mocks/mock_availability_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

type IAvailabilityRepository interface {
	SaveWeek(agentID string, week []domain.AvailabilityWindow) error
	Week(agentID string) ([]domain.AvailabilityWindow, error)
	Window(agentID string, day time.Weekday) (domain.AvailabilityWindow, error)
	EnsureDefaults(agentID string) error
}

// AvailabilityRepository keeps exactly one row per (agent, weekday) under
// "avail:{agent}:{weekday}". Saving is an upsert, never an append.
type AvailabilityRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAvailabilityRepository(db *badger.DB, log *slog.Logger) AvailabilityRepository {
	return AvailabilityRepository{db: db, log: log}
}

type AvailabilityRow struct {
	IsAvailable bool
	StartTime   string
	EndTime     string
}

func availabilityKey(agentID string, day time.Weekday) []byte {
	return []byte(fmt.Sprintf("avail:%s:%d", agentID, day))
}

// SaveWeek replaces the given windows wholesale inside one transaction.
func (a AvailabilityRepository) SaveWeek(agentID string, week []domain.AvailabilityWindow) error {
	return mapStoreErr(a.db.Update(func(txn *badger.Txn) error {
		for _, w := range week {
			data, err := encode(AvailabilityRow{
				IsAvailable: w.IsAvailable,
				StartTime:   w.StartTime,
				EndTime:     w.EndTime,
			})
			if err != nil {
				return err
			}
			if err := txn.Set(availabilityKey(agentID, w.Day), data); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (a AvailabilityRepository) Week(agentID string) ([]domain.AvailabilityWindow, error) {
	var week []domain.AvailabilityWindow
	err := a.db.View(func(txn *badger.Txn) error {
		for day := time.Sunday; day <= time.Saturday; day++ {
			w, err := readWindow(txn, agentID, day)
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			week = append(week, w)
		}
		return nil
	})
	return week, mapStoreErr(err)
}

func (a AvailabilityRepository) Window(agentID string, day time.Weekday) (domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		w, err = readWindow(txn, agentID, day)
		return err
	})
	return w, mapStoreErr(err)
}

// EnsureDefaults writes the onboarding week once; existing rows win.
func (a AvailabilityRepository) EnsureDefaults(agentID string) error {
	return mapStoreErr(a.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(availabilityKey(agentID, time.Monday)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		for _, w := range domain.DefaultWeek(agentID) {
			data, err := encode(AvailabilityRow{
				IsAvailable: w.IsAvailable,
				StartTime:   w.StartTime,
				EndTime:     w.EndTime,
			})
			if err != nil {
				return err
			}
			if err := txn.Set(availabilityKey(agentID, w.Day), data); err != nil {
				return err
			}
		}
		return nil
	}))
}

func readWindow(txn *badger.Txn, agentID string, day time.Weekday) (domain.AvailabilityWindow, error) {
	item, err := txn.Get(availabilityKey(agentID, day))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.AvailabilityWindow{}, fmt.Errorf("%w: availability %s/%s", errs.ErrNotFound, agentID, day)
		}
		return domain.AvailabilityWindow{}, err
	}
	var row AvailabilityRow
	if err := item.Value(func(val []byte) error {
		return decode(val, &row)
	}); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	return domain.AvailabilityWindow{
		AgentID:     agentID,
		Day:         day,
		IsAvailable: row.IsAvailable,
		StartTime:   row.StartTime,
		EndTime:     row.EndTime,
	}, nil
}
