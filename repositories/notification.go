//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type INotificationRepository interface {
	Store(n domain.Notification) error
	List(agentID string, limit int) ([]domain.Notification, error)
	MarkRead(id uuid.UUID) error
	MarkAllRead(agentID string) (int, error)
}

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

type NotificationRow struct {
	ID        string
	AgentID   string
	Type      string
	Title     string
	Message   string
	SessionID string // empty when the notification is not session-scoped
	IsRead    bool
	CreatedAt time.Time
}

// Primary key "ntf:{agent}:{timestamp_padded}:{uuid}" keeps an agent's feed
// in chronological order under a prefix scan. The secondary "ntfidx:{uuid}"
// entry points back at the primary key so MarkRead can address a single
// row without scanning the feed.
func notificationKey(agentID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("ntf:%s:%019d:%s", agentID, at.UnixNano(), id))
}

func notificationIndexKey(id uuid.UUID) []byte {
	return []byte("ntfidx:" + id.String())
}

func (n NotificationRepository) Store(notification domain.Notification) error {
	data, err := encode(fromNotification(notification))
	if err != nil {
		return err
	}
	key := notificationKey(notification.AgentID, notification.CreatedAt, notification.ID)
	return mapStoreErr(n.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(notificationIndexKey(notification.ID), key)
	}))
}

// List returns the agent's most recent notifications, newest first, capped
// at limit. Reverse iteration seeks past the largest possible timestamp
// and walks backwards, the same trick the message feed uses for cursors.
func (n NotificationRepository) List(agentID string, limit int) ([]domain.Notification, error) {
	var rows []NotificationRow
	err := n.db.View(func(txn *badger.Txn) error {
		prefix := []byte("ntf:" + agentID + ":")
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(rows) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var row NotificationRow
				if err := decode(val, &row); err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return toNotifications(rows)
}

// MarkRead flips one notification; flipping an already-read row is a no-op
// success.
func (n NotificationRepository) MarkRead(id uuid.UUID) error {
	return mapStoreErr(n.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(notificationIndexKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: notification %s", errs.ErrNotFound, id)
			}
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return flipRead(txn, key)
	}))
}

// MarkAllRead flips every unread notification of the agent and returns how
// many were flipped. Idempotent: a second call flips nothing.
func (n NotificationRepository) MarkAllRead(agentID string) (int, error) {
	count := 0
	err := n.db.Update(func(txn *badger.Txn) error {
		prefix := []byte("ntf:" + agentID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var unread [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				var row NotificationRow
				if err := decode(val, &row); err != nil {
					return err
				}
				if !row.IsRead {
					unread = append(unread, key)
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()
		for _, key := range unread {
			if err := flipRead(txn, key); err != nil {
				return err
			}
		}
		count = len(unread)
		return nil
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

func flipRead(txn *badger.Txn, key []byte) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	var row NotificationRow
	if err := item.Value(func(val []byte) error {
		return decode(val, &row)
	}); err != nil {
		return err
	}
	if row.IsRead {
		return nil
	}
	row.IsRead = true
	data, err := encode(row)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func fromNotification(n domain.Notification) NotificationRow {
	row := NotificationRow{
		ID:        n.ID.String(),
		AgentID:   n.AgentID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.SessionID != nil {
		row.SessionID = n.SessionID.String()
	}
	return row
}

func toNotifications(rows []NotificationRow) ([]domain.Notification, error) {
	var firstErr error
	notifications := lo.FilterMap(rows, func(row NotificationRow, _ int) (domain.Notification, bool) {
		n, err := toNotification(row)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return n, err == nil
	})
	return notifications, firstErr
}

func toNotification(row NotificationRow) (domain.Notification, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		ID:        id,
		AgentID:   row.AgentID,
		Type:      domain.NotificationType(row.Type),
		Title:     row.Title,
		Message:   row.Message,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
	}
	if row.SessionID != "" {
		sessionID, err := uuid.Parse(row.SessionID)
		if err != nil {
			return domain.Notification{}, err
		}
		n.SessionID = &sessionID
	}
	return n, nil
}
