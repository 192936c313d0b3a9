//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"guidance-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	List(sessionID uuid.UUID) ([]domain.Message, error)
	MarkRead(sessionID uuid.UUID, readerID string) (int, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *atomic.Uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log, seq: &atomic.Uint64{}}
}

// MessageRow is the stored shape of one chat turn.
type MessageRow struct {
	ID         string
	SessionID  string
	SenderID   string
	SenderType string
	Content    string
	IsRead     bool
	CreatedAt  time.Time
}

// messageKey is formatted as "msg:{session}:{timestamp_padded}:{seq_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Break ties by insertion order via a per-process monotonic sequence
//     when two messages land on the same nanosecond. The UUID only
//     guarantees key uniqueness.
func messageKey(sessionID uuid.UUID, at time.Time, seq uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d:%s", sessionID, at.UnixNano(), seq, id))
}

func (m MessageRepository) Store(message domain.Message) error {
	data, err := encode(fromMessage(message))
	if err != nil {
		return err
	}
	key := messageKey(message.SessionID, message.CreatedAt, m.seq.Add(1), message.ID)
	return mapStoreErr(m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}))
}

// List returns the full session transcript ascending by CreatedAt. Thanks
// to the padded timestamp in the key, a forward prefix scan is already in
// the right order.
func (m MessageRepository) List(sessionID uuid.UUID) ([]domain.Message, error) {
	var rows []MessageRow
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + sessionID.String() + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var row MessageRow
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
	return toMessages(rows)
}

// MarkRead flips IsRead on every message in the session authored by
// someone other than the reader. Re-invoking finds nothing left to flip,
// so the operation is idempotent. Returns the number of rows updated.
func (m MessageRepository) MarkRead(sessionID uuid.UUID, readerID string) (int, error) {
	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + sessionID.String() + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		type pending struct {
			key  []byte
			data []byte
		}
		var updates []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				var row MessageRow
				if err := decode(val, &row); err != nil {
					return err
				}
				if row.IsRead || row.SenderID == readerID {
					return nil
				}
				row.IsRead = true
				data, err := encode(row)
				if err != nil {
					return err
				}
				updates = append(updates, pending{key: key, data: data})
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		// Writes happen after the iterator is released; badger forbids
		// mutating a transaction that still has one open.
		it.Close()
		for _, u := range updates {
			if err := txn.Set(u.key, u.data); err != nil {
				return err
			}
		}
		count = len(updates)
		return nil
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

func fromMessage(m domain.Message) MessageRow {
	return MessageRow{
		ID:         m.ID.String(),
		SessionID:  m.SessionID.String(),
		SenderID:   m.SenderID,
		SenderType: string(m.SenderType),
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func toMessages(rows []MessageRow) ([]domain.Message, error) {
	var firstErr error
	messages := lo.FilterMap(rows, func(row MessageRow, _ int) (domain.Message, bool) {
		m, err := toMessage(row)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return m, err == nil
	})
	return messages, firstErr
}

func toMessage(row MessageRow) (domain.Message, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return domain.Message{}, err
	}
	sessionID, err := uuid.Parse(row.SessionID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         id,
		SessionID:  sessionID,
		SenderID:   row.SenderID,
		SenderType: domain.SenderType(row.SenderType),
		Content:    row.Content,
		IsRead:     row.IsRead,
		CreatedAt:  row.CreatedAt,
	}, nil
}
