// Package search maintains a full-text index of sessions so managers can
// find engagements by topic or description.
package search

import (
	"context"
	"log/slog"

	"guidance-lab/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// NewIndex wraps an already-opened bluge writer; the caller owns its
// lifecycle.
func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// IndexSession upserts one session document keyed by its ID.
func (i *Index) IndexSession(s domain.Session) error {
	doc := bluge.NewDocument(s.ID.String()).
		AddField(bluge.NewTextField("topic", s.Topic).StoreValue()).
		AddField(bluge.NewTextField("description", s.Description)).
		AddField(bluge.NewKeywordField("requester", s.RequesterID)).
		AddField(bluge.NewKeywordField("status", string(s.Status)))
	return i.writer.Update(doc.ID(), doc)
}

// UpdateStatus re-indexes a session after a lifecycle change.
func (i *Index) UpdateStatus(s domain.Session) error {
	return i.IndexSession(s)
}

// Search returns the IDs of sessions whose topic or description match the
// term, best first, capped at limit.
func (i *Index) Search(ctx context.Context, term string, limit int) ([]uuid.UUID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "err", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(term).SetField("topic")).
		AddShould(bluge.NewMatchQuery(term).SetField("description"))
	request := bluge.NewTopNSearch(limit, query)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
