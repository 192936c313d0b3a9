// Package repositories persists the five guidance collections in BadgerDB.
// Rows are CBOR-encoded; keys carry a type prefix plus a zero-padded
// timestamp where chronological iteration matters.
package repositories

import (
	"errors"
	"fmt"

	errs "guidance-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

func encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// mapStoreErr translates badger failures into the core taxonomy. Taxonomy
// errors produced inside a transaction pass through untouched; anything
// else is a store-connectivity problem the caller must be able to tell
// apart from a business rejection.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		errs.ErrValidation, errs.ErrNotFound, errs.ErrForbidden,
		errs.ErrInvalidTransition, errs.ErrConflict, errs.ErrSlotTaken,
		errs.ErrSessionClosed,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errs.ErrNotFound
	}
	if errors.Is(err, badger.ErrConflict) {
		return errs.ErrConflict
	}
	return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
}
