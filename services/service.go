// Package services exposes the operation surface of the guidance core.
// Each service is one transaction-scoped interaction with the record
// store; transport adapters (REST, RPC, in-process) sit on top of these.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"guidance-lab/domain/event"
	errs "guidance-lab/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// budget reports whether the caller's time budget is already spent, mapped
// to the taxonomy so transports can distinguish it from a store failure.
func budget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}
	return nil
}

// emit hands an event to the fanout pipeline. The send blocks so per-
// session ordering survives backpressure; a caller that gave up releases
// the slot via its context.
func emit(ctx context.Context, events chan<- event.DomainEvent, log *slog.Logger, e event.DomainEvent) {
	if events == nil {
		return
	}
	select {
	case events <- e:
	case <-ctx.Done():
		log.Warn("Event not emitted, caller context done", "event", fmt.Sprintf("%T", e))
	}
}
