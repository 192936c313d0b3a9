//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"guidance-lab/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events. Delivery is at-least-once; sinks must
// deduplicate by entity ID.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live subscribers: session watchers receive chat and
// lifecycle events for one session, agent watchers receive notification
// pushes addressed to one agent.
type IRegistry interface {
	SinksForSession(sessionID uuid.UUID) []EventSink
	SinksForAgent(agentID string) []EventSink
	WatchSession(watcherID string, sessionID uuid.UUID, sink EventSink)
	UnwatchSession(watcherID string, sessionID uuid.UUID)
	WatchAgent(watcherID, agentID string, sink EventSink)
	UnwatchAgent(watcherID, agentID string)
}
