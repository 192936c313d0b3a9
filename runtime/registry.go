// Package runtime handles event propagation and supervision of the
// long-running pieces. It orchestrates the system without containing
// business rules.
package runtime

import (
	"sync"

	"guidance-lab/contract"

	"github.com/google/uuid"
)

type Set map[string]struct{}

// Registry tracks live subscriber connections: chat watchers per session
// and notification watchers per agent. A watcher's connection (its sink)
// is held once, whatever it watches.
type Registry struct {
	mu              sync.RWMutex
	sinks           map[string]contract.EventSink
	sessionWatchers map[uuid.UUID]Set
	agentWatchers   map[string]Set
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:           make(map[string]contract.EventSink),
		sessionWatchers: make(map[uuid.UUID]Set),
		agentWatchers:   make(map[string]Set),
	}
}

// SinksForSession resolves the active connections watching one session.
// Two-step lookup: watcher IDs via sessionWatchers, then their sinks.
// Returns nil when nobody is watching.
func (r *Registry) SinksForSession(sessionID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.sessionWatchers[sessionID]
	if !ok {
		return nil
	}
	var active []contract.EventSink
	for watcherID := range watchers {
		if sink, exists := r.sinks[watcherID]; exists {
			active = append(active, sink)
		}
	}
	return active
}

// SinksForAgent resolves the active connections subscribed to one agent's
// notification feed.
func (r *Registry) SinksForAgent(agentID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.agentWatchers[agentID]
	if !ok {
		return nil
	}
	var active []contract.EventSink
	for watcherID := range watchers {
		if sink, exists := r.sinks[watcherID]; exists {
			active = append(active, sink)
		}
	}
	return active
}

func (r *Registry) WatchSession(watcherID string, sessionID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[watcherID] = sink
	if _, ok := r.sessionWatchers[sessionID]; !ok {
		r.sessionWatchers[sessionID] = make(Set)
	}
	r.sessionWatchers[sessionID][watcherID] = struct{}{}
}

// UnwatchSession removes the watcher from the session and drops empty sets
// so the maps don't leak over time.
func (r *Registry) UnwatchSession(watcherID string, sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if watchers, ok := r.sessionWatchers[sessionID]; ok {
		delete(watchers, watcherID)
		if len(watchers) == 0 {
			delete(r.sessionWatchers, sessionID)
		}
	}
	r.dropSinkIfUnused(watcherID)
}

func (r *Registry) WatchAgent(watcherID, agentID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[watcherID] = sink
	if _, ok := r.agentWatchers[agentID]; !ok {
		r.agentWatchers[agentID] = make(Set)
	}
	r.agentWatchers[agentID][watcherID] = struct{}{}
}

func (r *Registry) UnwatchAgent(watcherID, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if watchers, ok := r.agentWatchers[agentID]; ok {
		delete(watchers, watcherID)
		if len(watchers) == 0 {
			delete(r.agentWatchers, agentID)
		}
	}
	r.dropSinkIfUnused(watcherID)
}

// dropSinkIfUnused releases the connection once no subscription references
// it anymore. Caller holds the write lock.
func (r *Registry) dropSinkIfUnused(watcherID string) {
	for _, watchers := range r.sessionWatchers {
		if _, ok := watchers[watcherID]; ok {
			return
		}
	}
	for _, watchers := range r.agentWatchers {
		if _, ok := watchers[watcherID]; ok {
			return
		}
	}
	delete(r.sinks, watcherID)
}
