package domain

import "time"

// PresenceRecord tracks one agent's reachability. The stored flag alone is
// unreliable after an ungraceful disconnect, so reachability is always the
// two-part check in Reachable, never the raw flag.
type PresenceRecord struct {
	AgentID    string
	IsOnline   bool
	LastSeenAt time.Time
}

// Reachable reports whether the agent is truly online: flagged online AND
// seen within the staleness threshold. A crashed client that stopped
// heartbeating expires here without any reconciliation job.
func (p PresenceRecord) Reachable(now time.Time, staleness time.Duration) bool {
	return p.IsOnline && now.Sub(p.LastSeenAt) < staleness
}
