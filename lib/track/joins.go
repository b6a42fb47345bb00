// Package track keeps in-memory, process-scoped state about users seen in the
// monitored chat: first-known join dates and a bounded window of recent
// messages per user. All state is rebuilt from live traffic on restart.
package track

import (
	"sync"
	"time"
)

// JoinRegistry records the first-known join timestamp per user.
// First write wins: once a timestamp is stored for a user, later writes with
// a different value are no-ops. Thread-safe.
type JoinRegistry struct {
	joins map[int64]time.Time
	lock  sync.Mutex
}

// NewJoinRegistry makes an empty registry.
func NewJoinRegistry() *JoinRegistry {
	return &JoinRegistry{joins: make(map[int64]time.Time)}
}

// Add records the join timestamp for a user if none is known yet.
// Returns true if the timestamp was recorded, false if a record already existed.
// The check and insert happen under the same lock, so exactly one of several
// concurrent first-writers wins.
func (r *JoinRegistry) Add(userID int64, ts time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.joins[userID]; ok {
		return false
	}
	r.joins[userID] = ts
	return true
}

// JoinDate returns the stored join timestamp for a user, if any.
func (r *JoinRegistry) JoinDate(userID int64) (time.Time, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	ts, ok := r.joins[userID]
	return ts, ok
}

// IsRecent reports if the user's account should be treated as new.
// Unknown users are treated as new, i.e. the check fails closed.
func (r *JoinRegistry) IsRecent(userID int64, now time.Time, threshold time.Duration) bool {
	ts, ok := r.JoinDate(userID)
	if !ok {
		return true
	}
	return now.Sub(ts) <= threshold
}
