package track

import (
	"sync"
	"time"
)

// HistoryWindow keeps a small time-ordered window of recent messages per user,
// used as conversational context for the classifier. Thread-safe: Push takes
// the write lock, Context the read lock.
//
// The window tolerates out-of-order arrival (edits delivered after newer
// messages): an entry with a timestamp between the current bounds is placed at
// its chronological position, an entry at or before the retained minimum or
// with a duplicate timestamp is silently dropped.
type HistoryWindow struct {
	users    map[int64]*userHistory
	capacity int
	lock     sync.RWMutex
}

type entry struct {
	ts   time.Time
	text string
}

type userHistory struct {
	min     time.Time
	max     time.Time
	entries []entry
}

// NewHistoryWindow makes a window keeping up to capacity entries per user.
func NewHistoryWindow(capacity int) *HistoryWindow {
	// minimum capacity is 1
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryWindow{users: make(map[int64]*userHistory), capacity: capacity}
}

// Push inserts a message into the user's window. Always succeeds; stale or
// duplicate-timestamp entries are dropped rather than reported as errors.
func (h *HistoryWindow) Push(userID int64, ts time.Time, text string) {
	h.lock.Lock()
	defer h.lock.Unlock()

	uh, ok := h.users[userID]
	if !ok {
		uh = &userHistory{}
		h.users[userID] = uh
	}

	if len(uh.entries) == 0 {
		uh.entries = append(uh.entries, entry{ts: ts, text: text})
		uh.recalcBounds()
		return
	}

	switch {
	case ts.After(uh.max):
		uh.entries = append(uh.entries, entry{ts: ts, text: text})
	case ts.After(uh.min) && ts.Before(uh.max):
		pos := uh.position(ts)
		if pos < 0 { // duplicate timestamp, drop
			return
		}
		uh.entries = append(uh.entries, entry{})
		copy(uh.entries[pos+1:], uh.entries[pos:])
		uh.entries[pos] = entry{ts: ts, text: text}
	default:
		// at or before the retained minimum, or equal to max - drop
		return
	}

	if len(uh.entries) > h.capacity {
		uh.entries = uh.entries[1:] // evict the chronologically oldest
	}
	uh.recalcBounds()
}

// Context returns, in chronological order, the text of retained entries whose
// age relative to ref is less than window.
func (h *HistoryWindow) Context(userID int64, ref time.Time, window time.Duration) []string {
	h.lock.RLock()
	defer h.lock.RUnlock()

	uh, ok := h.users[userID]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(uh.entries))
	for _, e := range uh.entries {
		if ref.Sub(e.ts) < window {
			res = append(res, e.text)
		}
	}
	return res
}

// Count returns the number of retained entries for a user.
func (h *HistoryWindow) Count(userID int64) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if uh, ok := h.users[userID]; ok {
		return len(uh.entries)
	}
	return 0
}

// position finds the insert index for ts, or -1 if an entry with the same
// timestamp already exists. Entries are sorted ascending by timestamp.
func (u *userHistory) position(ts time.Time) int {
	for i, e := range u.entries {
		if e.ts.Equal(ts) {
			return -1
		}
		if e.ts.After(ts) {
			return i
		}
	}
	return len(u.entries)
}

func (u *userHistory) recalcBounds() {
	u.min = u.entries[0].ts
	u.max = u.entries[len(u.entries)-1].ts
}
