package chat

import (
	"sync"
	"time"
)

// Tracker owns temporary message identity: it allocates temp IDs and
// tracks which of them still have a send in flight. The merge step in the
// engine consults IsPending to decide whether a local entry survives a
// fetch; the send controller calls Resolve on both the success and the
// rollback path.
//
// Invariant: every pending entry in the timeline has its temp ID in this
// set. The reverse may lag by one tick — a resolved ID can be cleaned from
// the list slightly after the tracker — but never the other way around.
type Tracker struct {
	mu      sync.Mutex
	lastID  int64
	pending map[int64]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[int64]struct{})}
}

// NextTempID returns a unix-millisecond timestamp bumped to be strictly
// monotonic, so two sends in the same millisecond still get distinct IDs
// and ordering among pending messages follows allocation order.
func (t *Tracker) NextTempID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= t.lastID {
		id = t.lastID + 1
	}
	t.lastID = id
	return id
}

// Register adds a temp ID to the in-flight set. Called at the moment the
// optimistic message is inserted, before the network call starts.
func (t *Tracker) Register(tempID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[tempID] = struct{}{}
}

func (t *Tracker) IsPending(tempID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[tempID]
	return ok
}

// Resolve retires a temp ID once the send succeeded and was merged, or
// failed and was rolled back. Resolving an unknown ID is a no-op.
func (t *Tracker) Resolve(tempID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, tempID)
}

func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
