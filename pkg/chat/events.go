package chat

import "sync"

// Update is a timeline change notification: the full canonical snapshot
// after a mutation. Snapshots are cheap (slice of pointers) and make
// observers stateless — no diffing protocol to get wrong.
type Update struct {
	ConversationID int64
	Entries        []Entry
}

// UpdateFunc receives timeline updates. Callbacks run synchronously on
// the mutating goroutine and must not block.
type UpdateFunc func(Update)

// updateBus is the explicit observer registry owned by a ChatSession,
// replacing any ambient cross-component signaling. Its lifetime is the
// session's lifetime.
type updateBus struct {
	mu   sync.Mutex
	subs map[int]UpdateFunc
	next int
}

func newUpdateBus() *updateBus {
	return &updateBus{subs: make(map[int]UpdateFunc)}
}

// subscribe registers fn and returns its cancel function.
func (b *updateBus) subscribe(fn UpdateFunc) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *updateBus) publish(u Update) {
	b.mu.Lock()
	fns := make([]UpdateFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
