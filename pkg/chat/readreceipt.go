package chat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ReadMarker is the slice of the REST client the receipt tracker needs.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID int64) error
}

// ReadReceiptTracker issues best-effort mark-conversation-read calls
// while the conversation screen is in the foreground. Failures are
// logged, not retried and never surfaced; the next successful poll mirrors
// the server's authoritative read state either way. Read flags on
// incoming messages are never set optimistically ahead of the server by
// this tracker.
type ReadReceiptTracker struct {
	conversationID int64
	marker         ReadMarker
	log            zerolog.Logger

	foreground atomic.Bool
	marking    atomic.Bool
}

const markReadTimeout = 15 * time.Second

func NewReadReceiptTracker(conversationID int64, marker ReadMarker, log zerolog.Logger) *ReadReceiptTracker {
	return &ReadReceiptTracker{
		conversationID: conversationID,
		marker:         marker,
		log: log.With().
			Str("component", "read_receipts").
			Int64("conversation_id", conversationID).
			Logger(),
	}
}

// SetForeground records whether the conversation screen is active.
// Receipts are only sent while it is.
func (t *ReadReceiptTracker) SetForeground(active bool) {
	t.foreground.Store(active)
}

func (t *ReadReceiptTracker) Foreground() bool {
	return t.foreground.Load()
}

// OnFetchSuccess fires after every successful poll. The mark-read call is
// fire-and-forget; at most one is in flight so slow responses don't stack
// goroutines across ticks.
func (t *ReadReceiptTracker) OnFetchSuccess() {
	if !t.foreground.Load() {
		return
	}
	if !t.marking.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer t.marking.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		if err := t.marker.MarkRead(ctx, t.conversationID); err != nil {
			t.log.Debug().Err(err).Msg("Mark-read failed (best effort, not retried)")
		}
	}()
}
