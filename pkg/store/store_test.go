package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cachedMessage(id int64, body string) chat.Message {
	return chat.Message{
		ID:        id,
		SenderID:  20,
		Body:      body,
		CreatedAt: time.UnixMilli(1_756_000_000_000 + id),
	}
}

func TestReplaceAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	readAt := time.UnixMilli(1_756_000_500_000)
	msgs := []chat.Message{
		cachedMessage(1, "first"),
		{
			ID:        2,
			SenderID:  10,
			Body:      "with file",
			IsRead:    true,
			ReadAt:    &readAt,
			CreatedAt: time.UnixMilli(1_756_000_100_000),
			Attachment: &chat.Attachment{
				Path:      "/uploads/pic.png",
				Type:      attach.KindImage,
				Name:      "pic.png",
				SizeBytes: 2048,
			},
		},
	}
	require.NoError(t, s.ReplaceConversation(ctx, 7, msgs))

	loaded, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(1), loaded[0].ID)
	assert.Equal(t, "first", loaded[0].Body)
	assert.Nil(t, loaded[0].Attachment)

	assert.Equal(t, int64(2), loaded[1].ID)
	assert.True(t, loaded[1].IsRead)
	require.NotNil(t, loaded[1].ReadAt)
	assert.Equal(t, readAt.UnixMilli(), loaded[1].ReadAt.UnixMilli())
	require.NotNil(t, loaded[1].Attachment)
	assert.Equal(t, attach.KindImage, loaded[1].Attachment.Type)
	assert.Equal(t, int64(2048), loaded[1].Attachment.SizeBytes)
}

func TestLoadPreservesServerOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Server order is positional, not sorted by ID.
	msgs := []chat.Message{cachedMessage(30, "a"), cachedMessage(10, "b"), cachedMessage(20, "c")}
	require.NoError(t, s.ReplaceConversation(ctx, 7, msgs))

	loaded, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	ids := make([]int64, len(loaded))
	for i, msg := range loaded {
		ids[i] = msg.ID
	}
	assert.Equal(t, []int64{30, 10, 20}, ids)
}

func TestReplaceIsWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceConversation(ctx, 7, []chat.Message{cachedMessage(1, "stale")}))
	require.NoError(t, s.ReplaceConversation(ctx, 7, []chat.Message{cachedMessage(2, "fresh")}))

	loaded, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(2), loaded[0].ID)
}

func TestConversationsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceConversation(ctx, 7, []chat.Message{cachedMessage(1, "seven")}))
	require.NoError(t, s.ReplaceConversation(ctx, 8, []chat.Message{cachedMessage(2, "eight")}))
	require.NoError(t, s.ReplaceConversation(ctx, 7, nil))

	loaded, err := s.LoadConversation(ctx, 8)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(2), loaded[0].ID)

	empty, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteMessage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceConversation(ctx, 7,
		[]chat.Message{cachedMessage(1, "keep"), cachedMessage(2, "drop")}))
	require.NoError(t, s.DeleteMessage(ctx, 7, 2))

	loaded, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(1), loaded[0].ID)
}

func TestPruneConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceConversation(ctx, 7, []chat.Message{cachedMessage(1, "bye")}))
	require.NoError(t, s.PruneConversation(ctx, 7))
	require.NoError(t, s.PruneConversation(ctx, 7)) // idempotent

	loaded, err := s.LoadConversation(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
