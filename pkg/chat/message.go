// Package chat implements the message synchronization core for one open
// conversation: optimistic sends, the poll/merge loop, read receipts and
// the canonical ordered timeline the UI renders.
package chat

import (
	"time"

	"go.mau.fi/util/ptr"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/api"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
)

// wireMessage aliases the REST client's message shape; the engine's
// Fetcher interface is expressed in terms of it so fakes in tests don't
// need the HTTP layer.
type wireMessage = api.Message

// Sender is the identity snapshot captured at send time, denormalized so
// rendering never depends on a separate user lookup.
type Sender struct {
	ID        int64
	Name      string
	AvatarURL string
}

// Attachment describes a message's file payload. Path may be a local
// preview path (pending messages), an absolute URL or a server-relative
// storage path (confirmed messages); resolution is the renderer's job.
type Attachment struct {
	Path      string
	Type      attach.Kind
	Name      string
	SizeBytes int64
}

// Entry is one row of a conversation timeline — either a server-confirmed
// Message or a locally pending PendingMessage, never a hybrid. The
// unexported method seals the union so an entry cannot carry a server ID
// and a temp ID at once.
type Entry interface {
	timelineEntry()
	When() time.Time
}

// Message is a server-confirmed message. Its read state is mutated only
// from server responses mirrored in on fetch, plus the local
// open-conversation-implies-read mark after a successful send.
type Message struct {
	ID         int64
	SenderID   int64
	Body       string
	Attachment *Attachment
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
}

func (*Message) timelineEntry() {}

func (m *Message) When() time.Time { return m.CreatedAt }

// PendingMessage is an optimistic local message: rendered immediately on
// user action, alive until the send response is merged in or the send
// fails and it is rolled back.
type PendingMessage struct {
	TempID     int64
	Sender     Sender
	Body       string
	Attachment *Attachment
	CreatedAt  time.Time
}

func (*PendingMessage) timelineEntry() {}

func (p *PendingMessage) When() time.Time { return p.CreatedAt }

// createdAtLayouts are the timestamp shapes the backend has been observed
// to emit. RFC3339 is the documented one.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseServerTime(raw string) time.Time {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// FromWire converts a server message into the domain model. The
// attachment classifier is taken from the server when present and
// re-derived from the path otherwise, so old rows without a type column
// still render sensibly.
func FromWire(w api.Message) Message {
	msg := Message{
		ID:        w.ID,
		SenderID:  w.SenderID,
		Body:      w.Body,
		IsRead:    w.IsRead,
		CreatedAt: parseServerTime(w.CreatedAt),
	}
	if raw := ptr.Val(w.ReadAt); raw != "" {
		if ts := parseServerTime(raw); !ts.IsZero() {
			msg.ReadAt = &ts
		}
	}
	if path := ptr.Val(w.AttachmentPath); path != "" {
		att := &Attachment{
			Path:      path,
			Type:      attach.Kind(ptr.Val(w.AttachmentType)),
			Name:      ptr.Val(w.AttachmentName),
			SizeBytes: ptr.Val(w.AttachmentSize),
		}
		if att.Type == "" {
			att.Type = attach.KindFile
		}
		msg.Attachment = att
	}
	return msg
}
