package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/api"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/audio"
)

var (
	// ErrNothingToSend is returned when a send carries no body, no
	// attachment and no recording.
	ErrNothingToSend = errors.New("nothing to send")

	// ErrSendInFlight is returned while a previous send for this
	// conversation has not resolved. The second call is dropped, not
	// queued.
	ErrSendInFlight = errors.New("a send is already in flight")

	// ErrAttachmentConflict is returned when both a picked attachment and
	// a recording are supplied; audio is exclusive with attachments per
	// send.
	ErrAttachmentConflict = errors.New("cannot send an attachment and a recording together")
)

// Poster is the slice of the REST client the send controller needs.
type Poster interface {
	Send(ctx context.Context, conversationID int64, req api.SendRequest) (*api.Message, error)
}

// SendInput is one user send action: text, a picked attachment, a
// finished recording, or text plus attachment.
type SendInput struct {
	Body       string
	Attachment *attach.Descriptor
	Audio      *audio.Result
}

// Controller orchestrates one send: build the optimistic message, insert
// it, perform the network call, then either swap in the confirmed message
// or roll the optimistic entry back. One send may be in flight per
// conversation at a time.
type Controller struct {
	conversationID int64
	self           Sender
	poster         Poster
	engine         *Engine
	tracker        *Tracker
	log            zerolog.Logger

	inFlight atomic.Bool
}

func NewController(conversationID int64, self Sender, poster Poster, engine *Engine, tracker *Tracker, log zerolog.Logger) *Controller {
	return &Controller{
		conversationID: conversationID,
		self:           self,
		poster:         poster,
		engine:         engine,
		tracker:        tracker,
		log: log.With().
			Str("component", "send_controller").
			Int64("conversation_id", conversationID).
			Logger(),
	}
}

// Send performs one send operation. On failure the optimistic entry is
// removed and the error is surfaced to the caller — there is no automatic
// retry; the user resends explicitly.
func (c *Controller) Send(ctx context.Context, in SendInput) (*Message, error) {
	if in.Body == "" && in.Attachment == nil && in.Audio == nil {
		return nil, ErrNothingToSend
	}
	if in.Attachment != nil && in.Audio != nil {
		return nil, ErrAttachmentConflict
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().Msg("Send ignored: previous send still in flight")
		return nil, ErrSendInFlight
	}
	defer c.inFlight.Store(false)

	desc := in.Attachment
	if in.Audio != nil {
		resolved := attach.Resolve(attach.Source{
			Path:         in.Audio.Path,
			DeclaredMIME: in.Audio.MIME,
			Name:         filepath.Base(in.Audio.Path),
		})
		desc = &resolved
	}

	tempID := c.tracker.NextTempID()
	pending := &PendingMessage{
		TempID:    tempID,
		Sender:    c.self,
		Body:      in.Body,
		CreatedAt: time.Now(),
	}
	if desc != nil {
		// Preview renders from the locally addressable path until the
		// server copy exists.
		pending.Attachment = &Attachment{
			Path:      desc.Path,
			Type:      desc.Kind,
			Name:      desc.Name,
			SizeBytes: desc.SizeBytes,
		}
	}

	// Register before the network call starts so a poll tick racing the
	// send response can never drop the optimistic entry.
	c.tracker.Register(tempID)
	c.engine.AppendPending(pending)

	wire, err := c.poster.Send(ctx, c.conversationID, api.SendRequest{
		Body:       in.Body,
		Attachment: desc,
	})
	if err != nil {
		c.engine.RemovePending(tempID)
		c.tracker.Resolve(tempID)
		c.log.Warn().Err(err).Int64("temp_id", tempID).Msg("Send failed, rolled back optimistic message")
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	msg := FromWire(*wire)
	c.engine.ConfirmPending(tempID, &msg)
	c.tracker.Resolve(tempID)

	// Open conversation implies read: anything unread from the other
	// participant observed during this flow gets marked locally.
	c.engine.MarkIncomingRead(c.self.ID, time.Now())

	c.log.Debug().
		Int64("temp_id", tempID).
		Int64("message_id", msg.ID).
		Bool("has_attachment", desc != nil).
		Msg("Send confirmed")
	return &msg, nil
}

// InFlight reports whether a send is currently unresolved.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}
