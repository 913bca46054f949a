// lionsgeek-chat - Chat sync core for the LionsGeek mobile client.
// Copyright (C) 2026 LionsGeek
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// API is the full REST surface one open conversation consumes.
type API interface {
	Fetcher
	Poster
	ReadMarker
	DeleteMessage(ctx context.Context, messageID int64) error
}

// Cache persists fetched messages locally so a reopened conversation
// renders its last known history before the first poll completes. The
// server always overwrites it; nothing outbound is ever queued here.
type Cache interface {
	LoadConversation(ctx context.Context, conversationID int64) ([]Message, error)
	ReplaceConversation(ctx context.Context, conversationID int64, msgs []Message) error
	DeleteMessage(ctx context.Context, conversationID, messageID int64) error
}

// SessionOptions configure one open conversation.
type SessionOptions struct {
	// Self is the local user's identity snapshot, stamped onto optimistic
	// messages.
	Self Sender
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// Cache is optional; nil disables local persistence.
	Cache Cache
	// Foreground is the initial screen state; read receipts are only sent
	// while foregrounded.
	Foreground bool
}

// Session is the ownership context for one open conversation: it wires
// the sync engine, optimistic tracker, send controller and read-receipt
// tracker together and ties their timers and resources to the
// conversation's lifecycle. All cross-component signaling goes through
// the session's observer bus — there is no package-level mutable state.
type Session struct {
	ConversationID int64

	client   API
	engine   *Engine
	tracker  *Tracker
	sender   *Controller
	receipts *ReadReceiptTracker
	cache    Cache
	bus      *updateBus
	log      zerolog.Logger

	closeOnce sync.Once
}

// OpenSession builds and starts a session. The prior conversation's
// session must be closed first — its Close stops the poll timer, so a
// stray timer can never point at a closed conversation.
func OpenSession(client API, conversationID int64, opts SessionOptions, log zerolog.Logger) *Session {
	log = log.With().Int64("conversation_id", conversationID).Logger()
	tracker := NewTracker()
	engine := NewEngine(conversationID, client, tracker, opts.PollInterval, log)

	s := &Session{
		ConversationID: conversationID,
		client:         client,
		engine:         engine,
		tracker:        tracker,
		sender:         NewController(conversationID, opts.Self, client, engine, tracker, log),
		receipts:       NewReadReceiptTracker(conversationID, client, log),
		cache:          opts.Cache,
		bus:            newUpdateBus(),
		log:            log.With().Str("component", "session").Logger(),
	}
	s.receipts.SetForeground(opts.Foreground)

	engine.onUpdate = s.onTimelineUpdate
	engine.onFetchSuccess = s.receipts.OnFetchSuccess

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if cached, err := s.cache.LoadConversation(ctx, conversationID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to load cached conversation")
		} else {
			engine.Seed(cached)
		}
		cancel()
	}

	engine.Start()
	return s
}

// Close stops polling and detaches the session. Idempotent; called on
// screen unmount and before opening another conversation.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.engine.Stop()
		s.log.Debug().Msg("Session closed")
	})
}

// Send performs one send through the conversation's controller.
func (s *Session) Send(ctx context.Context, in SendInput) (*Message, error) {
	return s.sender.Send(ctx, in)
}

// Delete removes a confirmed message. The local list (and cache) are only
// touched after the server acknowledges; on failure the message stays and
// the error is surfaced.
func (s *Session) Delete(ctx context.Context, messageID int64) error {
	if err := s.client.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	s.engine.RemoveConfirmed(messageID)
	if s.cache != nil {
		if err := s.cache.DeleteMessage(ctx, s.ConversationID, messageID); err != nil {
			s.log.Warn().Err(err).Int64("message_id", messageID).Msg("Failed to delete cached message")
		}
	}
	return nil
}

// Messages returns the current canonical timeline snapshot.
func (s *Session) Messages() []Entry {
	return s.engine.Snapshot()
}

// SetPollInterval applies a hot-reloaded poll cadence to the running
// engine.
func (s *Session) SetPollInterval(interval time.Duration) {
	s.engine.SetPollInterval(interval)
}

// SetForeground toggles the read-receipt gate with screen focus.
func (s *Session) SetForeground(active bool) {
	s.receipts.SetForeground(active)
}

// Subscribe registers an observer for timeline updates and returns its
// cancel function.
func (s *Session) Subscribe(fn UpdateFunc) func() {
	return s.bus.subscribe(fn)
}

// onTimelineUpdate fans a fresh snapshot out to observers and mirrors
// confirmed messages into the cache.
func (s *Session) onTimelineUpdate(entries []Entry) {
	s.bus.publish(Update{ConversationID: s.ConversationID, Entries: entries})
	if s.cache == nil {
		return
	}
	confirmed := make([]Message, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(*Message); ok {
			confirmed = append(confirmed, *m)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.ReplaceConversation(ctx, s.ConversationID, confirmed); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist conversation cache")
	}
}
