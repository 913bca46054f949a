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
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is the conversation-screen poll cadence. The chat
// list's unread badge refreshes on its own, longer interval (see
// UnreadPoller).
const DefaultPollInterval = 4 * time.Second

// Fetcher is the slice of the REST client the engine needs.
type Fetcher interface {
	Messages(ctx context.Context, conversationID int64) ([]wireMessage, error)
}

// Engine owns the authoritative, deduplicated, chronologically ordered
// message list for one open conversation and the poll loop that keeps it
// fresh.
//
// Merge rule on every successful fetch:
//  1. fetched messages become the confirmed prefix, in server order;
//  2. a pending entry whose temp ID now appears as a fetched ID is
//     discarded — it was confirmed server-side through another path and
//     keeping it would render a duplicate bubble;
//  3. remaining pending entries are appended after all confirmed
//     messages, preserving client insertion order.
//
// A send response and a poll tick may race freely: the pending entry
// survives until explicitly resolved, and rule 2 collapses the duplicate
// if the poll wins.
type Engine struct {
	conversationID int64
	fetcher        Fetcher
	tracker        *Tracker
	log            zerolog.Logger

	mu       sync.Mutex
	interval time.Duration
	entries  []Entry
	running  bool
	stopChan chan struct{}

	// onUpdate receives a fresh snapshot after every timeline mutation.
	// onFetchSuccess fires after each successful poll (read-receipt hook).
	// Both are set once by the owning session before Start.
	onUpdate       func([]Entry)
	onFetchSuccess func()

	fetchFailures int64
}

func NewEngine(conversationID int64, fetcher Fetcher, tracker *Tracker, interval time.Duration, log zerolog.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		conversationID: conversationID,
		fetcher:        fetcher,
		tracker:        tracker,
		interval:       interval,
		log: log.With().
			Str("component", "sync_engine").
			Int64("conversation_id", conversationID).
			Logger(),
	}
}

// Start launches the poll loop. Starting an already-running engine is a
// no-op — there is never more than one timer per open conversation.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.log.Debug().Msg("Engine already running, ignoring duplicate start")
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	interval := e.interval
	e.mu.Unlock()

	e.log.Debug().Dur("interval", interval).Msg("Starting message poll loop")
	go e.run(stop)
}

// Stop cancels the poll timer. Idempotent and safe to call from any
// teardown path (screen unmount, conversation switch, process exit).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopChan)
	e.log.Debug().Msg("Stopped message poll loop")
}

// SetPollInterval applies a new poll cadence, typically after a config
// hot reload. A running loop is restarted so the change takes effect
// immediately; a stopped engine picks it up on the next Start.
func (e *Engine) SetPollInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	e.mu.Lock()
	if interval == e.interval {
		e.mu.Unlock()
		return
	}
	e.interval = interval
	if !e.running {
		e.mu.Unlock()
		return
	}
	close(e.stopChan)
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	e.mu.Unlock()

	e.log.Debug().Dur("interval", interval).Msg("Poll interval changed, restarting loop")
	go e.run(stop)
}

func (e *Engine) pollInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

func (e *Engine) run(stop chan struct{}) {
	// First fetch immediately so an opened conversation isn't blank for a
	// full interval.
	e.tick(stop)

	ticker := time.NewTicker(e.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.tick(stop)
		}
	}
}

// tick runs one guarded poll pass. A panic in a tick must not kill the
// loop — subsequent ticks still run.
func (e *Engine) tick(stop chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("stack", string(debug.Stack())).
				Msgf("Panic in poll tick recovered: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), e.pollInterval()*3)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	_ = e.FetchOnce(ctx)
}

// FetchOnce performs a single fetch-and-merge pass. A failed fetch leaves
// the list untouched and is retried next tick; polling is best-effort and
// never surfaces an error to the user.
func (e *Engine) FetchOnce(ctx context.Context) error {
	fetched, err := e.fetcher.Messages(ctx, e.conversationID)
	if err != nil {
		e.mu.Lock()
		e.fetchFailures++
		failures := e.fetchFailures
		e.mu.Unlock()
		e.log.Debug().Err(err).Int64("consecutive_failures", failures).
			Msg("Poll fetch failed, keeping current list")
		return err
	}

	e.mu.Lock()
	e.fetchFailures = 0
	e.mergeLocked(fetched)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snapshot)
	if e.onFetchSuccess != nil {
		e.onFetchSuccess()
	}
	return nil
}

// mergeLocked applies the merge rule documented on Engine. Caller holds mu.
func (e *Engine) mergeLocked(fetched []wireMessage) {
	fetchedIDs := make(map[int64]bool, len(fetched))
	merged := make([]Entry, 0, len(fetched)+4)
	for _, w := range fetched {
		msg := FromWire(w)
		if fetchedIDs[msg.ID] {
			// Server bug guard: the canonical list never holds two entries
			// with the same ID.
			continue
		}
		fetchedIDs[msg.ID] = true
		m := msg
		merged = append(merged, &m)
	}

	dropped := 0
	for _, entry := range e.entries {
		pending, ok := entry.(*PendingMessage)
		if !ok {
			continue
		}
		if fetchedIDs[pending.TempID] {
			// Confirmed server-side through another path (concurrent send
			// or retry); resolving here prevents a duplicate bubble.
			e.tracker.Resolve(pending.TempID)
			dropped++
			continue
		}
		if !e.tracker.IsPending(pending.TempID) {
			// Already resolved by the send controller; the confirmed copy
			// is in the fetched set or was rolled back.
			dropped++
			continue
		}
		merged = append(merged, pending)
	}
	if dropped > 0 {
		e.log.Debug().Int("dropped_pending", dropped).Msg("Cleaned up resolved pending entries during merge")
	}
	e.entries = merged
}

// Seed pre-populates the timeline from the local cache so a reopened
// conversation renders instantly. Only applies to an empty timeline; once
// the first fetch lands the server is authoritative.
func (e *Engine) Seed(msgs []Message) {
	e.mu.Lock()
	if len(e.entries) > 0 || len(msgs) == 0 {
		e.mu.Unlock()
		return
	}
	for i := range msgs {
		m := msgs[i]
		e.entries = append(e.entries, &m)
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.log.Debug().Int("cached", len(msgs)).Msg("Seeded timeline from local cache")
	e.notify(snapshot)
}

// AppendPending inserts an optimistic message at the tail. Pending
// entries always render after confirmed ones — they are the most recent
// local activity.
func (e *Engine) AppendPending(p *PendingMessage) {
	e.mu.Lock()
	e.entries = append(e.entries, p)
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snapshot)
}

// ConfirmPending swaps the optimistic entry for its server-confirmed
// message in place, preserving the row position the user is looking at.
// If a poll already merged the confirmed ID, the pending entry is simply
// removed; the confirmed message never appears twice.
func (e *Engine) ConfirmPending(tempID int64, msg *Message) {
	e.mu.Lock()
	alreadyMerged := false
	for _, entry := range e.entries {
		if m, ok := entry.(*Message); ok && m.ID == msg.ID {
			alreadyMerged = true
			break
		}
	}
	replaced := false
	kept := e.entries[:0]
	for _, entry := range e.entries {
		pending, ok := entry.(*PendingMessage)
		if !ok || pending.TempID != tempID {
			kept = append(kept, entry)
			continue
		}
		if alreadyMerged {
			continue
		}
		kept = append(kept, msg)
		replaced = true
	}
	e.entries = kept
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.log.Debug().
		Int64("temp_id", tempID).
		Int64("message_id", msg.ID).
		Bool("replaced_in_place", replaced).
		Msg("Confirmed optimistic message")
	e.notify(snapshot)
}

// RemovePending rolls an optimistic entry back out of the timeline
// (send failure path).
func (e *Engine) RemovePending(tempID int64) {
	e.mu.Lock()
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if pending, ok := entry.(*PendingMessage); ok && pending.TempID == tempID {
			continue
		}
		kept = append(kept, entry)
	}
	e.entries = kept
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snapshot)
}

// RemoveConfirmed drops a confirmed message, called only after the server
// acknowledged the delete.
func (e *Engine) RemoveConfirmed(id int64) {
	e.mu.Lock()
	kept := e.entries[:0]
	for _, entry := range e.entries {
		if m, ok := entry.(*Message); ok && m.ID == id {
			continue
		}
		kept = append(kept, entry)
	}
	e.entries = kept
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snapshot)
}

// MarkIncomingRead flags unread messages from other participants as read
// locally, with the given read time. Matches the open-conversation-
// implies-read policy after a successful send; the next poll mirrors the
// server's authoritative state anyway.
func (e *Engine) MarkIncomingRead(selfID int64, at time.Time) {
	e.mu.Lock()
	marked := 0
	for i, entry := range e.entries {
		m, ok := entry.(*Message)
		if !ok || m.SenderID == selfID || m.IsRead {
			continue
		}
		clone := *m
		clone.IsRead = true
		readAt := at
		clone.ReadAt = &readAt
		e.entries[i] = &clone
		marked++
	}
	var snapshot []Entry
	if marked > 0 {
		snapshot = e.snapshotLocked()
	}
	e.mu.Unlock()
	if marked > 0 {
		e.log.Debug().Int("marked", marked).Msg("Locally marked incoming messages read")
		e.notify(snapshot)
	}
}

// Snapshot returns a copy of the canonical timeline: confirmed messages
// in server order followed by pending messages in insertion order.
func (e *Engine) Snapshot() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() []Entry {
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

func (e *Engine) notify(snapshot []Entry) {
	if e.onUpdate != nil {
		e.onUpdate(snapshot)
	}
}
