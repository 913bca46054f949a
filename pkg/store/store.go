// Package store is the local sqlite cache behind the chat core: fetched
// messages are mirrored here so a reopened conversation renders its last
// known history before the first poll completes. The server is always
// authoritative — every successful fetch replaces the conversation's
// cached rows wholesale, and nothing outbound is ever queued here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aymanboujjar/lionsgeek-chat/pkg/attach"
	"github.com/aymanboujjar/lionsgeek-chat/pkg/chat"
)

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ chat.Cache = (*Store)(nil)

// Open opens (or creates) the cache database at path and bootstraps the
// schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	s := &Store{db: db, log: log.With().Str("component", "cache_store").Logger()}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS conversation_message (
			conversation_id BIGINT NOT NULL,
			id BIGINT NOT NULL,
			pos INTEGER NOT NULL,
			sender_id BIGINT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			attachment_path TEXT,
			attachment_type TEXT,
			attachment_name TEXT,
			attachment_size BIGINT,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			read_at_ms BIGINT,
			created_at_ms BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			PRIMARY KEY (conversation_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_message_pos
			ON conversation_message (conversation_id, pos)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to bootstrap cache schema: %w", err)
		}
	}
	return nil
}

// ReplaceConversation swaps the conversation's cached rows for the given
// confirmed messages, preserving server order via the pos column.
func (s *Store) ReplaceConversation(ctx context.Context, conversationID int64, msgs []chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_message WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear cached conversation: %w", err)
	}
	if len(msgs) > 0 {
		now := time.Now().UnixMilli()
		var sb strings.Builder
		sb.WriteString(`INSERT INTO conversation_message (
			conversation_id, id, pos, sender_id, body,
			attachment_path, attachment_type, attachment_name, attachment_size,
			is_read, read_at_ms, created_at_ms, updated_ts
		) VALUES `)
		args := make([]any, 0, len(msgs)*13)
		for i, msg := range msgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			var attPath, attType, attName any
			var attSize any
			if att := msg.Attachment; att != nil {
				attPath, attType, attName, attSize = att.Path, string(att.Type), att.Name, att.SizeBytes
			}
			var readAtMS any
			if msg.ReadAt != nil {
				readAtMS = msg.ReadAt.UnixMilli()
			}
			args = append(args,
				conversationID, msg.ID, i, msg.SenderID, msg.Body,
				attPath, attType, attName, attSize,
				msg.IsRead, readAtMS, msg.CreatedAt.UnixMilli(), now,
			)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to insert cached messages: %w", err)
		}
	}
	return tx.Commit()
}

// LoadConversation returns the cached messages in server order.
func (s *Store) LoadConversation(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, body,
			attachment_path, attachment_type, attachment_name, attachment_size,
			is_read, read_at_ms, created_at_ms
		FROM conversation_message
		WHERE conversation_id = ?
		ORDER BY pos ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		var attPath, attType, attName sql.NullString
		var attSize, readAtMS sql.NullInt64
		var createdAtMS int64
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.Body,
			&attPath, &attType, &attName, &attSize,
			&msg.IsRead, &readAtMS, &createdAtMS,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.UnixMilli(createdAtMS)
		if readAtMS.Valid {
			readAt := time.UnixMilli(readAtMS.Int64)
			msg.ReadAt = &readAt
		}
		if attPath.Valid && attPath.String != "" {
			msg.Attachment = &chat.Attachment{
				Path:      attPath.String,
				Type:      attach.Kind(attType.String),
				Name:      attName.String,
				SizeBytes: attSize.Int64,
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteMessage removes one cached row after the server confirmed the
// delete.
func (s *Store) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_message WHERE conversation_id = ? AND id = ?`,
		conversationID, messageID)
	return err
}

// PruneConversation drops a conversation's cached rows entirely (e.g.
// after the user leaves it).
func (s *Store) PruneConversation(ctx context.Context, conversationID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_message WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Debug().Int64("conversation_id", conversationID).Int64("pruned", n).
			Msg("Pruned cached conversation")
	}
	return nil
}
