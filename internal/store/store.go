// Package store provides the SQLite-backed event store the monitoring host
// records gateway activity into. Extensions holding the database permission
// receive the underlying *sql.DB.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/subculture-collective/spywatcher/pkg/discord"
)

const schema = `
CREATE TABLE IF NOT EXISTS presence_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	client_web INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_presence_guild_user ON presence_events(guild_id, user_id);

CREATE TABLE IF NOT EXISTS message_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_guild_author ON message_events(guild_id, author_id);

CREATE TABLE IF NOT EXISTS member_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RecordPresence persists a presence update event.
func (s *Store) RecordPresence(ctx context.Context, p discord.Presence) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presence_events (guild_id, user_id, username, status, client_web, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.GuildID, p.UserID, p.Username, p.Status, p.ClientWeb, eventTime(p.Timestamp))
	if err != nil {
		return fmt.Errorf("recording presence event: %w", err)
	}
	return nil
}

// RecordMessage persists a message create event. Message content is not
// stored, only routing metadata.
func (s *Store) RecordMessage(ctx context.Context, m discord.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_events (guild_id, channel_id, message_id, author_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.GuildID, m.ChannelID, m.MessageID, m.AuthorID, eventTime(m.Timestamp))
	if err != nil {
		return fmt.Errorf("recording message event: %w", err)
	}
	return nil
}

// RecordMember persists a guild member add or remove event.
func (s *Store) RecordMember(ctx context.Context, m discord.Member, kind string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO member_events (guild_id, user_id, username, kind, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.GuildID, m.UserID, m.Username, kind, eventTime(m.Timestamp))
	if err != nil {
		return fmt.Errorf("recording member event: %w", err)
	}
	return nil
}

// EventCounts returns per-table event totals since the given time.
type EventCounts struct {
	Presence int64 `json:"presence"`
	Messages int64 `json:"messages"`
	Members  int64 `json:"members"`
}

// CountEventsSince aggregates event totals recorded after since.
func (s *Store) CountEventsSince(ctx context.Context, since time.Time) (EventCounts, error) {
	var counts EventCounts

	queries := []struct {
		table string
		dst   *int64
	}{
		{"presence_events", &counts.Presence},
		{"message_events", &counts.Messages},
		{"member_events", &counts.Members},
	}

	for _, q := range queries {
		row := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE created_at >= ?", q.table), since)
		if err := row.Scan(q.dst); err != nil {
			return counts, fmt.Errorf("counting %s: %w", q.table, err)
		}
	}

	return counts, nil
}

func eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
