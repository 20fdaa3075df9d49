package store

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	ts         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_session_ts
	ON chat_messages (session_id, ts);
`

// SQLiteStore persists messages in an embedded SQLite database, for
// single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures
// the message schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Save(ctx context.Context, msg chat.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, content, ts) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Sender, msg.Content, msg.Timestamp,
	)
	return err
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sender, content, ts FROM chat_messages WHERE session_id = ? ORDER BY ts ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
