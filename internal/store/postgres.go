package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	ts         BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_messages_session_ts
	ON chat_messages (session_id, ts);
`

// PostgresStore persists messages in PostgreSQL via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the message
// schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Save(ctx context.Context, msg chat.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, sender, content, ts) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.SessionID, msg.Sender, msg.Content, msg.Timestamp,
	)
	return err
}

func (s *PostgresStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, sender, content, ts FROM chat_messages WHERE session_id = $1 ORDER BY ts ASC`,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
