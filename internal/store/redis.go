package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

// How long a session transcript is retained in Redis. Longer-term
// retention is the relational store's job.
const redisHistoryTTL = 7 * 24 * time.Hour

// RedisStore persists messages as per-session sorted sets scored by
// timestamp.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and verifies connectivity.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for shared infrastructure such
// as the REST rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func sessionMessagesKey(sessionID string) string {
	return "session:" + sessionID + ":messages"
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Save(ctx context.Context, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := sessionMessagesKey(msg.SessionID)
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(msg.Timestamp), Member: string(data)})
	pipe.Expire(ctx, key, redisHistoryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	raw, err := s.client.ZRange(ctx, sessionMessagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// A corrupt entry degrades to absence rather than
			// failing the whole read.
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
