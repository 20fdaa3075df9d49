package store

import (
	"context"
	"sort"
	"sync"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

// MemoryStore keeps messages in process memory. It backs zero-config
// development runs and tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]chat.Message)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Save(_ context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)

	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Timestamp < copied[j].Timestamp
	})
	return copied, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
