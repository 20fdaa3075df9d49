// Package store persists chat messages to a set of independently
// writable durable stores and reconciles their histories back into one
// ordered view. Individual stores make no promises about each other;
// tolerating their disagreement and partial failure is the contract of
// the Fanout layer, not of any single implementation.
package store

import (
	"context"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

// DurableStore is one persistence backend for chat messages. All
// configured backends are written to and read from identically.
type DurableStore interface {
	// Name identifies the store in logs and metrics.
	Name() string

	// Save persists one message. Messages are append-only.
	Save(ctx context.Context, msg chat.Message) error

	// History returns every stored message for the session in
	// ascending timestamp order.
	History(ctx context.Context, sessionID string) ([]chat.Message, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
