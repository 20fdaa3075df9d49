package chat

import "fmt"

// Sender labels for persisted messages.
const (
	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAgent = "agent"
)

// Message persists a single chat turn. Immutable once created; this
// subsystem never updates or deletes stored messages.
type Message struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// DedupKey identifies a message across stores. Records from different
// stores with the same key are the same message.
func (m Message) DedupKey() string {
	return fmt.Sprintf("%d|%s|%s", m.Timestamp, m.Sender, m.Content)
}
