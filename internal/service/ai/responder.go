// Package ai produces automated replies to user text. The chat core
// only depends on the Responder interface; the model-backed
// implementation lives here alongside a deterministic fallback used
// when no model credentials are configured.
package ai

import (
	"context"
	"strings"
)

// Responder turns user text into a reply for a session.
type Responder interface {
	Reply(ctx context.Context, sessionID, content string) (string, error)
}

// StaticResponder answers from a small canned table. It keeps the
// widget functional in development and when the model is unavailable.
type StaticResponder struct{}

// NewStaticResponder creates the canned responder.
func NewStaticResponder() *StaticResponder {
	return &StaticResponder{}
}

// Reply never fails.
func (r *StaticResponder) Reply(_ context.Context, _ string, content string) (string, error) {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi"):
		return "Hello! How can I help you today?", nil
	case strings.Contains(lower, "bye"), strings.Contains(lower, "thanks"):
		return "You're welcome! Is there anything else I can help with?", nil
	case strings.Contains(lower, "agent"), strings.Contains(lower, "human"):
		return "I'll flag this conversation for a support agent. Meanwhile, could you describe the issue in more detail?", nil
	default:
		return "Thanks for reaching out. Could you tell me a bit more about the problem so I can point you in the right direction?", nil
	}
}
