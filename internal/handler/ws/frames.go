package ws

import (
	"encoding/json"
	"errors"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

// MaxFrameBytes is the raw frame size cap, enforced before parsing.
const MaxFrameBytes = 256 * 1024

// Content length bounds for user-originated messages.
const (
	minContentLen = 1
	maxContentLen = 2000
)

// Frame validation errors; the text is sent back in an error frame.
var (
	errPayloadTooLarge = errors.New("Payload too large")
	errInvalidJSON     = errors.New("Invalid JSON")
	errInvalidSchema   = errors.New("Invalid message schema")
)

// inboundFrame is a client frame. Content is a pointer so validation
// can tell an absent field from an empty one.
type inboundFrame struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
}

// parseInbound applies the raw size cap, parses, and validates schema:
// type must be "message" or "ping"; "message" requires content of
// length 1-2000; "ping" forbids a content field.
func parseInbound(raw []byte) (inboundFrame, error) {
	if len(raw) > MaxFrameBytes {
		return inboundFrame{}, errPayloadTooLarge
	}

	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return inboundFrame{}, errInvalidJSON
	}

	switch f.Type {
	case "message":
		if f.Content == nil || len(*f.Content) < minContentLen || len(*f.Content) > maxContentLen {
			return inboundFrame{}, errInvalidSchema
		}
	case "ping":
		if f.Content != nil {
			return inboundFrame{}, errInvalidSchema
		}
	default:
		return inboundFrame{}, errInvalidSchema
	}
	return f, nil
}

type sessionFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type historyFrame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	History   []chat.Message `json:"history"`
}

// messageFrame delivers one chat message to the client.
type messageFrame struct {
	Type string `json:"type"`
	chat.Message
}

type pongFrame struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newSessionFrame(sessionID, token string) sessionFrame {
	return sessionFrame{Type: "session", SessionID: sessionID, Token: token}
}

func newHistoryFrame(sessionID string, history []chat.Message) historyFrame {
	if history == nil {
		history = []chat.Message{}
	}
	return historyFrame{Type: "history", SessionID: sessionID, History: history}
}

func newMessageFrame(msg chat.Message) messageFrame {
	return messageFrame{Type: "message", Message: msg}
}

func newPongFrame(ts int64) pongFrame {
	return pongFrame{Type: "pong", TS: ts}
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: "error", Message: message}
}
