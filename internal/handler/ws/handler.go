// Package ws implements the real-time core of the support-chat widget:
// connection admission, the per-connection message protocol, and the
// heartbeat sweep that reaps half-open connections.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/auth"
	"github.com/helplinehq/supportchat/backend/internal/metrics"
	"github.com/helplinehq/supportchat/backend/internal/model/chat"
	"github.com/helplinehq/supportchat/backend/internal/security"
	"github.com/helplinehq/supportchat/backend/internal/service/ai"
	"github.com/helplinehq/supportchat/backend/internal/service/session"
	"github.com/helplinehq/supportchat/backend/internal/store"
)

// connState is the per-connection protocol state.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateActive
	stateClosing
)

// DefaultHistoryLimit caps the history frame sent on connect.
const DefaultHistoryLimit = 200

// Handler owns the WebSocket endpoint: it runs admission, drives the
// per-connection protocol state machine, and wires connections into the
// registry and the liveness monitor.
type Handler struct {
	gate     *Gatekeeper
	registry *session.Registry
	signer   *security.Signer
	fanout   *store.Fanout
	respond  ai.Responder
	monitor  *Monitor
	logger   zerolog.Logger

	historyLimit int
	upgrader     websocket.Upgrader
}

// New builds the WebSocket handler. historyLimit <= 0 falls back to
// DefaultHistoryLimit.
func New(gate *Gatekeeper, registry *session.Registry, signer *security.Signer, fanout *store.Fanout, respond ai.Responder, monitor *Monitor, logger zerolog.Logger, historyLimit int) *Handler {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Handler{
		gate:         gate,
		registry:     registry,
		signer:       signer,
		fanout:       fanout,
		respond:      respond,
		monitor:      monitor,
		logger:       logger,
		historyLimit: historyLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Admission enforces the origin policy itself so a
			// disallowed origin gets a 1008 close frame rather
			// than a failed upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and runs the connection to
// completion.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	wsc, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := newConn(wsc)

	state := stateConnecting

	adm := h.gate.Admit(r.Context(), r)
	if adm.Rejected != "" {
		metrics.ConnectionsRejected.WithLabelValues(adm.Rejected).Inc()
		h.logger.Warn().
			Str("reason", adm.Rejected).
			Str("origin", r.Header.Get("Origin")).
			Str("remote_addr", r.RemoteAddr).
			Msg("connection refused")
		c.closeWithPolicy(adm.CloseReason)
		return
	}
	state = stateAuthenticated

	sessionID := adm.SessionID
	token := h.signer.Sign(sessionID)

	h.registry.GetOrCreate(sessionID)
	h.registry.SetToken(sessionID, token)
	replaced := h.registry.Conn(sessionID) != nil
	h.registry.AttachConn(sessionID, c)
	if replaced {
		metrics.ConnectionsTerminated.WithLabelValues("replaced").Inc()
	}

	state = stateActive
	metrics.ConnectionsActive.Inc()
	h.monitor.Register(c)
	h.logger.Info().
		Str("session_id", sessionID).
		Bool("minted", adm.Minted).
		Msg("client connected")

	c.writeJSON(newSessionFrame(sessionID, token))
	c.writeJSON(newHistoryFrame(sessionID, h.fanout.Reconcile(r.Context(), sessionID, h.historyLimit)))

	c.ws.SetReadLimit(4 * MaxFrameBytes) // hard backstop; protocol cap is MaxFrameBytes

	for state == stateActive {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("read error")
			}
			state = stateClosing
			break
		}
		h.handleFrame(r.Context(), c, sessionID, adm.Claims, raw)
	}

	// Closing: cleanup is scoped to this connection. In-flight
	// persistence or upstream calls run to completion on their own.
	metrics.ConnectionsActive.Dec()
	h.monitor.Unregister(c)
	h.registry.RemoveIfAttached(sessionID, c)
	h.logger.Info().Str("session_id", sessionID).Msg("client disconnected")
}

// handleFrame validates and dispatches one inbound frame. Protocol
// errors and rate-limit denials answer with an error frame and leave
// the connection open.
func (h *Handler) handleFrame(ctx context.Context, c *conn, sessionID string, claims *auth.Claims, raw []byte) {
	frame, err := parseInbound(raw)
	if err != nil {
		metrics.FramesRejected.WithLabelValues(rejectLabel(err)).Inc()
		c.writeJSON(newErrorFrame(err.Error()))
		return
	}

	if !h.registry.AllowMessage(sessionID) {
		metrics.FramesRejected.WithLabelValues("rate_limited").Inc()
		c.writeJSON(newErrorFrame("Rate limit exceeded"))
		return
	}

	switch frame.Type {
	case "message":
		h.handleMessage(ctx, c, sessionID, claims, *frame.Content)
	case "ping":
		c.writeJSON(newPongFrame(time.Now().UnixMilli()))
	}
}

// handleMessage runs the full message turn: persist and echo the user
// message, then request, persist, and deliver the bot reply. The bot
// reply goes to whichever connection is attached to the session at
// delivery time, best effort.
func (h *Handler) handleMessage(ctx context.Context, c *conn, sessionID string, claims *auth.Claims, content string) {
	userMsg := chat.Message{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Sender:    senderLabel(claims),
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now().UnixMilli(),
	}

	// Store writes for this turn must survive the connection closing
	// mid-flight.
	persistCtx := context.WithoutCancel(ctx)

	h.fanout.SaveAll(persistCtx, userMsg)
	metrics.MessagesHandled.WithLabelValues(userMsg.Sender).Inc()
	c.writeJSON(newMessageFrame(userMsg))

	botText, err := h.respond.Reply(ctx, sessionID, userMsg.Content)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("responder failed")
		c.writeJSON(newErrorFrame("Failed to process message"))
		return
	}

	botMsg := chat.Message{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Sender:    chat.SenderBot,
		Content:   botText,
		Timestamp: time.Now().UnixMilli(),
	}
	h.fanout.SaveAll(persistCtx, botMsg)
	metrics.MessagesHandled.WithLabelValues(chat.SenderBot).Inc()

	// The session may have been reattached while the responder ran;
	// deliver to the current connection, not necessarily ours.
	if current, ok := h.registry.Conn(sessionID).(*conn); ok && current != nil {
		current.writeJSON(newMessageFrame(botMsg))
	}
}

// senderLabel resolves the message sender: the verified identity when
// the connection carried one, else the generic user label.
func senderLabel(claims *auth.Claims) string {
	if claims != nil && claims.Label() != "" {
		return claims.Label()
	}
	return chat.SenderUser
}

func rejectLabel(err error) string {
	switch err {
	case errPayloadTooLarge:
		return "oversized"
	case errInvalidJSON:
		return "malformed"
	default:
		return "schema"
	}
}
