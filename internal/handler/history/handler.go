// Package history serves the REST transcript endpoint. It reuses the
// WebSocket session token as its credential: callers prove session
// continuity with headers instead of query parameters.
package history

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/auth"
	"github.com/helplinehq/supportchat/backend/internal/security"
	"github.com/helplinehq/supportchat/backend/internal/store"
	"github.com/helplinehq/supportchat/backend/pkg/utils"
)

const maxSessionIDLen = 100

// Handler answers GET /history/{sessionID}.
type Handler struct {
	fanout   *store.Fanout
	signer   *security.Signer
	verifier auth.Verifier // nil when identity checking is disabled
	logger   zerolog.Logger
	limit    int
}

// New builds the history handler. limit caps the returned transcript.
func New(fanout *store.Fanout, signer *security.Signer, verifier auth.Verifier, logger zerolog.Logger, limit int) *Handler {
	return &Handler{fanout: fanout, signer: signer, verifier: verifier, logger: logger, limit: limit}
}

// RegisterRoutes mounts the endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/{sessionID}", h.getHistory)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		utils.RespondError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}

	headerID := r.Header.Get("X-Session-Id")
	headerToken := r.Header.Get("X-Session-Token")
	if headerID != sessionID || !h.signer.Verify(sessionID, headerToken) {
		utils.RespondError(w, http.StatusUnauthorized, "invalid or missing session token")
		return
	}

	if h.verifier != nil {
		raw := bearerToken(r.Header.Get("Authorization"))
		if _, err := h.verifier.Verify(r.Context(), raw); err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	history := h.fanout.Reconcile(r.Context(), sessionID, h.limit)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"history":   history,
	})
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
