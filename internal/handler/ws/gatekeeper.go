package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/helplinehq/supportchat/backend/internal/auth"
	"github.com/helplinehq/supportchat/backend/internal/security"
)

// Rejection reasons, also used as metric labels.
const (
	RejectOrigin   = "origin"
	RejectIdentity = "identity"
	RejectToken    = "token"
)

// Admission is the gatekeeper's verdict on a candidate connection. When
// Rejected is empty the connection may proceed with SessionID, which is
// freshly minted when the client supplied none.
type Admission struct {
	SessionID string
	Minted    bool
	Claims    *auth.Claims

	Rejected    string // one of the Reject* constants, "" when admitted
	CloseReason string // text for the close frame
}

// Gatekeeper admits or rejects candidate connections. It has no side
// effects: it never touches the session registry.
type Gatekeeper struct {
	origins  *security.OriginPolicy
	signer   *security.Signer
	verifier auth.Verifier // nil when identity checking is disabled
}

// NewGatekeeper builds the admission checker. Pass a nil verifier to
// disable identity checking.
func NewGatekeeper(origins *security.OriginPolicy, signer *security.Signer, verifier auth.Verifier) *Gatekeeper {
	return &Gatekeeper{origins: origins, signer: signer, verifier: verifier}
}

// Admit evaluates a candidate connection: origin allow-list, optional
// identity token, then session continuity. Supplied session ids must
// carry a valid signature; absent ids get a fresh one.
func (g *Gatekeeper) Admit(ctx context.Context, r *http.Request) Admission {
	if !g.origins.Allowed(r.Header.Get("Origin")) {
		return Admission{Rejected: RejectOrigin, CloseReason: "Origin not allowed"}
	}

	var claims *auth.Claims
	if g.verifier != nil {
		c, err := g.verifier.Verify(ctx, r.URL.Query().Get("idToken"))
		if err != nil {
			return Admission{Rejected: RejectIdentity, CloseReason: "Authentication required"}
		}
		claims = &c
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		return Admission{SessionID: uuid.NewString(), Minted: true, Claims: claims}
	}

	if !g.signer.Verify(sessionID, r.URL.Query().Get("token")) {
		return Admission{Rejected: RejectToken, CloseReason: "Invalid session token"}
	}
	return Admission{SessionID: sessionID, Claims: claims}
}
