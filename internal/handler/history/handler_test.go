package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/model/chat"
	"github.com/helplinehq/supportchat/backend/internal/security"
	"github.com/helplinehq/supportchat/backend/internal/store"
)

func newServer(t *testing.T, signer *security.Signer, mem *store.MemoryStore) *httptest.Server {
	t.Helper()
	h := New(store.NewFanout(zerolog.Nop(), mem), signer, nil, zerolog.Nop(), 200)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetHistoryRequiresSessionToken(t *testing.T) {
	signer := security.NewSigner("secret")
	srv := newServer(t, signer, store.NewMemoryStore())

	// No headers at all.
	resp, err := http.Get(srv.URL + "/history/s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Mismatched session id header.
	req, _ := http.NewRequest("GET", srv.URL+"/history/s1", nil)
	req.Header.Set("X-Session-Id", "other")
	req.Header.Set("X-Session-Token", signer.Sign("other"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for mismatched id", resp.StatusCode)
	}
}

func TestGetHistoryReturnsReconciledTranscript(t *testing.T) {
	signer := security.NewSigner("secret")
	mem := store.NewMemoryStore()
	ctx := context.Background()
	mem.Save(ctx, chat.Message{SessionID: "s1", Sender: "user", Content: "hi", Timestamp: 1})
	mem.Save(ctx, chat.Message{SessionID: "s1", Sender: "bot", Content: "hello", Timestamp: 2})

	srv := newServer(t, signer, mem)

	req, _ := http.NewRequest("GET", srv.URL+"/history/s1", nil)
	req.Header.Set("X-Session-Id", "s1")
	req.Header.Set("X-Session-Token", signer.Sign("s1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		SessionID string         `json:"sessionId"`
		History   []chat.Message `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID != "s1" || len(body.History) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.History[0].Content != "hi" || body.History[1].Content != "hello" {
		t.Fatalf("history out of order: %+v", body.History)
	}
}

func TestGetHistoryRejectsOverlongSessionID(t *testing.T) {
	signer := security.NewSigner("secret")
	srv := newServer(t, signer, store.NewMemoryStore())

	long := make([]byte, maxSessionIDLen+1)
	for i := range long {
		long[i] = 'a'
	}
	resp, err := http.Get(srv.URL + "/history/" + string(long))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
