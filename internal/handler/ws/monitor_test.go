package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// startEchoServer upgrades connections, registers them with the
// monitor, and reads until the connection dies. closed receives once
// per connection when its read loop exits.
func startEchoServer(t *testing.T, m *Monitor, closed chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsc, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := newConn(wsc)
		m.Register(c)
		defer m.Unregister(c)
		for {
			if _, _, err := wsc.ReadMessage(); err != nil {
				closed <- struct{}{}
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMonitorTerminatesUnresponsiveConnection(t *testing.T) {
	m := NewMonitor(30*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	closed := make(chan struct{}, 1)
	srv := startEchoServer(t, m, closed)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// The client never reads, so its transport never answers pings.
	// Two sweeps later the server must reap the connection.
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("unresponsive connection was not terminated")
	}
}

func TestMonitorKeepsResponsiveConnection(t *testing.T) {
	m := NewMonitor(30*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	closed := make(chan struct{}, 1)
	srv := startEchoServer(t, m, closed)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// Keep a read pending so the client's default ping handler can
	// answer with pongs.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-closed:
		t.Fatal("responsive connection was terminated")
	case <-time.After(300 * time.Millisecond):
	}
}
