package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/metrics"
)

// DefaultHeartbeatInterval is the sweep period for the liveness
// monitor.
const DefaultHeartbeatInterval = 30 * time.Second

// Monitor detects half-open connections the transport alone would not
// surface. Every interval it terminates connections that did not
// answer the previous ping and pings the rest; a pong control frame
// re-marks a connection alive via its pong handler.
type Monitor struct {
	mu       sync.Mutex
	conns    map[*conn]struct{}
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor creates a monitor sweeping at the given interval.
func NewMonitor(interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Monitor{
		conns:    make(map[*conn]struct{}),
		interval: interval,
		logger:   logger,
	}
}

// Register adds a connection to the sweep set.
func (m *Monitor) Register(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c] = struct{}{}
}

// Unregister removes a connection from the sweep set.
func (m *Monitor) Unregister(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, c)
}

// Run sweeps until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	m.mu.Lock()
	conns := make([]*conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		// A connection that did not pong since the previous tick
		// is gone; its read loop handles registry cleanup.
		if !c.alive.Swap(false) {
			metrics.ConnectionsTerminated.WithLabelValues("heartbeat").Inc()
			m.logger.Info().Msg("terminating unresponsive connection")
			m.Unregister(c)
			c.Terminate()
			continue
		}
		c.ping()
	}
}
