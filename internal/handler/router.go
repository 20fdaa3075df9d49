package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/handler/history"
	"github.com/helplinehq/supportchat/backend/internal/handler/middleware"
	"github.com/helplinehq/supportchat/backend/internal/handler/ws"
	"github.com/helplinehq/supportchat/backend/internal/store"
	"github.com/helplinehq/supportchat/backend/pkg/utils"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger      zerolog.Logger
	WS          *ws.Handler
	History     *history.Handler
	Fanout      *store.Fanout
	RedisClient *redis.Client // optional, enables REST rate limiting
	RESTLimit   int           // requests per minute per IP
	CORSOrigins []string      // empty allows any
}

// NewRouter wires HTTP routes to the chat core.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	corsOrigins := d.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Session-Token"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", healthHandler(d.Fanout))

	r.Get("/ws", d.WS.HandleConnection)

	r.Group(func(r chi.Router) {
		if d.RedisClient != nil && d.RESTLimit > 0 {
			limiter := middleware.NewRateLimiter(d.RedisClient, d.Logger, d.RESTLimit, time.Minute)
			r.Use(limiter.Middleware)
		}
		d.History.RegisterRoutes(r)
	})

	return r
}

// healthHandler reports overall liveness plus per-store connectivity.
// A degraded store does not fail the check; the fan-out layer already
// tolerates it.
func healthHandler(fanout *store.Fanout) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stores := make(map[string]string)
		for _, s := range fanout.Stores() {
			if err := s.Ping(r.Context()); err != nil {
				stores[s.Name()] = "unavailable"
			} else {
				stores[s.Name()] = "ok"
			}
		}
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"stores": stores,
		})
	}
}
