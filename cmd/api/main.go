package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/auth"
	"github.com/helplinehq/supportchat/backend/internal/config"
	"github.com/helplinehq/supportchat/backend/internal/handler"
	"github.com/helplinehq/supportchat/backend/internal/handler/history"
	"github.com/helplinehq/supportchat/backend/internal/handler/ws"
	"github.com/helplinehq/supportchat/backend/internal/security"
	"github.com/helplinehq/supportchat/backend/internal/service/ai"
	"github.com/helplinehq/supportchat/backend/internal/service/session"
	"github.com/helplinehq/supportchat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env if present; the system environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Server)

	// Durable stores: every configured backend is written to and
	// reconciled from. With none configured, fall back to process
	// memory so development runs still work.
	stores, redisClient := openStores(ctx, cfg.Stores, logger)
	defer func() {
		for _, s := range stores {
			s.Close()
		}
	}()
	fanout := store.NewFanout(logger, stores...)

	signer := security.NewSigner(cfg.Security.SessionSecret)
	origins := security.NewOriginPolicy(cfg.Security.AllowedOrigins)
	registry := session.NewRegistry(
		session.WithLimits(cfg.Chat.RateBurst, cfg.Chat.RateRefillPerMinute),
	)
	defer registry.Close()

	var verifier auth.Verifier
	if cfg.Auth.Required {
		v, err := auth.NewJWKSVerifier(ctx, cfg.Auth.JWKSURL, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			logger.Fatal().Err(err).Msg("identity verifier init failed")
		}
		verifier = v
		logger.Info().Str("issuer", cfg.Auth.Issuer).Msg("identity checking enabled")
	}

	responder := newResponder(ctx, cfg.AI, fanout, logger)

	monitor := ws.NewMonitor(cfg.Chat.HeartbeatInterval, logger)
	go monitor.Run(ctx)

	gate := ws.NewGatekeeper(origins, signer, verifier)
	wsHandler := ws.New(gate, registry, signer, fanout, responder, monitor, logger, cfg.Chat.HistoryLimit)
	historyHandler := history.New(fanout, signer, verifier, logger, cfg.Chat.HistoryLimit)

	router := handler.NewRouter(handler.Deps{
		Logger:      logger,
		WS:          wsHandler,
		History:     historyHandler,
		Fanout:      fanout,
		RedisClient: redisClient,
		RESTLimit:   cfg.Chat.RESTRateLimit,
		CORSOrigins: cfg.Security.AllowedOrigins,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(server config.ServerConfig) zerolog.Logger {
	if server.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

// openStores connects every configured durable store, logging and
// skipping backends that fail at startup. The Redis client is returned
// separately for the REST rate limiter.
func openStores(ctx context.Context, cfg config.StoresConfig, logger zerolog.Logger) ([]store.DurableStore, *redis.Client) {
	var stores []store.DurableStore
	var redisClient *redis.Client

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("postgres store unavailable")
		} else {
			stores = append(stores, pg)
			logger.Info().Msg("connected to PostgreSQL")
		}
	}

	if cfg.RedisURL != "" {
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("redis store unavailable")
		} else {
			stores = append(stores, rs)
			redisClient = rs.Client()
			logger.Info().Msg("connected to Redis")
		}
	}

	if cfg.SQLitePath != "" {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Error().Err(err).Msg("sqlite store unavailable")
		} else {
			stores = append(stores, sq)
			logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
		}
	}

	if len(stores) == 0 {
		logger.Warn().Msg("no durable store configured, using in-memory store")
		stores = append(stores, store.NewMemoryStore())
	}
	return stores, redisClient
}

func newResponder(ctx context.Context, cfg config.AIConfig, fanout *store.Fanout, logger zerolog.Logger) ai.Responder {
	if !cfg.Enabled() {
		logger.Info().Msg("model credentials not configured, using canned responder")
		return ai.NewStaticResponder()
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("chat model init failed, using canned responder")
		return ai.NewStaticResponder()
	}

	responder, err := ai.NewLLMResponder(ctx, chatModel, fanout, logger)
	if err != nil {
		logger.Error().Err(err).Msg("responder init failed, using canned responder")
		return ai.NewStaticResponder()
	}

	logger.Info().Str("model", cfg.Model).Msg("model responder initialized")
	return responder
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Str("env", serverCfg.Env).Msg("support chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
