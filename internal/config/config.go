package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service understands.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Auth     AuthConfig
	Stores   StoresConfig
	Chat     ChatConfig
	AI       AIConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
	Env  string
}

// IsDevelopment reports whether the service runs in development mode.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// SecurityConfig covers connection admission and session signing.
type SecurityConfig struct {
	// AllowedOrigins is the Origin allow-list for the WebSocket
	// endpoint. Empty allows any origin (non-production use only).
	AllowedOrigins []string
	// SessionSecret is the HMAC key for session continuity tokens.
	SessionSecret string
}

// AuthConfig describes identity verification against a remote key set.
type AuthConfig struct {
	Required bool
	JWKSURL  string
	Issuer   string
	Audience string
}

// StoresConfig selects which durable stores are configured. Every
// non-empty entry is written to and reconciled from.
type StoresConfig struct {
	DatabaseURL string
	RedisURL    string
	SQLitePath  string
}

// ChatConfig tunes the real-time core.
type ChatConfig struct {
	RateBurst           float64
	RateRefillPerMinute float64
	HeartbeatInterval   time.Duration
	HistoryLimit        int
	RESTRateLimit       int // requests per minute per IP on REST endpoints
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	security := SecurityConfig{
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		SessionSecret:  strings.TrimSpace(os.Getenv("SESSION_HMAC_SECRET")),
	}
	if security.SessionSecret == "" && !server.IsDevelopment() {
		return nil, errors.New("SESSION_HMAC_SECRET is required outside development")
	}

	authRequired, err := parseBoolEnv("REQUIRE_AUTH", false)
	if err != nil {
		return nil, err
	}
	authCfg := AuthConfig{
		Required: authRequired,
		JWKSURL:  strings.TrimSpace(os.Getenv("AUTH_JWKS_URL")),
		Issuer:   strings.TrimSpace(os.Getenv("AUTH_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("AUTH_AUDIENCE")),
	}
	if authCfg.Required && (authCfg.JWKSURL == "" || authCfg.Issuer == "") {
		return nil, errors.New("REQUIRE_AUTH needs AUTH_JWKS_URL and AUTH_ISSUER")
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	aiCfg, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Security: security,
		Auth:     authCfg,
		Stores: StoresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			RedisURL:    os.Getenv("REDIS_URL"),
			SQLitePath:  os.Getenv("SQLITE_PATH"),
		},
		Chat: chat,
		AI:   aiCfg,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	env := getEnvOrDefault("ENV", "development")

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port, Env: env}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port, Env: env}, nil
}

func loadChatConfig() (ChatConfig, error) {
	burst, err := parseOptionalFloatEnv("RATE_BURST")
	if err != nil {
		return ChatConfig{}, err
	}
	refill, err := parseOptionalFloatEnv("RATE_REFILL_PER_MINUTE")
	if err != nil {
		return ChatConfig{}, err
	}
	heartbeat, err := parseOptionalIntEnv("HEARTBEAT_INTERVAL_SECONDS")
	if err != nil {
		return ChatConfig{}, err
	}
	historyLimit, err := parseOptionalIntEnv("HISTORY_LIMIT")
	if err != nil {
		return ChatConfig{}, err
	}
	restLimit, err := parseOptionalIntEnv("REST_RATE_LIMIT_PER_MINUTE")
	if err != nil {
		return ChatConfig{}, err
	}

	cfg := ChatConfig{
		RateBurst:           60,
		RateRefillPerMinute: 30,
		HeartbeatInterval:   30 * time.Second,
		HistoryLimit:        200,
		RESTRateLimit:       60,
	}
	if burst != nil {
		cfg.RateBurst = *burst
	}
	if refill != nil {
		cfg.RateRefillPerMinute = *refill
	}
	if heartbeat != nil {
		cfg.HeartbeatInterval = time.Duration(*heartbeat) * time.Second
	}
	if historyLimit != nil {
		cfg.HistoryLimit = *historyLimit
	}
	if restLimit != nil {
		cfg.RESTRateLimit = *restLimit
	}
	return cfg, nil
}

// AIConfig describes the chat-model backend of the bot responder.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required model credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("model credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}
	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
