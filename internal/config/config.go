package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all gateway configuration.
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr           string `env:"SSE_ADDR" envDefault:":3001"`
	AllowedOrigins string `env:"SSE_ALLOWED_ORIGINS" envDefault:"*"`

	// Streaming
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"25s"`
	SendQueueSize     int           `env:"SSE_SEND_QUEUE_SIZE" envDefault:"256"`

	// Publisher credentials: comma-separated token:service pairs
	ServiceTokens string `env:"SSE_SERVICE_TOKENS" envDefault:"l5-etl-token:etl"`

	// Subscriber identity
	// When JWTSecret is set, subscribers authenticate with a bearer token;
	// otherwise the X-User-Id header resolver is used, seeded from
	// UserWorkspaces (comma-separated user:ws1;ws2 pairs).
	JWTSecret      string `env:"SSE_JWT_SECRET" envDefault:""`
	UserWorkspaces string `env:"SSE_USER_WORKSPACES" envDefault:""`

	// Capacity
	MaxConnections int `env:"SSE_MAX_CONNECTIONS" envDefault:"10000"`

	// Connection rate limiting (DoS protection on the subscribe endpoint)
	ConnRateLimitEnabled bool    `env:"SSE_CONN_RATE_LIMIT_ENABLED" envDefault:"true"`
	ConnRateIPBurst      int     `env:"SSE_CONN_RATE_IP_BURST" envDefault:"10"`
	ConnRateIPRate       float64 `env:"SSE_CONN_RATE_IP_RATE" envDefault:"1.0"`
	ConnRateGlobalBurst  int     `env:"SSE_CONN_RATE_GLOBAL_BURST" envDefault:"300"`
	ConnRateGlobalRate   float64 `env:"SSE_CONN_RATE_GLOBAL_RATE" envDefault:"50.0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from a .env file (optional) and environment
// variables. Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// OK to run without a .env file; production uses env vars directly.
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("SSE_ADDR is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT_INTERVAL must be > 0, got %s", c.HeartbeatInterval)
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("SSE_SEND_QUEUE_SIZE must be > 0, got %d", c.SendQueueSize)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("SSE_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}

	if _, err := c.ServiceTokenMap(); err != nil {
		return err
	}
	if _, err := c.UserWorkspaceMap(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// ServiceTokenMap parses SSE_SERVICE_TOKENS into token → service.
func (c *Config) ServiceTokenMap() (map[string]string, error) {
	tokens := make(map[string]string)
	for _, pair := range splitNonEmpty(c.ServiceTokens, ",") {
		token, service, ok := strings.Cut(pair, ":")
		if !ok || token == "" || service == "" {
			return nil, fmt.Errorf("SSE_SERVICE_TOKENS entry %q is not token:service", pair)
		}
		tokens[token] = service
	}
	return tokens, nil
}

// UserWorkspaceMap parses SSE_USER_WORKSPACES into user → workspace ids.
// Format: "user123:workspace123;workspaceA,user456:workspaceB".
func (c *Config) UserWorkspaceMap() (map[string][]string, error) {
	users := make(map[string][]string)
	for _, pair := range splitNonEmpty(c.UserWorkspaces, ",") {
		user, wsList, ok := strings.Cut(pair, ":")
		if !ok || user == "" || wsList == "" {
			return nil, fmt.Errorf("SSE_USER_WORKSPACES entry %q is not user:ws1;ws2", pair)
		}
		users[user] = splitNonEmpty(wsList, ";")
	}
	return users, nil
}

// OriginList parses SSE_ALLOWED_ORIGINS into a slice; "*" yields ["*"].
func (c *Config) OriginList() []string {
	return splitNonEmpty(c.AllowedOrigins, ",")
}

// LogConfig logs the configuration using structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("allowed_origins", c.AllowedOrigins).
		Dur("heartbeat_interval", c.HeartbeatInterval).
		Int("send_queue_size", c.SendQueueSize).
		Int("max_connections", c.MaxConnections).
		Bool("conn_rate_limit_enabled", c.ConnRateLimitEnabled).
		Bool("jwt_auth", c.JWTSecret != "").
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Gateway configuration loaded")
}

func splitNonEmpty(s, sep string) []string {
	result := []string{}
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
