// Package config provides the runtime defaults, validation, and environment
// loading for the roomchat server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port              string
	AllowedOrigins    []string
	MaxMessageSize    int64
	SendBufferSize    int
	RateLimit         RateLimitConfig
	DatabasePath      string
	JWTSecret         string
	TokenTTL          time.Duration
	RedisAddr         string
	RecipientCacheTTL time.Duration
	ShutdownTimeout   time.Duration
	LogLevel          string
	LogFormat         string
}

const (
	defaultPort              = ":8080"
	defaultMaxMessageSize    = 8192
	defaultSendBufferSize    = 256
	defaultBurst             = 10
	defaultRefillInterval    = time.Second
	defaultDatabasePath      = "roomchat.db"
	defaultJWTSecret         = "change-me-in-production"
	defaultTokenTTL          = 30 * 24 * time.Hour
	defaultRecipientCacheTTL = 5 * time.Minute
	defaultShutdownTimeout   = 30 * time.Second
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		DatabasePath:      defaultDatabasePath,
		JWTSecret:         defaultJWTSecret,
		TokenTTL:          defaultTokenTTL,
		RecipientCacheTTL: defaultRecipientCacheTTL,
		ShutdownTimeout:   defaultShutdownTimeout,
		LogLevel:          defaultLogLevel,
		LogFormat:         defaultLogFormat,
	}
	return &cfg
}

// Sanitize returns a copy of cfg with every invalid or missing value replaced
// by its default. The origin list is copied so callers may keep mutating theirs.
func (c Config) Sanitize() Config {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultBurst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = defaultRefillInterval
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}
	if c.JWTSecret == "" {
		c.JWTSecret = defaultJWTSecret
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.RecipientCacheTTL <= 0 {
		c.RecipientCacheTTL = defaultRecipientCacheTTL
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = defaultLogFormat
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	return newConfigFromLookup(os.LookupEnv)
}

func newConfigFromLookup(lookup func(string) (string, bool)) *Config {
	cfg := NewConfig()

	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if port := get("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := get("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := get("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if size := get("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}
	if burst := get("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := get("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if path := get("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}
	if secret := get("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if ttl := get("TOKEN_TTL"); ttl != "" {
		cfg.TokenTTL = parseHours(ttl, cfg.TokenTTL)
	}
	cfg.RedisAddr = get("REDIS_ADDR")
	if ttl := get("RECIPIENT_CACHE_TTL"); ttl != "" {
		cfg.RecipientCacheTTL = parseSeconds(ttl, cfg.RecipientCacheTTL)
	}
	if timeout := get("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}
	if level := get("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := get("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	sanitized := cfg.Sanitize()
	return &sanitized
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseHours(value string, defaultValue time.Duration) time.Duration {
	if hours, err := strconv.Atoi(value); err == nil && hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return defaultValue
}
