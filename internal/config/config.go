package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "dev-secret"

// service config, read from the environment
type Config struct {
	Port           string
	JWTSecret      []byte
	RedisAddr      string
	RedisPassword  string
	AllowedOrigins []string
	InternalAPIKey string
	LogLevel       string

	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		JWTSecret:      []byte(getEnvOrDefault("JWT_SECRET", defaultJWTSecret)),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SendBuffer, err = getEnvInt("SEND_BUFFER", 64); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = getEnvDuration("PING_INTERVAL", 25*time.Second); err != nil {
		return nil, err
	}
	if cfg.PongWait, err = getEnvDuration("PONG_WAIT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteWait, err = getEnvDuration("WRITE_WAIT", 10*time.Second); err != nil {
		return nil, err
	}
	maxBytes, err := getEnvInt("MAX_MESSAGE_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", cfg.Port)
	}
	if len(cfg.JWTSecret) == 0 {
		return errors.New("JWT_SECRET must not be empty")
	}
	if cfg.SendBuffer <= 0 {
		return errors.New("SEND_BUFFER must be positive")
	}
	if cfg.MaxMessageBytes <= 0 {
		return errors.New("MAX_MESSAGE_BYTES must be positive")
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		return errors.New("PING_INTERVAL must be positive and shorter than PONG_WAIT")
	}
	if cfg.WriteWait <= 0 {
		return errors.New("WRITE_WAIT must be positive")
	}
	return nil
}

// UsesDefaultSecret reports whether JWT_SECRET was left at the development default.
func (c *Config) UsesDefaultSecret() bool { return string(c.JWTSecret) == defaultJWTSecret }

// OriginAllowed reports whether a browser Origin may open a WebSocket.
func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
