package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sme-docengine/internal/logger"
)

type Config struct {
	// Database
	DBDriver         string
	DBDSN            string
	DBConnectRetries int
	GormLogLevel     string

	// HTTP
	HTTPAddr    string
	CORSOrigins []string
	JWTSecret   string
	JWTTTL      time.Duration

	// Opens POST /register for self sign-up
	AllowRegistration bool

	// Document policy
	AllowDeleteApproved bool

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. Call godotenv.Load first
// to pick up a .env file.
func Load() (*Config, error) {
	retries, err := strconv.Atoi(getEnv("DB_CONNECT_RETRIES", "5"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: DB_CONNECT_RETRIES: %w", err)
	}
	allowDelete, err := strconv.ParseBool(getEnv("ALLOW_DELETE_APPROVED", "false"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: ALLOW_DELETE_APPROVED: %w", err)
	}

	allowRegistration, err := strconv.ParseBool(getEnv("ALLOW_REGISTRATION", "false"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: ALLOW_REGISTRATION: %w", err)
	}
	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: JWT_TTL: %w", err)
	}

	config := &Config{
		DBDriver:            getEnv("DB_DRIVER", "mysql"),
		DBDSN:               getEnv("DB_DSN", ""),
		DBConnectRetries:    retries,
		GormLogLevel:        getEnv("GORM_LOG_LEVEL", "warn"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTTTL:              ttl,
		AllowRegistration:   allowRegistration,
		AllowDeleteApproved: allowDelete,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// GetLoggerConfig returns the logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
