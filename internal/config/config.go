// Package config provides configuration management for the application
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// BookingAPIConfig holds the connection settings for the remote booking API
type BookingAPIConfig struct {
	BaseURL string
	// ServiceToken is used for background refreshes; empty means anonymous
	ServiceToken string
	Timeout      time.Duration
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string
	Host      string
	Port      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// TTL for the stored snapshot (0 means no expiration)
	SnapshotTTL time.Duration
}

// BoardConfig holds settings for the room board itself
type BoardConfig struct {
	Port         string
	PollInterval time.Duration
	// KeepPolling refreshes even when no one is watching the board
	KeepPolling bool
	Location    *time.Location
	// RateLimit uses the ulule/limiter format, e.g. "60-M"
	RateLimit string
	// TrustProxy takes the client address from X-Forwarded-For. Only set it
	// behind a proxy that overwrites that header.
	TrustProxy bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads a .env file if present so the getters below see its values.
// Variables already set in the environment take precedence.
func Load(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

// GetBookingAPIConfig loads booking API configuration from environment variables
func GetBookingAPIConfig() BookingAPIConfig {
	timeoutSeconds := getEnvInt("BOOKING_API_TIMEOUT_SECONDS", 10)

	return BookingAPIConfig{
		BaseURL:      strings.TrimRight(getEnv("BOOKING_API_URL", "http://localhost:5000/api"), "/"),
		ServiceToken: getEnv("BOOKING_API_TOKEN", ""),
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
	}
}

// GetRedisConfig loads Redis/Valkey configuration from environment variables
func GetRedisConfig() RedisConfig {
	ttlHours := getEnvInt("REDIS_SNAPSHOT_TTL_HOURS", 24)

	return RedisConfig{
		Enabled:     getEnvBool("REDIS_ENABLED", false),
		URI:         getEnv("REDIS_URI_ROOMBOARD", ""),
		Host:        getEnv("REDIS_HOST_ROOMBOARD", getEnv("REDIS_ADDRESS", "localhost")),
		Port:        getEnv("REDIS_PORT_ROOMBOARD", "6379"),
		Username:    getEnv("REDIS_USERNAME_ROOMBOARD", ""),
		Password:    getEnv("REDIS_PASSWORD_ROOMBOARD", getEnv("REDIS_PASSWORD", "")),
		DB:          getEnvInt("REDIS_DB", 0),
		KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "roomboard:"),
		SnapshotTTL: time.Duration(ttlHours) * time.Hour,
	}
}

// GetBoardConfig loads board configuration from environment variables
func GetBoardConfig() BoardConfig {
	pollSeconds := getEnvInt("POLL_INTERVAL_SECONDS", 30)
	if pollSeconds <= 0 {
		pollSeconds = 30
	}

	location, err := time.LoadLocation(getEnv("DISPLAY_TIMEZONE", "Asia/Bangkok"))
	if err != nil {
		location = time.UTC
	}

	return BoardConfig{
		Port:         getEnv("PORT", "8080"),
		PollInterval: time.Duration(pollSeconds) * time.Second,
		KeepPolling:  getEnvBool("KEEP_POLLING", false),
		Location:     location,
		RateLimit:    getEnv("RATE_LIMIT", "60-M"),
		TrustProxy:   getEnvBool("TRUST_PROXY", false),
	}
}

// GetLogConfig loads logging configuration from environment variables
func GetLogConfig() LogConfig {
	return LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvInt retrieves an integer environment variable
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

// IsConfigured reports whether a booking API URL is present
func (c BookingAPIConfig) IsConfigured() bool {
	return c.BaseURL != ""
}
