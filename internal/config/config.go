// Package config assembles runtime configuration from the environment.
// Secrets are required, everything else has a development default.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Stream   StreamConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
	// Env is the deployment environment (development, production).
	// Production enables the Secure cookie flag and the security header set.
	Env string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds token configuration for both trust domains.
// User and admin tokens are signed with distinct secrets so that
// neither domain accepts the other's tokens.
type JWTConfig struct {
	UserSecret  string
	AdminSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AdminConfig holds the administrator panel credentials.
// Admin identities live in configuration, not in the user table.
type AdminConfig struct {
	Username string
	Password string
}

// StreamConfig tunes the Server-Sent Events endpoint.
type StreamConfig struct {
	HeartbeatInterval     time.Duration
	ConnectionTimeout     time.Duration
	MaxConnectionsPerUser int
	EventBufferSize       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "jangteo_market"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			UserSecret:  getEnv("CLIENT_JWT_SECRET_KEY", ""),
			AdminSecret: getEnv("ADMIN_JWT_SECRET_KEY", ""),
			TokenExpiry: getMinutesEnv("JWT_TOKEN_EXPIRY", time.Hour),
			Issuer:      getEnv("JWT_ISSUER", "jangteo-market"),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_ID", ""),
			Password: getEnv("ADMIN_PW", ""),
		},
		Stream: StreamConfig{
			HeartbeatInterval:     getSecondsEnv("STREAM_HEARTBEAT_SECONDS", 30*time.Second),
			ConnectionTimeout:     getMinutesEnv("STREAM_CONNECTION_TIMEOUT_MINUTES", time.Hour),
			MaxConnectionsPerUser: getIntEnv("STREAM_MAX_CONNECTIONS_PER_USER", 10),
			EventBufferSize:       getIntEnv("STREAM_EVENT_BUFFER_SIZE", 100),
		},
	}
}

// Validate reports the configuration the server cannot start without.
// Both signing secrets and the admin credentials have no usable default.
func (c *Config) Validate() error {
	switch {
	case c.JWT.UserSecret == "":
		return errors.New("CLIENT_JWT_SECRET_KEY is required")
	case c.JWT.AdminSecret == "":
		return errors.New("ADMIN_JWT_SECRET_KEY is required")
	case c.JWT.UserSecret == c.JWT.AdminSecret:
		return errors.New("user and admin JWT secrets must differ")
	case c.Admin.Username == "" || c.Admin.Password == "":
		return errors.New("ADMIN_ID and ADMIN_PW are required")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (s *ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// getMinutesEnv reads a duration expressed as a whole number of minutes.
func getMinutesEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return fallback
}

// getSecondsEnv reads a duration expressed as a whole number of seconds.
func getSecondsEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
