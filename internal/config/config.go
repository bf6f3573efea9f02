// Package config loads server and client settings from the environment. A
// .env file in the working directory is read first when present; variables
// already set in the environment win.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/logging"
)

// Server configures cmd/server.
type Server struct {
	// HTTP
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret      string
	TokenTTL       time.Duration
	GoogleClientID string

	// AMQP. Events are published only when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string

	MetricsEnabled bool
	LogLevel       string
}

// Client configures cmd/budget.
type Client struct {
	ServerURL   string
	SessionFile string
	Currency    string
	LogLevel    string
}

// LoadServer reads the server configuration.
func LoadServer() *Server {
	_ = godotenv.Load()

	return &Server{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "./data/budget.db"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 24*time.Hour),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// LoadClient reads the CLI configuration.
func LoadClient() *Client {
	_ = godotenv.Load()

	return &Client{
		ServerURL:   getEnv("BUDGET_SERVER_URL", "http://localhost:8080"),
		SessionFile: getEnv("BUDGET_SESSION_FILE", defaultSessionFile()),
		Currency:    strings.ToUpper(getEnv("BUDGET_CURRENCY", "USD")),
		LogLevel:    getEnv("LOG_LEVEL", "warn"),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".budget", "session.json")
	}
	return filepath.Join(home, ".config", "budget", "session.json")
}

// Validate returns every problem with the server configuration at once.
func (c *Server) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}

	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Validate returns every problem with the client configuration at once.
func (c *Client) Validate() error {
	var errors []string

	if parsedURL, err := url.Parse(c.ServerURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid server URL '%s': %v", c.ServerURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid server URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if len(c.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be an ISO 4217 code", c.Currency))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
