package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
)

const DefaultAPIBaseURL = "http://localhost:8080/api/v1"

type Config struct {
	// API
	APIBaseURL string

	// Local client state (auth token)
	StateDBPath string

	// Receipt drafts
	DefaultCurrency   string
	ReceiptAutoCommit bool

	// Logging
	LogLevel string

	// Lookup cache
	CacheTTL time.Duration

	// AMQP receipt inbox
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	AMQPPrefetch int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		APIBaseURL:  getEnv("API_BASE_URL", DefaultAPIBaseURL),
		StateDBPath: getEnv("STATE_DB_PATH", defaultStatePath()),

		DefaultCurrency:   strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		ReceiptAutoCommit: getEnvBool("RECEIPT_AUTO_COMMIT", false),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensetracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "receipt_uploads"),
		AMQPPrefetch: getEnvInt("AMQP_PREFETCH", 1),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

func defaultStatePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "expensetracker", "state.db")
	}
	return "./data/state.db"
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate API base URL
	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	} else if parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': missing host", c.APIBaseURL))
	}

	// Validate state database path
	if c.StateDBPath == "" {
		errors = append(errors, "state database path cannot be empty")
	} else {
		dir := filepath.Dir(c.StateDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create state database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if err := core.ValidateCurrencyCode(c.DefaultCurrency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter ISO 4217 code", c.DefaultCurrency))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	// Validate cache configuration
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPrefetch < 1 {
			errors = append(errors, fmt.Sprintf("invalid AMQP prefetch %d: must be at least 1", c.AMQPPrefetch))
		}
	}

	// Validate Google Sheets export if a spreadsheet is configured
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireAMQP reports an error when the receipt inbox is not configured.
func (c *Config) RequireAMQP() error {
	if c.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL must be set to use the receipt inbox")
	}
	return nil
}

// SheetsEnabled reports whether exports can be pushed to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
