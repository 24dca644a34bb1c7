package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Station
	DeviceID      string
	OperatingMode string
	ScoringMode   string

	// Storage
	SQLiteDBPath string

	// Token catalog
	CatalogSource            string
	TokensFile               string
	GoogleSpreadsheetID      string
	GoogleTokensSheet        string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	CatalogCacheTTL          time.Duration

	// CatalogRefreshInterval reloads the catalog periodically. Zero disables.
	CatalogRefreshInterval time.Duration

	// Orchestrator transport
	AMQPURL          string
	AMQPExchange     string
	AMQPCommandQueue string
	AMQPEventQueue   string

	LogLevel        string
	ShutdownTimeout time.Duration
}

var (
	validOperatingModes = []string{"standalone", "networked"}
	validScoringModes   = []string{"blackmarket", "detective"}
	validCatalogSources = []string{"file", "sheets"}
	validLogLevels      = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DeviceID:      getEnv("DEVICE_ID", defaultDeviceID()),
		OperatingMode: getEnv("OPERATING_MODE", "standalone"),
		ScoringMode:   getEnv("SCORING_MODE", "blackmarket"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/gmscanner.db"),

		CatalogSource:            getEnv("CATALOG_SOURCE", "file"),
		TokensFile:               getEnv("TOKENS_FILE", "data/tokens.json"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleTokensSheet:        getEnv("GOOGLE_TOKENS_SHEET", "Tokens"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		CatalogCacheTTL:          getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		CatalogRefreshInterval:   getEnvDuration("CATALOG_REFRESH_INTERVAL", 0),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "gmscanner"),
		AMQPCommandQueue: getEnv("AMQP_COMMAND_QUEUE", "orchestrator_commands"),
		AMQPEventQueue:   getEnv("AMQP_EVENT_QUEUE", "station_events"),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DeviceID) == "" {
		errors = append(errors, "device id cannot be empty")
	}
	if !slices.Contains(validOperatingModes, c.OperatingMode) {
		errors = append(errors, fmt.Sprintf("invalid operating mode '%s': must be one of %v", c.OperatingMode, validOperatingModes))
	}
	if !slices.Contains(validScoringModes, c.ScoringMode) {
		errors = append(errors, fmt.Sprintf("invalid scoring mode '%s': must be one of %v", c.ScoringMode, validScoringModes))
	}
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	switch c.CatalogSource {
	case "file":
		if c.TokensFile == "" {
			errors = append(errors, "tokens file cannot be empty when using the file catalog")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets catalog")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets catalog")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.CatalogCacheTTL < time.Second {
			errors = append(errors, fmt.Sprintf("invalid catalog cache TTL %v: must be at least 1 second", c.CatalogCacheTTL))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid catalog source '%s': must be one of %v", c.CatalogSource, validCatalogSources))
	}

	if c.CatalogRefreshInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid catalog refresh interval %v: must not be negative", c.CatalogRefreshInterval))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}
	if c.OperatingMode == "networked" {
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required in networked mode")
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty in networked mode")
		}
		if c.AMQPCommandQueue == "" {
			errors = append(errors, "AMQP command queue cannot be empty in networked mode")
		}
		if c.AMQPEventQueue == "" {
			errors = append(errors, "AMQP event queue cannot be empty in networked mode")
		}
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func defaultDeviceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return "GM_" + strings.ToUpper(host)
	}
	return "GM_STATION"
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
