package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port    int
	DevMode bool

	// Database
	DatabasePath string

	// Broker: "paper" or "live". Both fill orders through the paper
	// broker; "live" additionally takes quotes from Tradernet and gates
	// allocation on its market-status stream (see the two URLs below).
	BrokerType string

	// TradernetURL is the base URL of the Tradernet microservice, consulted
	// for live quotes (of symbols currently held at the broker) when
	// BrokerType is "live". Unused under "paper".
	TradernetURL string

	// TradernetWSURL is the Tradernet market-status WebSocket endpoint,
	// gating the allocation job against closed-market hours when
	// BrokerType is "live". Unused under "paper".
	TradernetWSURL string

	// PrimaryMarketCode is the market code the allocation job checks
	// against the market-status stream before running.
	PrimaryMarketCode string

	// ScenarioStartingCapital seeds every scenario in ScenarioRoster.
	ScenarioStartingCapital float64

	// Cycle duration profile: 30 or 90 day rounds (§4.5's resolved open
	// question treats 90 as canonical; 30 remains supported).
	CycleDurationDays int

	// Scenario roster: comma-separated scenario type names seeded at
	// startup (Conservative, Balanced, Aggressive, High-Risk, Custom).
	ScenarioRoster []string

	// External signal-source credentials (optional). They are loaded but
	// not read by any fetcher: every fetcher returns no records, with or
	// without them, per §1's out-of-scope scraper internals.
	CongressionalAPIKey string
	Form4APIKey         string

	// Environment tag written to the startup log; "development" also
	// turns on pretty console logging.
	Environment string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnvAsInt("GO_PORT", 8001),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		DatabasePath:            getEnv("DATABASE_PATH", "./data/signalcycle.db"),
		BrokerType:              getEnv("BROKER_TYPE", "paper"),
		TradernetURL:            getEnv("TRADERNET_URL", ""),
		TradernetWSURL:          getEnv("TRADERNET_WS_URL", ""),
		PrimaryMarketCode:       getEnv("PRIMARY_MARKET_CODE", "US"),
		ScenarioStartingCapital: getEnvAsFloat("SCENARIO_STARTING_CAPITAL", 100_000),
		CycleDurationDays:       getEnvAsInt("CYCLE_DURATION_DAYS", 90),
		ScenarioRoster:          getEnvAsList("SCENARIO_ROSTER", []string{"Conservative", "Balanced", "Aggressive", "High-Risk"}),
		CongressionalAPIKey:     getEnv("CONGRESSIONAL_API_KEY", ""),
		Form4APIKey:             getEnv("FORM4_API_KEY", ""),
		Environment:             getEnv("ENVIRONMENT", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.CycleDurationDays != 30 && c.CycleDurationDays != 90 {
		return fmt.Errorf("CYCLE_DURATION_DAYS must be 30 or 90, got %d", c.CycleDurationDays)
	}
	if len(c.ScenarioRoster) == 0 {
		return fmt.Errorf("SCENARIO_ROSTER must name at least one scenario")
	}
	if c.BrokerType != "paper" && c.BrokerType != "live" {
		return fmt.Errorf("BROKER_TYPE must be \"paper\" or \"live\", got %q", c.BrokerType)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
