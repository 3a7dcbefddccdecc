package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Deriv credentials
	AppID    string
	APIToken string

	// Market / contract
	Symbol       string
	ContractType string
	StakeAmount  float64
	PayoutRatio  float64 // simulated win payout as a fraction of stake

	// Strategy toggles (explicit flags; the UI checkboxes live elsewhere)
	EnableML      bool
	EnablePattern bool
	EnableTrend   bool

	// Risk settings
	RiskPerTrade        float64 // fraction of balance, e.g. 0.02
	MaxDailyLoss        float64 // fraction of balance, e.g. 0.1
	ConfidenceThreshold float64 // fraction, e.g. 0.8 means 80%

	// Simulation: settle trades locally instead of sending buy requests.
	SimMode bool

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Alerting (optional; empty disables the channel)
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Load reads configuration from environment variables with sensible defaults.
// Deriv credentials are required unless SIM_MODE=true.
func Load() *Config {
	cfg := &Config{
		SimMode: getBool("SIM_MODE", false),

		Symbol:       getEnv("SYMBOL", "R_100"),
		ContractType: getEnv("CONTRACT_TYPE", "DIGITMATCH"),
		StakeAmount:  getFloat("STAKE_AMOUNT", 1.0),
		PayoutRatio:  getFloat("PAYOUT_RATIO", 0.95),

		EnableML:      getBool("ENABLE_ML", true),
		EnablePattern: getBool("ENABLE_PATTERN", true),
		EnableTrend:   getBool("ENABLE_TREND", true),

		RiskPerTrade:        getFloat("RISK_PER_TRADE", 0.02),
		MaxDailyLoss:        getFloat("MAX_DAILY_LOSS", 0.1),
		ConfidenceThreshold: getFloat("CONFIDENCE_THRESHOLD", 0.8),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
	}

	if cfg.SimMode {
		cfg.AppID = getEnv("DERIV_APP_ID", "")
		cfg.APIToken = getEnv("DERIV_API_TOKEN", "")
	} else {
		cfg.AppID = mustEnv("DERIV_APP_ID")
		cfg.APIToken = mustEnv("DERIV_API_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// Validate checks value ranges. Credential presence is enforced in Load.
func (c *Config) Validate() error {
	if c.StakeAmount <= 0 {
		return fmt.Errorf("STAKE_AMOUNT must be > 0, got %v", c.StakeAmount)
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return fmt.Errorf("RISK_PER_TRADE must be in (0,1], got %v", c.RiskPerTrade)
	}
	if c.MaxDailyLoss <= 0 || c.MaxDailyLoss > 1 {
		return fmt.Errorf("MAX_DAILY_LOSS must be in (0,1], got %v", c.MaxDailyLoss)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.PayoutRatio <= 0 {
		return fmt.Errorf("PAYOUT_RATIO must be > 0, got %v", c.PayoutRatio)
	}
	if !c.EnableML && !c.EnablePattern && !c.EnableTrend {
		return fmt.Errorf("at least one strategy must be enabled")
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
