// Package config loads the execution engine's configuration from the
// environment, in env-var-driven shape (internal/config/config.go):
// a single Load() entry point, getEnv*/default helpers, and a flat Config
// struct grouping settings by subsystem.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/execore/internal/breaker"
	"github.com/web3guy0/execore/internal/connmon"
	"github.com/web3guy0/execore/internal/monitor"
	"github.com/web3guy0/execore/internal/validator"
)

// PersistenceConfig selects and configures the write-through mirror.
type PersistenceConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// Config is the full set of engine settings, loaded once at startup and
// passed by value into the composition root: no globals beyond
// the composition root itself.
type Config struct {
	Debug bool
	Env   string // "paper" or "live"

	Telegram TelegramConfig

	Persistence PersistenceConfig

	// Breaker holds one Config per named breaker ("alpaca", "databento",
	// "ibkr", "stops-monitor"); all four are built by defaultBreakerConfig
	// from the same BREAKER_* environment variables.
	Breaker map[string]breaker.Config

	Policy validator.Policy

	Monitor monitor.Config

	Connmon connmon.Config

	RESTFeedBaseURL string
	StreamerURL     string
}

// TelegramConfig groups the events.Telegram publisher's settings.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// Load reads the environment (after loading a .env file, if present, via
// godotenv — invoked by the caller in cmd/engine before Load runs) into a
// Config.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),
		Env:   getEnv("ENGINE_ENV", "paper"),

		Persistence: PersistenceConfig{
			Driver: getEnv("PERSISTENCE_DRIVER", "sqlite"),
			DSN:    getEnv("PERSISTENCE_DSN", "data/execore.db"),
		},

		Breaker: map[string]breaker.Config{
			"alpaca":        defaultBreakerConfig(),
			"databento":     defaultBreakerConfig(),
			"ibkr":          defaultBreakerConfig(),
			"stops-monitor": defaultBreakerConfig(),
		},

		Policy: validator.Policy{
			PerInstrument: validator.PerInstrumentLimits{
				MaxUnits:     getEnvDecimal("RISK_PER_INSTRUMENT_MAX_UNITS", decimal.NewFromInt(10000)),
				MaxNotional:  getEnvDecimal("RISK_PER_INSTRUMENT_MAX_NOTIONAL", decimal.NewFromInt(50000)),
				MaxPctEquity: getEnvDecimal("RISK_PER_INSTRUMENT_MAX_PCT_EQUITY", decimal.NewFromFloat(0.20)),
			},
			Portfolio: validator.PortfolioLimits{
				MaxGrossNotional:  getEnvDecimal("RISK_PORTFOLIO_MAX_GROSS_NOTIONAL", decimal.NewFromInt(200000)),
				MaxNetNotional:    getEnvDecimal("RISK_PORTFOLIO_MAX_NET_NOTIONAL", decimal.NewFromInt(100000)),
				MaxPctEquityGross: getEnvDecimal("RISK_PORTFOLIO_MAX_PCT_EQUITY_GROSS", decimal.NewFromFloat(2.0)),
				MaxPctEquityNet:   getEnvDecimal("RISK_PORTFOLIO_MAX_PCT_EQUITY_NET", decimal.NewFromFloat(1.0)),
			},
			Greeks: validator.GreekBounds{
				MaxAbsDelta: getEnvDecimal("RISK_MAX_ABS_DELTA", decimal.NewFromInt(100000)),
				MaxAbsGamma: getEnvDecimal("RISK_MAX_ABS_GAMMA", decimal.NewFromInt(10000)),
				MaxAbsVega:  getEnvDecimal("RISK_MAX_ABS_VEGA", decimal.NewFromInt(10000)),
				MaxTheta:    getEnvDecimal("RISK_MAX_THETA_FLOOR", decimal.NewFromInt(-5000)),
			},
			MaxPerTradeRiskPct:     getEnvDecimal("RISK_MAX_PER_TRADE_RISK_PCT", decimal.NewFromFloat(0.02)),
			MinRiskReward:          getEnvDecimal("RISK_MIN_RISK_REWARD", decimal.NewFromFloat(1.5)),
			SizingSanityMultiplier: getEnvDecimal("RISK_SIZING_SANITY_MULTIPLIER", decimal.NewFromFloat(3.0)),
			PDTEnforced:            getEnvBool("RISK_PDT_ENFORCED", true),
			MarginMultiplier:       getEnvDecimal("RISK_MARGIN_MULTIPLIER", decimal.NewFromFloat(0.5)),
		},

		Monitor: monitor.Config{
			MaxQuoteAge:     getEnvDuration("MONITOR_MAX_QUOTE_AGE", 10*time.Second),
			PollingInterval: getEnvDuration("MONITOR_POLLING_INTERVAL", 5*time.Second),
		},

		Connmon: connmon.Config{
			HeartbeatInterval: getEnvDuration("CONNMON_HEARTBEAT_INTERVAL", 15*time.Second),
			GracePeriod:       getEnvDuration("CONNMON_GRACE_PERIOD", 2*time.Minute),
			GTCPolicy:         connmon.GTCPolicy(getEnv("CONNMON_GTC_POLICY", string(connmon.GTCExclude))),
		},

		RESTFeedBaseURL: getEnv("REST_FEED_BASE_URL", "https://data.example.invalid"),
		StreamerURL:     getEnv("STREAMER_URL", "wss://stream.example.invalid/ws"),
	}

	cfg.Telegram = TelegramConfig{
		Enabled: getEnvBool("TELEGRAM_ENABLED", false),
		Token:   os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return nil, fmt.Errorf("TELEGRAM_ENABLED=true but TELEGRAM_BOT_TOKEN is not set")
		}
		chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
		if chatIDStr == "" {
			return nil, fmt.Errorf("TELEGRAM_ENABLED=true but TELEGRAM_CHAT_ID is not set")
		}
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = chatID
	}

	return cfg, nil
}

func defaultBreakerConfig() breaker.Config {
	return breaker.Config{
		FailureRateThreshold: getEnvFloat("BREAKER_FAILURE_RATE_THRESHOLD", 0.5),
		WindowSize:           getEnvInt("BREAKER_WINDOW_SIZE", 10),
		MinCalls:             getEnvInt("BREAKER_MIN_CALLS", 5),
		WaitDurationInOpen:   getEnvDuration("BREAKER_WAIT_DURATION_IN_OPEN", 30*time.Second),
		PermittedCallsInHalf: getEnvInt("BREAKER_PERMITTED_CALLS_IN_HALF", 3),
		CallTimeout:          getEnvDuration("BREAKER_CALL_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
