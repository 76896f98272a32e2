// Package config loads and validates the gateway's environment-variable
// configuration. There is no config file: every setting is read from the
// process environment at startup and is immutable thereafter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultOKXSymbols / defaultBybitSymbols mirror the reference instrument
// lists when TRADING_SYMBOLS_OKX / TRADING_SYMBOLS_BYBIT are unset.
var (
	defaultOKXSymbols   = []string{"ETH-USDT-SWAP", "XRP-USDT-SWAP", "SOL-USDT-SWAP", "TRX-USDT-SWAP", "DOGE-USDT-SWAP"}
	defaultBybitSymbols = []string{"ETHUSDT", "XRPUSDT", "SOLUSDT", "TRXUSDT", "DOGEUSDT"}
)

// VenueCredentials holds the API credentials the core validates for
// presence only; market-data sessions never authenticate with them.
type VenueCredentials struct {
	// APIKey API key read from the environment.
	APIKey string
	// APISecret API secret read from the environment.
	APISecret string
	// Passphrase OKX-only trading passphrase.
	Passphrase string
}

// RetryConfig parameterizes the WebSocket session reconnect backoff.
type RetryConfig struct {
	// Enabled turns automatic reconnection on or off.
	Enabled bool
	// MaxAttempts is the number of consecutive failures tolerated before
	// the session gives up and stays DISCONNECTED.
	MaxAttempts int
	// InitialDelayMs is the first retry delay.
	InitialDelayMs int
	// MaxDelayMs caps the backoff delay.
	MaxDelayMs int
	// BackoffMultiplier is applied per consecutive failure.
	BackoffMultiplier float64
}

// UDPFeedConfig configures the market-data UDP rebroadcast socket.
type UDPFeedConfig struct {
	// Enabled toggles the publisher on or off.
	Enabled bool
	// Address is the destination IPv4 address.
	Address string
	// Port is the destination UDP port.
	Port int
}

// SinkConfig configures a single named logging sink.
type SinkConfig struct {
	// Enabled toggles the sink on or off.
	Enabled bool
	// File is the path the sink writes to.
	File string
}

// LoggingConfig groups the three named sinks spec.md's ambient logging
// stack calls for, plus the debug-trace toggle.
type LoggingConfig struct {
	// Price is the market-data sink.
	Price SinkConfig
	// System is the operational/system-event sink.
	System SinkConfig
	// Trade is reserved for downstream consumers of market-data fan-out;
	// the core never writes trades, but the sink is provisioned the way
	// the deployment layer expects it.
	Trade SinkConfig
	// DebugLogEnabled gates verbose per-packet classifier tracing.
	DebugLogEnabled bool
}

// Config is the gateway's complete runtime configuration, populated once
// at startup from the environment and shared read-only afterward.
type Config struct {
	// OKX holds OKX credentials.
	OKX VenueCredentials
	// Bybit holds Bybit credentials.
	Bybit VenueCredentials
	// OKXInstruments is the set of OKX instrument IDs to subscribe.
	OKXInstruments []string
	// BybitInstruments is the set of Bybit instrument IDs to subscribe.
	BybitInstruments []string
	// Retry holds the WebSocket reconnect backoff parameters.
	Retry RetryConfig
	// UDP holds the UDP rebroadcast configuration.
	UDP UDPFeedConfig
	// Logging holds the named sink configuration.
	Logging LoggingConfig
}

// Load reads and validates the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		OKX: VenueCredentials{
			APIKey:     os.Getenv("OKX_API_KEY"),
			APISecret:  os.Getenv("OKX_API_SECRET"),
			Passphrase: os.Getenv("OKX_PASSPHRASE"),
		},
		Bybit: VenueCredentials{
			APIKey:    os.Getenv("BYBIT_API_KEY"),
			APISecret: os.Getenv("BYBIT_API_SECRET"),
		},
		OKXInstruments:   splitSymbols(os.Getenv("TRADING_SYMBOLS_OKX"), defaultOKXSymbols),
		BybitInstruments: splitSymbols(os.Getenv("TRADING_SYMBOLS_BYBIT"), defaultBybitSymbols),
		Retry: RetryConfig{
			Enabled:           boolEnv("WS_RETRY_ENABLED", true),
			MaxAttempts:       intEnv("WS_RETRY_MAX_ATTEMPTS", 10),
			InitialDelayMs:    intEnv("WS_RETRY_INITIAL_DELAY_MS", 1000),
			MaxDelayMs:        intEnv("WS_RETRY_MAX_DELAY_MS", 30000),
			BackoffMultiplier: floatEnv("WS_RETRY_BACKOFF_MULTIPLIER", 2.0),
		},
		UDP: UDPFeedConfig{
			Enabled: boolEnv("UDP_FEED_ENABLED", true),
			Address: stringEnv("UDP_FEED_ADDRESS", "127.0.0.1"),
			Port:    intEnv("UDP_FEED_PORT", 13988),
		},
		Logging: LoggingConfig{
			Price:           sinkEnv("PRICE"),
			System:          sinkEnv("SYSTEM"),
			Trade:           sinkEnv("TRADE"),
			DebugLogEnabled: boolEnv("DEBUG_LOG_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required credentials are present and that
// numeric parameters fall within sane ranges. It collects every error
// before returning, the way the teacher's Config.Validate does.
func (c *Config) Validate() error {
	var errs []string

	if c.OKX.APIKey == "" {
		errs = append(errs, "OKX_API_KEY: required")
	}
	if c.OKX.APISecret == "" {
		errs = append(errs, "OKX_API_SECRET: required")
	}
	if c.OKX.Passphrase == "" {
		errs = append(errs, "OKX_PASSPHRASE: required")
	}
	if c.Bybit.APIKey == "" {
		errs = append(errs, "BYBIT_API_KEY: required")
	}
	if c.Bybit.APISecret == "" {
		errs = append(errs, "BYBIT_API_SECRET: required")
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "WS_RETRY_MAX_ATTEMPTS: must be positive")
	}
	if c.Retry.InitialDelayMs <= 0 {
		errs = append(errs, "WS_RETRY_INITIAL_DELAY_MS: must be positive")
	}
	if c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		errs = append(errs, "WS_RETRY_MAX_DELAY_MS: must be >= initial delay")
	}
	if c.Retry.BackoffMultiplier <= 1.0 {
		errs = append(errs, "WS_RETRY_BACKOFF_MULTIPLIER: must be > 1.0")
	}

	if c.UDP.Enabled {
		if c.UDP.Port <= 0 || c.UDP.Port > 65535 {
			errs = append(errs, "UDP_FEED_PORT: must be a valid port")
		}
		if c.UDP.Address == "" {
			errs = append(errs, "UDP_FEED_ADDRESS: required when UDP feed is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func sinkEnv(name string) SinkConfig {
	return SinkConfig{
		Enabled: boolEnv("LOG_"+name+"_ENABLED", true),
		File:    stringEnv("LOG_"+name+"_FILE", "logs/"+strings.ToLower(name)+".log"),
	}
}

func splitSymbols(raw string, fallback []string) []string {
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func stringEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func boolEnv(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func intEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(name string, fallback float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
