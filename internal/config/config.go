package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "Tokamint"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultTokenName     = "Tokamint"
	defaultTokenSymbol   = "TKM"
	defaultDecimals      = 8
	defaultSnapshotKey   = "tokamint:snapshot:v1"
	defaultTxWindow      = 24 * time.Hour
	defaultDrift         = 2 * time.Minute
)

// Config captures runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string // optional: Postgres audit-event sink
	RedisURL       string // optional: snapshot persistence
	ShutdownPeriod time.Duration

	TokenName      string
	TokenSymbol    string
	TokenLogo      string
	TokenDecimals  uint8
	TransferFee    uint64
	InitialSupply  uint64
	OwnerPrincipal string
	SnapshotKey    string
	TxWindow       time.Duration
	PermittedDrift time.Duration
}

// Load reads configuration values from the environment and populates a
// Config instance. OWNER_PRINCIPAL is the only mandatory value; without a
// database or Redis URL the service runs with in-process audit logging and
// no snapshot persistence.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		TokenName:      getEnv("TOKEN_NAME", defaultTokenName),
		TokenSymbol:    getEnv("TOKEN_SYMBOL", defaultTokenSymbol),
		TokenLogo:      os.Getenv("TOKEN_LOGO"),
		TokenDecimals:  defaultDecimals,
		OwnerPrincipal: os.Getenv("OWNER_PRINCIPAL"),
		SnapshotKey:    getEnv("SNAPSHOT_KEY", defaultSnapshotKey),
		TxWindow:       defaultTxWindow,
		PermittedDrift: defaultDrift,
	}

	if cfg.OwnerPrincipal == "" {
		return Config{}, fmt.Errorf("OWNER_PRINCIPAL must be set")
	}

	if v := os.Getenv("TOKEN_DECIMALS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_DECIMALS: %w", err)
		}
		cfg.TokenDecimals = uint8(n)
	}

	var err error
	if cfg.TransferFee, err = uintEnv("TRANSFER_FEE", 0); err != nil {
		return Config{}, err
	}
	if cfg.InitialSupply, err = uintEnv("INITIAL_SUPPLY", 0); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.TxWindow, err = durationEnv("TX_WINDOW", cfg.TxWindow); err != nil {
		return Config{}, err
	}
	if cfg.PermittedDrift, err = durationEnv("PERMITTED_DRIFT", cfg.PermittedDrift); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a development environment, where
// missing infrastructure degrades gracefully instead of failing startup.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func uintEnv(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// durationEnv accepts either a plain number of seconds or a Go duration
// string such as "24h".
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
