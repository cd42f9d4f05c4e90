package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in infrastructure defaults, applies MIRRORLAB_* environment variable
// overrides, and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MIRRORLAB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Storage.PostgresDSN, "MIRRORLAB_POSTGRES_DSN")
	setStr(&cfg.Storage.ClickhouseDSN, "MIRRORLAB_CLICKHOUSE_DSN")
	setBool(&cfg.Storage.RunMigrations, "MIRRORLAB_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "MIRRORLAB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MIRRORLAB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MIRRORLAB_REDIS_DB")

	setStr(&cfg.Feed.WsURL, "MIRRORLAB_FEED_WS_URL")

	setInt(&cfg.Pipeline.Workers, "MIRRORLAB_PIPELINE_WORKERS")
	setInt(&cfg.Pipeline.WindowDays, "MIRRORLAB_PIPELINE_WINDOW_DAYS")
	setDuration(&cfg.Pipeline.PeriodicInterval, "MIRRORLAB_PIPELINE_PERIODIC_INTERVAL")

	setFloat64(&cfg.Trading.BankrollUSD, "MIRRORLAB_TRADING_BANKROLL_USD")
	setBool(&cfg.Trading.ProportionalSizing, "MIRRORLAB_TRADING_PROPORTIONAL_SIZING")

	setStr(&cfg.LogLevel, "MIRRORLAB_LOG_LEVEL")
}

// duration wraps time.Duration so TOML files can use "90s" / "10m" strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
