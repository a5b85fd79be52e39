package config

import (
	"errors"
	"flag"
	"io"
	"os"
)

// Config is the ingest driver's command surface (spec.md §6): an optional
// target date, a force flag, and the operator-tuning knobs SPEC_FULL.md
// adds on top (--concurrency, --base-url).
type Config struct {
	Date           string
	Force          bool
	Concurrency    int
	BaseURL        string
	DatabaseDSN    string
	RedisAddr      string
	MigrationsPath string
}

// DefaultConfig returns the spec's defaults: no pinned date (resolved at
// runtime to the most recent available, or today's date on list failure),
// force disabled, 5 in-flight chain tasks.
func DefaultConfig() Config {
	return Config{
		Concurrency:    5,
		BaseURL:        "https://prices.example.internal",
		MigrationsPath: "migrations",
	}
}

// Parse builds a Config from args, falling back to environment variables
// for the two values that carry secrets/deployment-specific endpoints
// (DATABASE_DSN, REDIS_ADDR), the way services/jax-ingest's config layer
// does for credentials.
func Parse(args []string) (Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("price-ingest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Date, "date", cfg.Date, "Archive date to ingest, YYYY-MM-DD (default: most recent available)")
	fs.BoolVar(&cfg.Force, "force", cfg.Force, "Re-ingest even if the date already has a success record")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max in-flight chain ingest tasks")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Upstream archive service base URL")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	return cfg, cfg.Validate()
}

// Validate applies the same defensive-clamp pattern as
// libs/database.Config.Validate: required fields error out, tunable
// numeric fields clamp to a sane floor instead of failing.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.BaseURL == "" {
		return errors.New("config: base URL is required")
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = "migrations"
	}
	return nil
}
