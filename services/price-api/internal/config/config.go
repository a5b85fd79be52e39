package config

import (
	"errors"
	"flag"
	"io"
	"os"
)

// Config is the query service's command surface: the upstream archive base
// URL, storage/cache endpoints, and the HTTP port it listens on.
type Config struct {
	BaseURL        string
	DatabaseDSN    string
	RedisAddr      string
	MigrationsPath string
	HTTPPort       int
}

// DefaultConfig mirrors services/price-ingest/internal/config's defaults
// for the knobs the two services share.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://prices.example.internal",
		MigrationsPath: "migrations",
		HTTPPort:       8080,
	}
}

// Parse builds a Config from args, falling back to environment variables
// for secrets/deployment-specific endpoints the way price-ingest's config
// layer does.
func Parse(args []string) (Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("price-api", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Upstream archive service base URL")
	fs.IntVar(&cfg.HTTPPort, "port", cfg.HTTPPort, "HTTP listen port")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	return cfg, cfg.Validate()
}

// Validate applies the same defensive-clamp pattern as
// libs/database.Config.Validate: required fields error out, tunable
// fields clamp to a sane floor instead of failing.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if c.BaseURL == "" {
		return errors.New("config: base URL is required")
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = "migrations"
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = 8080
	}
	return nil
}
