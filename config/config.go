// Package config loads the server's environment-driven configuration.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const insecureDefaultSecret = "insecure-default-change-me"

// Config holds every environment-derived setting the server needs at startup.
type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:""`
	DBName     string `env:"DB_NAME" envDefault:"postgres"`
	DBSchema   string `env:"DB_SCHEMA" envDefault:"gamepulse"`
	DBPoolMin  int32  `env:"DB_POOL_MIN" envDefault:"10"`
	DBPoolMax  int32  `env:"DB_POOL_MAX" envDefault:"30"`

	UpstreamAPIKey       string        `env:"UPSTREAM_API_KEY"`
	UpstreamTotalTimeout time.Duration `env:"UPSTREAM_TOTAL_TIMEOUT" envDefault:"30s"`
	UpstreamConnTimeout  time.Duration `env:"UPSTREAM_CONN_TIMEOUT" envDefault:"10s"`

	TokenSigningSecret string        `env:"TOKEN_SIGNING_SECRET"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"1200s"`
	TokenLeeway        time.Duration `env:"TOKEN_LEEWAY" envDefault:"5m"`

	ClientsJSON string `env:"CLIENTS_JSON" envDefault:"{\"desktop-main\":\"change-me-in-production\"}"`

	NonceCacheCap int           `env:"NONCE_CACHE_CAP" envDefault:"10000"`
	NonceTTL      time.Duration `env:"NONCE_TTL" envDefault:"5m"`
	SignatureSkew time.Duration `env:"SIGNATURE_SKEW" envDefault:"60s"`

	CollectConcurrency int           `env:"COLLECT_CONCURRENCY" envDefault:"10"`
	ListenAddr         string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ShutdownDrain      time.Duration `env:"SHUTDOWN_DRAIN" envDefault:"30s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses environment variables into a Config and decodes the client
// credential table. Missing signing secret is a startup warning, not a
// fatal error: the caller gets an obviously insecure default so the
// misconfiguration is visible in logs and in behavior, never silent.
func Load() (Config, []string, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("config: parse env: %w", err)
	}

	var warnings []string
	if cfg.TokenSigningSecret == "" {
		warnings = append(warnings, "TOKEN_SIGNING_SECRET not set; using insecure default")
		cfg.TokenSigningSecret = insecureDefaultSecret
	}
	return cfg, warnings, nil
}

// Clients decodes the CLIENTS_JSON environment value into a client_id ->
// client_secret map.
func (c Config) Clients() (map[string]string, error) {
	var out map[string]string
	if err := json.Unmarshal([]byte(c.ClientsJSON), &out); err != nil {
		return nil, fmt.Errorf("config: parse CLIENTS_JSON: %w", err)
	}
	return out, nil
}

// PoolSizeWarning reports whether the configured pool max is smaller than
// the minimum required to serve both API parallelism and the collection
// engine's concurrency budget without starving either, per the spec's
// sizing rule. It never fails startup — only a log-worthy misconfiguration.
func (c Config) PoolSizeWarning(apiParallelism int) (ok bool, required int32) {
	required = int32(c.CollectConcurrency + 1)
	if int32(apiParallelism) > required {
		required = int32(apiParallelism)
	}
	return c.DBPoolMax >= required, required
}
