// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration of the paytaskd daemon from a TOML
// file and PAYTASK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/go-a2a/paytask/ledger"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Auth modes.
const (
	AuthJWT    = "jwt"
	AuthHeader = "header"
)

// Ledger drivers.
const (
	LedgerMemory = "memory"
	LedgerUCP    = "ucp"
)

// Config is the daemon configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Auth      AuthConfig      `toml:"auth"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Processor ProcessorConfig `toml:"processor"`
	Log       LogConfig       `toml:"log"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	MaxBodyBytes    int64         `toml:"max_body_bytes"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	// DSN is the SQLite database path for the sqlite driver.
	DSN string `toml:"dsn"`
}

type AuthConfig struct {
	Mode string `toml:"mode"`
	// Secret is the HMAC key of jwt mode.
	Secret string        `toml:"secret"`
	Issuer string        `toml:"issuer"`
	Skew   time.Duration `toml:"skew"`
	// DefaultTenant is used by header mode when a request names no tenant.
	DefaultTenant string `toml:"default_tenant"`
}

type LedgerConfig struct {
	Driver  string        `toml:"driver"`
	BaseURL string        `toml:"base_url"`
	APIKey  string        `toml:"api_key"`
	Agent   string        `toml:"agent"`
	Timeout time.Duration `toml:"timeout"`
}

type ProcessorConfig struct {
	// Threshold is the approval threshold in minor units.
	Threshold         int64         `toml:"threshold"`
	DelegationTimeout time.Duration `toml:"delegation_timeout"`
	BatchWorkers      int           `toml:"batch_workers"`
	// StaleAfter is the age after which a working task without a pending
	// reply is considered interrupted.
	StaleAfter time.Duration   `toml:"stale_after"`
	Mandates   []MandateConfig `toml:"mandates"`
}

// MandateConfig is a pre-authorized spending limit of one agent.
type MandateConfig struct {
	AgentID  string `toml:"agent_id"`
	Limit    int64  `toml:"limit"`
	Currency string `toml:"currency"`
}

type LogConfig struct {
	// Format is "text" or "json".
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Auth: AuthConfig{
			Mode: AuthJWT,
			Skew: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			Driver:  LedgerMemory,
			Agent:   ledger.DefaultUCPAgent,
			Timeout: 30 * time.Second,
		},
		Processor: ProcessorConfig{
			Threshold:         50000,
			DelegationTimeout: 30 * time.Second,
			BatchWorkers:      4,
			StaleAfter:        15 * time.Minute,
		},
		Log: LogConfig{Format: "text", Level: "info"},
	}
}

// Load reads the TOML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		resolved, err := expandHome(path)
		if err != nil {
			return Config{}, err
		}
		b, err := os.ReadFile(resolved)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
		}
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", resolved, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("config file %s: unknown key %s", resolved, undecoded[0])
		}
		cfg.Path = resolved
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")), nil
}

// applyEnv overrides fields from PAYTASK_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*dst = d
			return nil
		}
	}
	num := func(dst *int64) func(string) error {
		return func(v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}

	vars := []struct {
		name string
		set  func(string) error
	}{
		{"PAYTASK_ADDR", str(&c.Server.Addr)},
		{"PAYTASK_STORE_DRIVER", str(&c.Store.Driver)},
		{"PAYTASK_STORE_DSN", str(&c.Store.DSN)},
		{"PAYTASK_AUTH_MODE", str(&c.Auth.Mode)},
		{"PAYTASK_AUTH_SECRET", str(&c.Auth.Secret)},
		{"PAYTASK_AUTH_ISSUER", str(&c.Auth.Issuer)},
		{"PAYTASK_DEFAULT_TENANT", str(&c.Auth.DefaultTenant)},
		{"PAYTASK_LEDGER_DRIVER", str(&c.Ledger.Driver)},
		{"PAYTASK_LEDGER_URL", str(&c.Ledger.BaseURL)},
		{"PAYTASK_LEDGER_API_KEY", str(&c.Ledger.APIKey)},
		{"PAYTASK_THRESHOLD", num(&c.Processor.Threshold)},
		{"PAYTASK_DELEGATION_TIMEOUT", dur(&c.Processor.DelegationTimeout)},
		{"PAYTASK_STALE_AFTER", dur(&c.Processor.StaleAfter)},
		{"PAYTASK_BATCH_WORKERS", func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			c.Processor.BatchWorkers = n
			return nil
		}},
		{"PAYTASK_LOG_FORMAT", str(&c.Log.Format)},
		{"PAYTASK_LOG_LEVEL", str(&c.Log.Level)},
	}
	for _, v := range vars {
		val, ok := lookup(v.name)
		if !ok || val == "" {
			continue
		}
		if err := v.set(val); err != nil {
			return fmt.Errorf("environment %s: %w", v.name, err)
		}
	}
	return nil
}

// Validate checks that the configuration can start a daemon.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Auth.Mode {
	case AuthJWT:
		if len(c.Auth.Secret) < 32 {
			errs = append(errs, errors.New("auth.secret must hold at least 32 bytes in jwt mode"))
		}
	case AuthHeader:
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}

	switch c.Ledger.Driver {
	case LedgerMemory:
	case LedgerUCP:
		if c.Ledger.BaseURL == "" {
			errs = append(errs, errors.New("ledger.base_url is required for the ucp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver))
	}

	if c.Processor.Threshold <= 0 {
		errs = append(errs, errors.New("processor.threshold must be positive"))
	}
	if c.Processor.DelegationTimeout <= 0 {
		errs = append(errs, errors.New("processor.delegation_timeout must be positive"))
	}
	if c.Processor.BatchWorkers <= 0 {
		errs = append(errs, errors.New("processor.batch_workers must be positive"))
	}
	for i, m := range c.Processor.Mandates {
		if m.AgentID == "" || m.Limit <= 0 {
			errs = append(errs, fmt.Errorf("processor.mandates[%d] needs an agent_id and a positive limit", i))
		}
	}

	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Mandates returns the configured mandates keyed by agent.
func (c *Config) Mandates() ledger.StaticMandates {
	if len(c.Processor.Mandates) == 0 {
		return nil
	}
	out := make(ledger.StaticMandates, len(c.Processor.Mandates))
	for _, m := range c.Processor.Mandates {
		out[m.AgentID] = ledger.Mandate{AgentID: m.AgentID, Limit: m.Limit, Currency: ledger.NormalizeCurrency(m.Currency)}
	}
	return out
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger returns a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
