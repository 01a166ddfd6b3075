// Package config loads server settings from the environment and command
// line flags. Flags override environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/serroba/annotated-docs/internal/acl"
	"github.com/serroba/annotated-docs/internal/collab"
	"github.com/spf13/pflag"
)

// ErrHelp is returned when the caller asked for usage.
var ErrHelp = pflag.ErrHelp

// Config holds the server settings.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres store.
	DatabaseURL string

	// RedisURL selects the Redis store when no database is configured,
	// and relays document events between servers.
	RedisURL string

	SavingDelay time.Duration
	ReadyLimit  time.Duration
	AdminRole   acl.Role
	LogLevel    slog.Level
}

// Load reads settings from getenv and then from args.
func Load(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	env := environment{getenv: getenv}

	var (
		cfg       Config
		adminRole string
		logLevel  string
	)

	flagSet := pflag.NewFlagSet("annotated-docs", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Addr, "addr", env.str("ANNOTATED_ADDR", ":8080"), "HTTP listen address")
	flagSet.StringVar(&cfg.DatabaseURL, "database-url", env.str("DATABASE_URL", ""), "Postgres URL")
	flagSet.StringVar(&cfg.RedisURL, "redis-url", env.str("REDIS_URL", ""), "Redis URL for storage and event relay")
	flagSet.DurationVar(&cfg.SavingDelay, "saving-delay",
		env.duration("ANNOTATED_SAVING_DELAY_MS", collab.DefaultSavingDelay),
		"how long a saving status must last before it is shown")
	flagSet.DurationVar(&cfg.ReadyLimit, "ready-limit",
		env.duration("ANNOTATED_READY_LIMIT_MS", collab.DefaultReadyLimit),
		"how long a view request waits for the editor")
	flagSet.StringVar(&adminRole, "admin-role", env.str("ANNOTATED_ADMIN_ROLE", acl.Manager.String()),
		"role site administrators hold on every document (view, edit, manage)")
	flagSet.StringVar(&logLevel, "log-level", env.str("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Config{}, ErrHelp
		}

		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	role, err := acl.ParseRole(adminRole)
	if err != nil {
		return Config{}, fmt.Errorf("admin role: %w", err)
	}

	cfg.AdminRole = role

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}

	if cfg.SavingDelay <= 0 {
		return Config{}, fmt.Errorf("saving delay must be positive, got %s", cfg.SavingDelay)
	}

	return cfg, nil
}

type environment struct {
	getenv func(string) string
}

func (e environment) str(key, fallback string) string {
	value := e.getenv(key)
	if value == "" {
		return fallback
	}

	return value
}

// duration reads a whole number of milliseconds.
func (e environment) duration(key string, fallback time.Duration) time.Duration {
	value := e.getenv(key)
	if value == "" {
		return fallback
	}

	ms, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return time.Duration(ms) * time.Millisecond
}
