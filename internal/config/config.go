// Package config loads settings from defaults, an optional YAML file,
// TANGO_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/conorfennell/tango/internal/srs"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read into the config.
const EnvPrefix = "TANGO_"

// Config is the application configuration.
type Config struct {
	DB           string        `koanf:"db" validate:"required"`
	Addr         string        `koanf:"addr" validate:"required"`
	ReposDir     string        `koanf:"repos-dir" validate:"required"`
	SyncInterval time.Duration `koanf:"sync-interval" validate:"gte=0"`
	LogLevel     string        `koanf:"log-level" validate:"oneof=debug info warn error"`
	Scheduler    srs.Config    `koanf:"scheduler"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:           "tango.db",
		Addr:         ":8080",
		ReposDir:     "repos",
		SyncInterval: 0,
		LogLevel:     "info",
		Scheduler:    srs.DefaultConfig(),
	}
}

// NewFlagSet returns the flags that map onto Config keys. Callers may add
// their own flags before parsing.
func NewFlagSet(name string) *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "tango.yaml", "Path to the YAML config file")
	fs.String("db", d.DB, "Path to the SQLite database file")
	fs.String("addr", d.Addr, "Address the web server listens on")
	fs.String("repos-dir", d.ReposDir, "Directory git sources are cloned into")
	fs.Duration("sync-interval", d.SyncInterval, "Background sync interval while serving (0 disables)")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	return fs
}

// Load builds the configuration from a parsed flag set.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !flags.Changed("config"):
			// The default file is optional.
		default:
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := Default()
	// Decoding into a populated slice keeps trailing defaults, so start empty.
	if k.Exists("scheduler.graded-intervals") {
		cfg.Scheduler.GradedIntervals = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps TANGO_SCHEDULER__MAX_INTERVAL to scheduler.max-interval.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ReplaceAll(s, "_", "-")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field, including the scheduler settings.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// SlogLevel converts LogLevel for use with log/slog.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
