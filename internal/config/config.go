// Package config resolves the CLI runtime configuration from flags,
// MINIORM_* environment variables, .env files and an optional YAML file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"miniorm/internal/logging"
	"miniorm/pkg/observability"
	"miniorm/pkg/store"
)

// EnvPrefix prefixes every environment variable, e.g. MINIORM_DSN.
const EnvPrefix = "miniorm"

// Keys shared by flags, environment and the config file.
const (
	KeyConfig    = "config"
	KeyDriver    = "driver"
	KeyDSN       = "dsn"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
	KeyMetrics   = "metrics"
)

// DefaultEnvFiles are loaded, when present, before the environment is read.
// Variables already set in the process win over the files.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config is the resolved runtime configuration.
type Config struct {
	Driver  string
	DSN     string
	Logging logging.Config
	// Metrics names the exporter printed after each command, empty when off.
	Metrics string
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "YAML config file")
	fs.String(KeyDriver, "sqlite", "database driver (sqlite, postgres)")
	fs.String(KeyDSN, "", "data source name; defaults to the driver's default")
	fs.String(KeyLogLevel, "warn", "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "text", "log format (text, json)")
	fs.String(KeyMetrics, "", "print metrics after the command (prometheus, expvar)")
	fs.Lookup(KeyMetrics).NoOptDefVal = observability.KindPrometheus
}

// Load resolves the configuration. Precedence, highest first: flags set on
// the command line, environment, config file, flag defaults.
func Load(fs *pflag.FlagSet, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Driver: v.GetString(KeyDriver),
		DSN:    v.GetString(KeyDSN),
		Logging: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Metrics: metricsKind(v.GetString(KeyMetrics)),
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// metricsKind maps boolean spellings onto an exporter kind.
func metricsKind(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false", "0", "no":
		return ""
	case "true", "on", "1", "yes":
		return observability.KindPrometheus
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

// Validate checks the driver, the log level and the metrics exporter.
func (c Config) Validate() error {
	if _, err := store.DialectFor(c.Driver); err != nil {
		return err
	}
	switch c.Metrics {
	case "", observability.KindPrometheus, observability.KindExpvar:
	default:
		return fmt.Errorf("unknown metrics exporter %q", c.Metrics)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
