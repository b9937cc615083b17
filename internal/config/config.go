// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads accountd settings from compiled defaults, an optional
// YAML file, command-line flags and a small set of environment variables.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/token"
	"github.com/holomush/accountd/internal/xdg"
)

// Environment variables applied after the file and flags.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSigningKey  = "ACCOUNTD_TOKEN_SIGNING_KEY"
)

// CodeInvalid is the oops code for configuration errors.
const CodeInvalid = "CONFIG_INVALID"

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	// Addr is the metrics and health HTTP address. Empty disables it.
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Config is the complete accountd configuration.
type Config struct {
	Server   httpapi.Config       `koanf:"server" json:"server,omitempty"`
	Metrics  MetricsConfig        `koanf:"metrics" json:"metrics,omitempty"`
	Database store.DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Token    token.Config         `koanf:"token" json:"token,omitempty"`
	Hasher   account.HasherConfig `koanf:"hasher" json:"hasher,omitempty"`
	Notify   notify.Config        `koanf:"notify" json:"notify,omitempty"`
	Log      logging.Config       `koanf:"log" json:"log,omitempty"`
	// AutoMigrate applies pending migrations before serving.
	AutoMigrate bool `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// Default returns the compiled defaults.
func Default() Config {
	return Config{
		Server:   httpapi.DefaultConfig(),
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: store.DefaultDatabaseConfig(),
		Token:    token.Config{TTL: token.DefaultTTL, Issuer: "accountd"},
		Hasher:   account.HasherConfig{Algorithm: account.AlgorithmArgon2id, Argon2id: account.DefaultArgon2idParams()},
		Notify:   notify.DefaultConfig(),
		Log:      logging.DefaultConfig(),
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"server-addr":             "server.addr",
	"server-read-timeout":     "server.read_timeout",
	"server-write-timeout":    "server.write_timeout",
	"server-grpc-health-addr": "server.grpc_health_addr",
	"metrics-addr":            "metrics.addr",
	"database-url":            "database.url",
	"notify-driver":           "notify.driver",
	"log-format":              "log.format",
	"log-level":               "log.level",
	"auto-migrate":            "auto_migrate",
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("server-addr", d.Server.Addr, "HTTP API listen address")
	fs.Duration("server-read-timeout", d.Server.ReadTimeout, "HTTP read timeout")
	fs.Duration("server-write-timeout", d.Server.WriteTimeout, "HTTP write timeout")
	fs.String("server-grpc-health-addr", "", "gRPC health listen address (empty = disabled)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("notify-driver", d.Notify.Driver, "notification driver (log, smtp or kafka)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level")
	fs.Bool("auto-migrate", false, "apply pending migrations before serving")
}

// Load layers defaults, the YAML file at path (skipped when empty), the
// flags the user changed, and the environment overlays.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code(CodeInvalid).With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key := flagKey(f.Name)
			if !f.Changed || key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code(CodeInvalid).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code(CodeInvalid).With("path", path).Wrap(err)
	}

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvSigningKey); v != "" {
		cfg.Token.SigningKey = v
	}
	return cfg, nil
}

// flagKey returns the config key for a flag. Unknown flags, such as
// --config itself, return "" and are skipped.
func flagKey(name string) string {
	return flagKeys[name]
}

// Validate checks every section. Errors carry the offending key.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", oops.Errorf("server address is required"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return invalid("server.read_timeout", oops.Errorf("timeouts must not be negative"))
	}
	checks := []struct {
		key   string
		check func() error
	}{
		{"database", c.Database.Validate},
		{"token", c.Token.Validate},
		{"hasher", func() error { _, err := account.NewHasher(c.Hasher); return err }},
		{"notify", c.Notify.Validate},
		{"log", c.Log.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return invalid(ch.key, err)
		}
	}
	return nil
}

func invalid(key string, err error) error {
	return oops.Code(CodeInvalid).With("key", key).Wrap(err)
}

// ResolvePath returns explicit when set, else the XDG config file if one
// exists, else "".
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return xdg.ConfigFile()
}
