// Package config provides configuration types and defaults for bandsdb.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

// EnvPrefix is the prefix of environment overrides, e.g. BANDSDB_DSN.
const EnvPrefix = "BANDSDB"

// Config holds all configuration options for bandsdb.
type Config struct {
	Dialect   string `mapstructure:"dialect"`    // "sqlite" (default), "postgres" or "mysql"
	DSN       string `mapstructure:"dsn"`        // driver DSN; for sqlite a file path is accepted
	Debug     bool   `mapstructure:"debug"`      // log every SQL statement
	LogFormat string `mapstructure:"log_format"` // "text" (default) or "json"
	ForceSync bool   `mapstructure:"force_sync"` // drop tables before creating them
}

// Defaults returns the default configuration: a SQLite file in the
// current directory.
func Defaults() Config {
	return Config{
		Dialect:   "sqlite",
		DSN:       "bands.db",
		LogFormat: "text",
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("dialect", d.Dialect)
	v.SetDefault("dsn", d.DSN)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("force_sync", d.ForceSync)
}

// Load reads configuration into a Config. file is an explicit config file;
// when empty, bandsdb.yaml in the current directory is used if present.
// Environment variables prefixed with EnvPrefix override file values.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("bandsdb")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	d, err := orm.DialectByName(c.Dialect)
	if err != nil {
		return fmt.Errorf("dialect: %w", err)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return errors.New("dsn: must not be empty")
	}
	if d == orm.SQLite && isPrivateMemory(c.DSN) {
		return fmt.Errorf("dsn: %q gives each pooled connection its own empty database; use a file path", c.DSN)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	return nil
}

// Target returns the dialect and the DSN to open. A SQLite DSN that is a
// bare path gets foreign keys and a busy timeout enabled.
func (c Config) Target() (orm.Dialect, string, error) {
	d, err := orm.DialectByName(c.Dialect)
	if err != nil {
		return nil, "", err //nolint:wrapcheck // already descriptive
	}
	dsn := c.DSN
	if d == orm.SQLite && !strings.HasPrefix(dsn, "file:") {
		dsn = orm.SQLiteDSN(dsn)
	}
	return d, dsn, nil
}

// isPrivateMemory reports whether a SQLite DSN names a connection-private
// in-memory database.
func isPrivateMemory(dsn string) bool {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") {
		return true
	}
	return strings.HasPrefix(dsn, "file:") && strings.Contains(dsn, "mode=memory")
}
