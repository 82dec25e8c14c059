package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandsdb.yaml")
	data := "dialect: postgres\ndsn: postgres://bands@localhost/bands\ndebug: true\nlog_format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Dialect)
	require.Equal(t, "postgres://bands@localhost/bands", cfg.DSN)
	require.True(t, cfg.Debug)
	require.Equal(t, "json", cfg.LogFormat)
	require.False(t, cfg.ForceSync)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BANDSDB_DIALECT", "mysql")
	t.Setenv("BANDSDB_DSN", "root@tcp(localhost:3306)/bands")
	t.Setenv("BANDSDB_FORCE_SYNC", "true")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.Dialect)
	require.Equal(t, "root@tcp(localhost:3306)/bands", cfg.DSN)
	require.True(t, cfg.ForceSync)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"postgres alias", func(c *Config) { c.Dialect = "postgresql" }, ""},
		{"unknown dialect", func(c *Config) { c.Dialect = "oracle" }, "dialect"},
		{"empty dsn", func(c *Config) { c.DSN = "  " }, "dsn"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"sqlite memory", func(c *Config) { c.DSN = ":memory:" }, "own empty database"},
		{"sqlite memory uri", func(c *Config) { c.DSN = "file::memory:?cache=shared" }, "own empty database"},
		{"sqlite memory mode", func(c *Config) { c.DSN = "file:bands.db?mode=memory" }, "own empty database"},
		{"sqlite read-only file", func(c *Config) { c.DSN = "file:bands.db?mode=ro" }, ""},
		{"postgres ignores sqlite names", func(c *Config) {
			c.Dialect = "postgres"
			c.DSN = ":memory:"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTarget(t *testing.T) {
	t.Parallel()

	d, dsn, err := Defaults().Target()
	require.NoError(t, err)
	require.Equal(t, orm.SQLite, d)
	require.Equal(t, orm.SQLiteDSN("bands.db"), dsn)

	d, dsn, err = Config{Dialect: "sqlite", DSN: "file:x.db?mode=ro"}.Target()
	require.NoError(t, err)
	require.Equal(t, orm.SQLite, d)
	require.Equal(t, "file:x.db?mode=ro", dsn)

	d, dsn, err = Config{Dialect: "mysql", DSN: "root@/bands"}.Target()
	require.NoError(t, err)
	require.Equal(t, orm.MySQL, d)
	require.Equal(t, "root@/bands", dsn)
}
