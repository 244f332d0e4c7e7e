package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"flakecast/internal/security"
	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

func newViper(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	if doc != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "2017-10-31", cfg.Forecast.TrainingCutoff)
	assert.Equal(t, "2017-06-01", cfg.Forecast.DisplayStart)
	assert.Equal(t, 1, cfg.Forecast.MinHorizon)
	assert.Equal(t, 80, cfg.Forecast.MaxHorizon)
	assert.Equal(t, 500, cfg.Catalog.MaxEntries)
	assert.Equal(t, time.Duration(0), cfg.Cache.TTL)
	assert.Equal(t, "snowflake", cfg.Annotations.Backend)
	assert.False(t, cfg.Annotations.Unique)
	assert.Equal(t, 60*time.Second, cfg.Snowflake.Timeout)
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := Load(newViper(t, `
snowflake:
  account: xy12345.us-east-1
  username: analyst
  role: ANALYST
  warehouse: FORECAST_WH
  database: BUSINESS_DATA
  schema: PUBLIC
  timeout: 2m
forecast:
  max_horizon: 30
cache:
  ttl: 15m
annotations:
  backend: sqlite
  sqlite_path: /tmp/notes.db
  unique: true
`))
	require.NoError(t, err)

	assert.Equal(t, "xy12345.us-east-1", cfg.Snowflake.Account)
	assert.Equal(t, 2*time.Minute, cfg.Snowflake.Timeout)
	assert.Equal(t, 30, cfg.Forecast.MaxHorizon)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Annotations.Backend)
	assert.True(t, cfg.Annotations.Unique)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FLAKECAST_SNOWFLAKE_PASSWORD", "from-env")
	t.Setenv("FLAKECAST_FORECAST_MAX_HORIZON", "40")

	cfg, err := Load(newViper(t, "snowflake:\n  password: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Snowflake.Password)
	assert.Equal(t, 40, cfg.Forecast.MaxHorizon)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Config)
		field  string
	}{
		{"bad table", func(c *models.Config) { c.Forecast.SalesTable = "SALES; DROP TABLE X" }, "forecast.sales_table"},
		{"bad function", func(c *models.Config) { c.Forecast.Function = "a.b.c.d" }, "forecast.function"},
		{"bad annotation table", func(c *models.Config) { c.Annotations.Table = "1COMMENTS" }, "annotations.table"},
		{"bad cutoff", func(c *models.Config) { c.Forecast.TrainingCutoff = "31/10/2017" }, "forecast.training_cutoff"},
		{"start after cutoff", func(c *models.Config) { c.Forecast.DisplayStart = "2018-01-01" }, "forecast.display_start"},
		{"zero min horizon", func(c *models.Config) { c.Forecast.MinHorizon = 0 }, "forecast.min_horizon"},
		{"max below min", func(c *models.Config) { c.Forecast.MaxHorizon = 0 }, "forecast.max_horizon"},
		{"catalog limit", func(c *models.Config) { c.Catalog.MaxEntries = 0 }, "catalog.max_entries"},
		{"negative ttl", func(c *models.Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
		{"unknown backend", func(c *models.Config) { c.Annotations.Backend = "postgres" }, "annotations.backend"},
		{"sqlite without path", func(c *models.Config) {
			c.Annotations.Backend = "sqlite"
			c.Annotations.SQLitePath = ""
		}, "annotations.sqlite_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper(t, ""))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = Validate(cfg)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))

			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("SALES_DATA"))
	assert.True(t, IsIdentifier("BUSINESS_DATA.PUBLIC.SALES_DATA"))
	assert.True(t, IsIdentifier("my_forecasting_app.snowml.forecast"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("SALES DATA"))
	assert.False(t, IsIdentifier("x'--"))
}

func TestMarshalRedactsPassword(t *testing.T) {
	cfg, err := Load(newViper(t, "snowflake:\n  password: hunter2\n"))
	require.NoError(t, err)

	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "********")
	assert.Equal(t, "hunter2", cfg.Snowflake.Password)
}

func TestSaveOmitsPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("FLAKECAST_CONFIG", path)

	cfg, err := Load(newViper(t, "snowflake:\n  account: acct\n  password: hunter2\n"))
	require.NoError(t, err)
	require.NoError(t, Save(cfg))
	assert.True(t, Exists())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")

	var back models.Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, "acct", back.Snowflake.Account)
}

type stubSource struct {
	password string
	err      error
	calls    int
}

func (s *stubSource) Password(account, user string) (string, error) {
	s.calls++
	return s.password, s.err
}

func TestResolvePassword(t *testing.T) {
	t.Run("configured password wins", func(t *testing.T) {
		cfg := &models.Config{Snowflake: models.Snowflake{Password: "set"}}
		src := &stubSource{password: "stored"}
		require.NoError(t, ResolvePassword(cfg, src))
		assert.Equal(t, "set", cfg.Snowflake.Password)
		assert.Zero(t, src.calls)
	})

	t.Run("falls back to the secret store", func(t *testing.T) {
		cfg := &models.Config{Snowflake: models.Snowflake{Account: "acct", Username: "user"}}
		require.NoError(t, ResolvePassword(cfg, &stubSource{password: "stored"}))
		assert.Equal(t, "stored", cfg.Snowflake.Password)
	})

	t.Run("nothing stored", func(t *testing.T) {
		cfg := &models.Config{}
		err := ResolvePassword(cfg, &stubSource{err: security.ErrNotFound})
		assert.Equal(t, errors.ErrCodeCredentials, errors.GetErrorCode(err))
	})

	t.Run("store failure", func(t *testing.T) {
		cfg := &models.Config{}
		err := ResolvePassword(cfg, &stubSource{err: fmt.Errorf("dbus unavailable")})
		assert.ErrorContains(t, err, "dbus unavailable")
	})

	t.Run("no store", func(t *testing.T) {
		assert.Error(t, ResolvePassword(&models.Config{}, nil))
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FLAKECAST_TEST_DOTENV=loaded\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("FLAKECAST_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("FLAKECAST_TEST_DOTENV"))
}
