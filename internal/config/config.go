package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"flakecast/pkg/errors"
	"flakecast/pkg/models"
)

// DateLayout is the layout of every configured calendar date.
const DateLayout = "2006-01-02"

// identifierPattern accepts plain and dotted (db.schema.object) identifiers.
// Table and function names cannot be bind parameters, so nothing else gets
// interpolated into SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

func GetConfigPath() string {
	if configPath := os.Getenv("FLAKECAST_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".flakecast")
}

func GetConfigFile() string {
	if configFile := os.Getenv("FLAKECAST_CONFIG"); configFile != "" {
		return filepath.Clean(configFile)
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// SetDefaults registers every key with viper. Keys without a default would be
// invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("snowflake.account", "")
	v.SetDefault("snowflake.username", "")
	v.SetDefault("snowflake.password", "")
	v.SetDefault("snowflake.role", "")
	v.SetDefault("snowflake.warehouse", "")
	v.SetDefault("snowflake.database", "")
	v.SetDefault("snowflake.schema", "")
	v.SetDefault("snowflake.timeout", 60*time.Second)

	v.SetDefault("forecast.sales_table", "BUSINESS_DATA.PUBLIC.SALES_DATA")
	v.SetDefault("forecast.function", "MY_FORECASTING_APP.SNOWML.FORECAST")
	v.SetDefault("forecast.date_column", "DATE")
	v.SetDefault("forecast.store_column", "STORE")
	v.SetDefault("forecast.item_column", "ITEM")
	v.SetDefault("forecast.value_column", "SALES")
	v.SetDefault("forecast.training_cutoff", "2017-10-31")
	v.SetDefault("forecast.display_start", "2017-06-01")
	v.SetDefault("forecast.min_horizon", 1)
	v.SetDefault("forecast.max_horizon", 80)

	v.SetDefault("catalog.max_entries", 500)
	v.SetDefault("catalog.preview_limit", 100)

	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("annotations.backend", "snowflake")
	v.SetDefault("annotations.table", "FORECAST_COMMENTS")
	v.SetDefault("annotations.sqlite_path", filepath.Join(GetConfigPath(), "annotations.db"))
	v.SetDefault("annotations.unique", false)

	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// BindEnv makes FLAKECAST_SNOWFLAKE_PASSWORD and friends override the file.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FLAKECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the viper state into a validated config.
func Load(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks everything that does not need a warehouse connection.
// Connection fields are checked when the session is opened.
func Validate(cfg *models.Config) error {
	f := cfg.Forecast
	for field, ident := range map[string]string{
		"forecast.sales_table":  f.SalesTable,
		"forecast.function":     f.Function,
		"forecast.date_column":  f.DateColumn,
		"forecast.store_column": f.StoreColumn,
		"forecast.item_column":  f.ItemColumn,
		"forecast.value_column": f.ValueColumn,
		"annotations.table":     cfg.Annotations.Table,
	} {
		if !IsIdentifier(ident) {
			return errors.ConfigError(fmt.Sprintf("%q is not a valid SQL identifier", ident), field)
		}
	}

	cutoff, err := time.Parse(DateLayout, f.TrainingCutoff)
	if err != nil {
		return errors.ConfigError("training cutoff must be a YYYY-MM-DD date", "forecast.training_cutoff")
	}
	start, err := time.Parse(DateLayout, f.DisplayStart)
	if err != nil {
		return errors.ConfigError("display start must be a YYYY-MM-DD date", "forecast.display_start")
	}
	if start.After(cutoff) {
		return errors.ConfigError("display start must not be after the training cutoff", "forecast.display_start")
	}

	if f.MinHorizon < 1 {
		return errors.ConfigError("minimum horizon must be at least 1", "forecast.min_horizon")
	}
	if f.MaxHorizon < f.MinHorizon {
		return errors.ConfigError("maximum horizon must not be below the minimum", "forecast.max_horizon")
	}

	if cfg.Catalog.MaxEntries < 1 {
		return errors.ConfigError("catalog max entries must be positive", "catalog.max_entries")
	}
	if cfg.Cache.TTL < 0 {
		return errors.ConfigError("cache ttl must not be negative", "cache.ttl")
	}

	switch cfg.Annotations.Backend {
	case "snowflake":
	case "sqlite":
		if cfg.Annotations.SQLitePath == "" {
			return errors.ConfigError("sqlite backend needs a path", "annotations.sqlite_path")
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unknown annotation backend %q", cfg.Annotations.Backend), "annotations.backend")
	}

	return nil
}

// IsIdentifier reports whether s is safe to splice into SQL as an object name.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// ParseDate parses a configured YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Redacted returns a copy safe to print.
func Redacted(cfg *models.Config) models.Config {
	out := *cfg
	if out.Snowflake.Password != "" {
		out.Snowflake.Password = "********"
	}
	return out
}

// Marshal renders the config as YAML with the password redacted.
func Marshal(cfg *models.Config) ([]byte, error) {
	redacted := Redacted(cfg)
	return yaml.Marshal(&redacted)
}

// Save writes a config file without the password; passwords belong in the
// keyring or the environment.
func Save(cfg *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	out.Snowflake.Password = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
