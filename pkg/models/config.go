package models

import "time"

type Config struct {
	Snowflake   Snowflake   `yaml:"snowflake" mapstructure:"snowflake"`
	Forecast    Forecast    `yaml:"forecast" mapstructure:"forecast"`
	Catalog     Catalog     `yaml:"catalog" mapstructure:"catalog"`
	Cache       Cache       `yaml:"cache" mapstructure:"cache"`
	Annotations Annotations `yaml:"annotations" mapstructure:"annotations"`
	Server      Server      `yaml:"server" mapstructure:"server"`
	Log         Log         `yaml:"log" mapstructure:"log"`
}

type Snowflake struct {
	Account   string        `yaml:"account" mapstructure:"account"`
	Username  string        `yaml:"username" mapstructure:"username"`
	Password  string        `yaml:"password" mapstructure:"password"`
	Role      string        `yaml:"role" mapstructure:"role"`
	Warehouse string        `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string        `yaml:"database" mapstructure:"database"`
	Schema    string        `yaml:"schema" mapstructure:"schema"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Forecast describes where history lives and how the warehouse forecast
// function is called.
type Forecast struct {
	SalesTable     string `yaml:"sales_table" mapstructure:"sales_table"`
	Function       string `yaml:"function" mapstructure:"function"`
	DateColumn     string `yaml:"date_column" mapstructure:"date_column"`
	StoreColumn    string `yaml:"store_column" mapstructure:"store_column"`
	ItemColumn     string `yaml:"item_column" mapstructure:"item_column"`
	ValueColumn    string `yaml:"value_column" mapstructure:"value_column"`
	TrainingCutoff string `yaml:"training_cutoff" mapstructure:"training_cutoff"` // YYYY-MM-DD, exclusive
	DisplayStart   string `yaml:"display_start" mapstructure:"display_start"`     // YYYY-MM-DD, inclusive
	MinHorizon     int    `yaml:"min_horizon" mapstructure:"min_horizon"`
	MaxHorizon     int    `yaml:"max_horizon" mapstructure:"max_horizon"`
}

type Catalog struct {
	MaxEntries   int `yaml:"max_entries" mapstructure:"max_entries"`
	PreviewLimit int `yaml:"preview_limit" mapstructure:"preview_limit"`
}

// Cache controls the forecast result cache. A zero TTL never expires.
type Cache struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type Annotations struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // "snowflake" or "sqlite"
	Table      string `yaml:"table" mapstructure:"table"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Unique     bool   `yaml:"unique" mapstructure:"unique"`
}

type Server struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "console"
}
