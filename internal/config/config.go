// Package config loads service configuration from YAML plus
// environment overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Invoicing InvoicingConfig `mapstructure:"invoicing"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// MatchingConfig holds the matcher's validation tolerances.
type MatchingConfig struct {
	AmountTolerance float64       `mapstructure:"amount_tolerance"`
	IDTimeWindow    time.Duration `mapstructure:"id_time_window"`
	FuzzyTimeWindow time.Duration `mapstructure:"fuzzy_time_window"`
}

// FeeConfig is one processing-fee schedule entry.
type FeeConfig struct {
	Percentage float64 `mapstructure:"percentage"`
	Fixed      float64 `mapstructure:"fixed"`
}

// InvoicingConfig holds invoice build settings.
type InvoicingConfig struct {
	NumberPrefix  string               `mapstructure:"number_prefix"`
	GSTRate       float64              `mapstructure:"gst_rate"`
	Fees          map[string]FeeConfig `mapstructure:"fees"`
	LookupWorkers int                  `mapstructure:"lookup_workers"`
	SupplierName  string               `mapstructure:"supplier_name"`
	SupplierABN   string               `mapstructure:"supplier_abn"`
	ExportDir     string               `mapstructure:"export_dir"`
}

// ReconcileConfig holds batch reconciliation settings.
type ReconcileConfig struct {
	BatchLimit   int           `mapstructure:"batch_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ReportDir    string        `mapstructure:"report_dir"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("INVOICING")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/invoicing.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("matching.amount_tolerance", 0.10)
	viper.SetDefault("matching.id_time_window", 10*time.Minute)
	viper.SetDefault("matching.fuzzy_time_window", 5*time.Minute)

	viper.SetDefault("invoicing.number_prefix", "LTIV")
	viper.SetDefault("invoicing.gst_rate", 0.10)
	viper.SetDefault("invoicing.lookup_workers", 4)
	viper.SetDefault("invoicing.fees.stripe.percentage", 0.022)
	viper.SetDefault("invoicing.fees.stripe.fixed", 0.30)
	viper.SetDefault("invoicing.fees.square.percentage", 0.022)
	viper.SetDefault("invoicing.fees.square.fixed", 0.0)
	viper.SetDefault("invoicing.export_dir", "exports")

	viper.SetDefault("reconcile.batch_limit", 500)
	viper.SetDefault("reconcile.poll_interval", 5*time.Minute)
	viper.SetDefault("reconcile.report_dir", "reports")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Matching.AmountTolerance < 0 {
		return fmt.Errorf("matching.amount_tolerance must not be negative")
	}
	if c.Invoicing.GSTRate < 0 || c.Invoicing.GSTRate >= 1 {
		return fmt.Errorf("invoicing.gst_rate must be in [0,1), got %f", c.Invoicing.GSTRate)
	}
	if c.Invoicing.LookupWorkers < 1 {
		return fmt.Errorf("invoicing.lookup_workers must be at least 1")
	}
	return nil
}
