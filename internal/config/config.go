package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Reporting ReportingConfig `yaml:"reporting" mapstructure:"reporting"`
	Models    []ModelConfig   `yaml:"models" mapstructure:"models"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Port           string        `yaml:"port" mapstructure:"port" json:"port"`
	Host           string        `yaml:"host" mapstructure:"host" json:"host"`
	CORSOrigins    []string      `yaml:"corsOrigins" mapstructure:"corsOrigins" json:"corsOrigins"`
	RequestTimeout time.Duration `yaml:"requestTimeout" mapstructure:"requestTimeout" json:"requestTimeout"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled               bool   `yaml:"enabled" mapstructure:"enabled"`
	Path                  string `yaml:"path" mapstructure:"path"`
	IncludeProcessMetrics bool   `yaml:"includeProcessMetrics" mapstructure:"includeProcessMetrics"`
	IncludeGoMetrics      bool   `yaml:"includeGoMetrics" mapstructure:"includeGoMetrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string            `yaml:"level" mapstructure:"level"`
	Format string            `yaml:"format" mapstructure:"format"`
	Output string            `yaml:"output" mapstructure:"output"`
	Fields map[string]string `yaml:"fields" mapstructure:"fields"`
}

// StorageConfig selects and configures the data source reports read from
type StorageConfig struct {
	Backend    string           `yaml:"backend" mapstructure:"backend"`
	Badger     BadgerConfig     `yaml:"badger" mapstructure:"badger"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	SQLite     SQLiteConfig     `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres   PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse" mapstructure:"clickhouse"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb" mapstructure:"influxdb"`
}

// BadgerConfig contains BadgerDB record store settings
type BadgerConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	RetentionDays int    `yaml:"retentionDays" mapstructure:"retentionDays"`
}

// RedisConfig contains Redis record store settings
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"keyPrefix" mapstructure:"keyPrefix"`
}

// SQLiteConfig points at an operator-owned SQLite database
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslMode" mapstructure:"sslMode"`
	MaxConns int32  `yaml:"maxConns" mapstructure:"maxConns"`
}

// ClickHouseConfig contains ClickHouse connection settings
type ClickHouseConfig struct {
	Addr     []string `yaml:"addr" mapstructure:"addr"`
	Database string   `yaml:"database" mapstructure:"database"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
}

// InfluxDBConfig contains InfluxDB connection settings
type InfluxDBConfig struct {
	URL        string `yaml:"url" mapstructure:"url"`
	Token      string `yaml:"token" mapstructure:"token"`
	Org        string `yaml:"org" mapstructure:"org"`
	Bucket     string `yaml:"bucket" mapstructure:"bucket"`
	TimeColumn string `yaml:"timeColumn" mapstructure:"timeColumn"` // attribute used as the point time
}

// ReportingConfig holds the defaults applied to every declared report
type ReportingConfig struct {
	DefaultLimit       int                `yaml:"defaultLimit" mapstructure:"defaultLimit"`
	DefaultDateColumn  string             `yaml:"defaultDateColumn" mapstructure:"defaultDateColumn"`
	DefaultGrouping    models.Grouping    `yaml:"defaultGrouping" mapstructure:"defaultGrouping"`
	DefaultAggregation models.Aggregation `yaml:"defaultAggregation" mapstructure:"defaultAggregation"`
}

// ModelConfig declares the reports attached to one model
type ModelConfig struct {
	Name    string             `yaml:"name" mapstructure:"name"`
	Reports []ReportDefinition `yaml:"reports" mapstructure:"reports"`
}

// ReportDefinition is the declarative form of one report. Semantic checks
// (sum without a value column, unknown grouping) happen when the report runs.
type ReportDefinition struct {
	Name        string             `yaml:"name" mapstructure:"name"`
	DateColumn  string             `yaml:"dateColumn" mapstructure:"dateColumn"`
	ValueColumn string             `yaml:"valueColumn" mapstructure:"valueColumn"`
	Aggregation models.Aggregation `yaml:"aggregation" mapstructure:"aggregation"`
	Grouping    models.Grouping    `yaml:"grouping" mapstructure:"grouping"`
	Limit       int                `yaml:"limit" mapstructure:"limit"`
	Cumulate    bool               `yaml:"cumulate" mapstructure:"cumulate"`
	Conditions  models.Conditions  `yaml:"conditions" mapstructure:"conditions"`
}

var reportNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", "7979")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000", "http://localhost:7979"})
	v.SetDefault("server.requestTimeout", "30s")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.includeProcessMetrics", true)
	v.SetDefault("metrics.includeGoMetrics", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.badger.path", "./data/badger")
	v.SetDefault("storage.badger.retentionDays", 0)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.keyPrefix", "sparkreport")
	v.SetDefault("storage.sqlite.path", "./data/sparkreport.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslMode", "disable")
	v.SetDefault("storage.postgres.maxConns", 10)
	v.SetDefault("storage.clickhouse.addr", []string{"localhost:9000"})
	v.SetDefault("storage.clickhouse.database", "default")
	v.SetDefault("storage.influxdb.url", "http://localhost:8086")
	v.SetDefault("storage.influxdb.timeColumn", "created_at")
	v.SetDefault("reporting.defaultLimit", 100)
	v.SetDefault("reporting.defaultDateColumn", "created_at")
	v.SetDefault("reporting.defaultGrouping", "day")
	v.SetDefault("reporting.defaultAggregation", "count")

	// SPARKREPORT_SERVER_PORT overrides server.port
	v.SetEnvPrefix("SPARKREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sparkreport")
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate validates the structure of the configuration. Report semantics are
// checked when a report runs.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.requestTimeout cannot be negative")
	}

	switch c.Storage.Backend {
	case "memory", "badger", "redis", "sqlite", "postgres", "clickhouse", "influxdb":
	default:
		return fmt.Errorf("invalid storage backend: %q", c.Storage.Backend)
	}

	if c.Reporting.DefaultLimit < 0 {
		return fmt.Errorf("reporting.defaultLimit cannot be negative")
	}

	modelNames := make(map[string]bool)
	for _, model := range c.Models {
		if model.Name == "" {
			return fmt.Errorf("model name is required")
		}
		if modelNames[model.Name] {
			return fmt.Errorf("duplicate model name: %s", model.Name)
		}
		modelNames[model.Name] = true

		reportNames := make(map[string]bool)
		for _, report := range model.Reports {
			if report.Name == "" {
				return fmt.Errorf("report name is required in model %s", model.Name)
			}
			if !reportNamePattern.MatchString(report.Name) {
				return fmt.Errorf("report name %q in model %s must be an identifier", report.Name, model.Name)
			}
			if reportNames[report.Name] {
				return fmt.Errorf("duplicate report name %s in model %s", report.Name, model.Name)
			}
			reportNames[report.Name] = true
		}
	}

	return nil
}

// ReportCount returns the number of declared reports per model
func (c *Config) ReportCount() map[string]int {
	counts := make(map[string]int, len(c.Models))
	for _, model := range c.Models {
		counts[model.Name] = len(model.Reports)
	}
	return counts
}
