// Package config provides configuration management for the thematic screener service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SCREENER"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Database drivers.
const (
	// DriverPostgres stores status and reports in PostgreSQL.
	DriverPostgres = "postgres"
	// DriverMemory keeps everything in process memory.
	DriverMemory = "memory"
)

// ErrEmptyAccessToken is returned when SCREENER_ACCESS_TOKEN is set to an empty value.
var ErrEmptyAccessToken = errors.New("access token must not be empty")

// Config holds all configuration for the thematic screener service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains status store settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Bigdata contains Bigdata API client settings.
	Bigdata BigdataConfig `mapstructure:"bigdata"`
	// Workflow contains screening request defaults.
	Workflow WorkflowConfig `mapstructure:"workflow"`
	// Telemetry contains usage event settings.
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	// Auth contains access control settings.
	Auth AuthConfig `mapstructure:"auth"`
	// TemplatesDir holds the frontend templates.
	TemplatesDir string `mapstructure:"templates_dir"`
	// ExamplesDir holds the pre-computed example reports.
	ExamplesDir string `mapstructure:"examples_dir"`
	// DemoMode disables new submissions and serves examples only.
	DemoMode bool `mapstructure:"demo_mode"`
	// Version is reported by the health endpoint.
	Version string `mapstructure:"version"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// Port is the HTTP server port (default: 8000).
	Port int `mapstructure:"port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown, including in-flight screenings.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Driver selects the status store backend (postgres, memory).
	Driver string `mapstructure:"driver"`
	// URL is a full connection string. Loaded from SCREENER_DATABASE_URL and
	// takes precedence over the individual fields.
	URL string `mapstructure:"-"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// BigdataConfig holds Bigdata API client settings.
type BigdataConfig struct {
	// APIKey authenticates against the Bigdata API (loaded from SCREENER_BIGDATA_API_KEY).
	APIKey string `mapstructure:"-"`
	// OpenAIAPIKey is forwarded to the research workflow (loaded from SCREENER_OPENAI_API_KEY).
	OpenAIAPIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout of short API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// WorkflowTimeout bounds one thematic screener run.
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst"`
	// MaxRetries is the retry budget of short calls.
	MaxRetries int `mapstructure:"max_retries"`
	// KnowledgeGraph contains entity lookup settings.
	KnowledgeGraph KnowledgeGraphConfig `mapstructure:"knowledge_graph"`
}

// KnowledgeGraphConfig holds entity lookup settings.
type KnowledgeGraphConfig struct {
	// BatchSize is the number of IDs per lookup request.
	BatchSize int `mapstructure:"batch_size"`
	// Concurrency is the number of lookup requests in flight.
	Concurrency int `mapstructure:"concurrency"`
	// CacheSize is the entity cache capacity. Negative disables the cache.
	CacheSize int `mapstructure:"cache_size"`
	// CacheTTL is the lifetime of a cached entity.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// WorkflowConfig holds defaults applied to submitted requests.
type WorkflowConfig struct {
	// LLMModel is the default model identifier.
	LLMModel string `mapstructure:"llm_model"`
	// DocumentLimit is the default number of documents retrieved per company.
	DocumentLimit int `mapstructure:"document_limit"`
	// BatchSize is the default number of companies per workflow batch.
	BatchSize int `mapstructure:"batch_size"`
}

// TelemetryConfig holds usage event settings.
type TelemetryConfig struct {
	// Enabled turns usage events on.
	Enabled bool `mapstructure:"enabled"`
	// Bigdata sends events to the Bigdata tracking API.
	Bigdata bool `mapstructure:"bigdata"`
	// Kafka contains the optional Kafka sink settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds Kafka publisher settings for telemetry events.
type KafkaConfig struct {
	// Enabled enables the Kafka sink.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the destination topic.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages per batch.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait before sending a batch.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// AuthConfig holds access control settings.
type AuthConfig struct {
	// AccessToken, when non-empty, must be passed as the token query
	// parameter (loaded from SCREENER_ACCESS_TOKEN).
	AccessToken string `mapstructure:"-"`
}

// Enabled reports whether the token check applies.
func (c *AuthConfig) Enabled() bool {
	return c.AccessToken != ""
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/thematic-screener-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets never come from config files.
	if err := loadSecrets(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) error {
	cfg.Bigdata.APIKey = os.Getenv(EnvPrefix + "_BIGDATA_API_KEY")
	cfg.Bigdata.OpenAIAPIKey = os.Getenv(EnvPrefix + "_OPENAI_API_KEY")
	cfg.Database.URL = os.Getenv(EnvPrefix + "_DATABASE_URL")

	if token, ok := os.LookupEnv(EnvPrefix + "_ACCESS_TOKEN"); ok {
		if token == "" {
			return ErrEmptyAccessToken
		}
		cfg.Auth.AccessToken = token
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "screener")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "thematic_screener")
	// Default to "require" for production security. Use SCREENER_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "thematic_screener")

	// Bigdata defaults. API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("bigdata.base_url", "https://api.bigdata.com")
	v.SetDefault("bigdata.timeout", "30s")
	v.SetDefault("bigdata.workflow_timeout", "2h")
	v.SetDefault("bigdata.rate_limit", 10.0)
	v.SetDefault("bigdata.burst", 10)
	v.SetDefault("bigdata.max_retries", 3)
	v.SetDefault("bigdata.knowledge_graph.batch_size", 100)
	v.SetDefault("bigdata.knowledge_graph.concurrency", 4)
	v.SetDefault("bigdata.knowledge_graph.cache_size", 10000)
	v.SetDefault("bigdata.knowledge_graph.cache_ttl", "1h")

	// Workflow defaults
	v.SetDefault("workflow.llm_model", "openai::gpt-4o-mini")
	v.SetDefault("workflow.document_limit", 100)
	v.SetDefault("workflow.batch_size", 10)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.bigdata", true)
	v.SetDefault("telemetry.kafka.enabled", false)
	v.SetDefault("telemetry.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("telemetry.kafka.topic", "events.thematic_screener")
	v.SetDefault("telemetry.kafka.batch_size", 100)
	v.SetDefault("telemetry.kafka.batch_timeout", "10ms")

	v.SetDefault("templates_dir", "templates")
	v.SetDefault("examples_dir", "examples")
	v.SetDefault("demo_mode", false)
	v.SetDefault("version", "dev")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.Port)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("metrics port must differ from HTTP port: %d", c.Server.Port)
	}

	// Validate database config
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			if c.Database.Host == "" {
				return fmt.Errorf("database host is required")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				return fmt.Errorf("invalid database port: %d", c.Database.Port)
			}
			if c.Database.Name == "" {
				return fmt.Errorf("database name is required")
			}
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate Bigdata config
	if _, err := url.ParseRequestURI(c.Bigdata.BaseURL); err != nil {
		return fmt.Errorf("invalid bigdata base_url: %w", err)
	}
	if c.Bigdata.RateLimit <= 0 {
		return fmt.Errorf("bigdata rate_limit must be positive")
	}
	if c.Bigdata.KnowledgeGraph.BatchSize <= 0 {
		return fmt.Errorf("bigdata knowledge_graph batch_size must be positive")
	}

	// Validate workflow defaults
	if c.Workflow.LLMModel == "" {
		return fmt.Errorf("workflow llm_model is required")
	}
	if c.Workflow.DocumentLimit <= 0 {
		return fmt.Errorf("workflow document_limit must be positive")
	}
	if c.Workflow.BatchSize <= 0 {
		return fmt.Errorf("workflow batch_size must be positive")
	}

	// Validate telemetry config
	if c.Telemetry.Kafka.Enabled {
		if len(c.Telemetry.Kafka.Brokers) == 0 {
			return fmt.Errorf("telemetry kafka brokers are required when kafka is enabled")
		}
		if c.Telemetry.Kafka.Topic == "" {
			return fmt.Errorf("telemetry kafka topic is required when kafka is enabled")
		}
	}

	return nil
}

// AnalysisConfigured reports whether the Bigdata credentials needed to run
// screenings are present.
func (c *Config) AnalysisConfigured() bool {
	return c.Bigdata.APIKey != ""
}
