package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the pool bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Pool     PoolConfig     `yaml:"pool"`
	Cloud    CloudConfig    `yaml:"cloud"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge instance identification.
type BridgeConfig struct {
	ID string `yaml:"id"`
}

// PoolConfig identifies the managed pool and how often it is polled.
type PoolConfig struct {
	// ID is the pool document identifier in the cloud document store.
	ID string `yaml:"id"`

	// PollIntervalMinutes is how often the remote document is fetched.
	// Must be a positive integer. Default: 5.
	PollIntervalMinutes int `yaml:"poll_interval_minutes"`
}

// CloudConfig contains cloud service endpoints and account credentials.
//
// Email and Password identify the pool-controller account; they are exchanged
// with the identity provider for short-lived access tokens and are never sent
// to the document store directly.
type CloudConfig struct {
	// IdentityURL is the base URL of the identity provider.
	// The sign-in endpoint lives under it.
	IdentityURL string `yaml:"identity_url"`

	// TokenURL is the refresh-token exchange endpoint.
	TokenURL string `yaml:"token_url"`

	// DocumentsURL is the base URL of the document store.
	// Pool documents live under "<DocumentsURL>/pools/{id}".
	DocumentsURL string `yaml:"documents_url"`

	// APIKey is the fixed client API key required by both identity endpoints.
	APIKey string `yaml:"api_key"`

	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite settings for the local capability store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: POOLBRIDGE_SECTION_KEY
// For example: POOLBRIDGE_CLOUD_EMAIL, POOLBRIDGE_POOL_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID: "poolbridge-01",
		},
		Pool: PoolConfig{
			PollIntervalMinutes: 5,
		},
		Cloud: CloudConfig{
			IdentityURL:  "https://identitytoolkit.googleapis.com/v1",
			TokenURL:     "https://securetoken.googleapis.com/v1/token",
			DocumentsURL: "https://firestore.googleapis.com/v1/projects/pool-controller/databases/(default)/documents",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "poolbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/poolbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: POOLBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Pool
	if v := os.Getenv("POOLBRIDGE_POOL_ID"); v != "" {
		cfg.Pool.ID = v
	}
	if v := os.Getenv("POOLBRIDGE_POOL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.PollIntervalMinutes = n
		}
	}

	// Cloud account - credentials should come from the environment in production
	if v := os.Getenv("POOLBRIDGE_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("POOLBRIDGE_CLOUD_EMAIL"); v != "" {
		cfg.Cloud.Email = v
	}
	if v := os.Getenv("POOLBRIDGE_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Password = v
	}

	// MQTT
	if v := os.Getenv("POOLBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("POOLBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("POOLBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("POOLBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("POOLBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	// Pool validation
	if c.Pool.ID == "" {
		errs = append(errs, "pool.id is required")
	}
	if c.Pool.PollIntervalMinutes < 1 {
		errs = append(errs, "pool.poll_interval_minutes must be a positive integer")
	}

	// Cloud validation
	if c.Cloud.APIKey == "" {
		errs = append(errs, "cloud.api_key is required (set POOLBRIDGE_CLOUD_API_KEY environment variable)")
	}
	if c.Cloud.Email == "" {
		errs = append(errs, "cloud.email is required")
	}
	if c.Cloud.Password == "" {
		errs = append(errs, "cloud.password is required (set POOLBRIDGE_CLOUD_PASSWORD environment variable)")
	}
	if c.Cloud.IdentityURL == "" || c.Cloud.TokenURL == "" || c.Cloud.DocumentsURL == "" {
		errs = append(errs, "cloud endpoints (identity_url, token_url, documents_url) are required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pool.PollIntervalMinutes) * time.Minute
}
