package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a temporary config file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const validConfig = `
bridge:
  id: poolbridge-test
pool:
  id: pool-abc123
  poll_interval_minutes: 5
cloud:
  api_key: test-api-key
  email: owner@example.com
  password: secret
mqtt:
  broker:
    host: localhost
    port: 1883
database:
  path: ./data/test.db
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pool.ID != "pool-abc123" {
		t.Errorf("Pool.ID = %q, want %q", cfg.Pool.ID, "pool-abc123")
	}
	if cfg.Pool.PollIntervalMinutes != 5 {
		t.Errorf("PollIntervalMinutes = %d, want 5", cfg.Pool.PollIntervalMinutes)
	}
	if cfg.Cloud.Email != "owner@example.com" {
		t.Errorf("Cloud.Email = %q, want %q", cfg.Cloud.Email, "owner@example.com")
	}
	// Defaults survive a partial file
	if cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT.QoS = %d, want default 1", cfg.MQTT.QoS)
	}
	if cfg.Cloud.IdentityURL == "" {
		t.Error("Cloud.IdentityURL default not applied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file: expected error, got nil")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "pool: [not closed")
	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid YAML: expected error, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	t.Setenv("POOLBRIDGE_POOL_ID", "pool-env")
	t.Setenv("POOLBRIDGE_CLOUD_PASSWORD", "env-secret")
	t.Setenv("POOLBRIDGE_POOL_INTERVAL", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pool.ID != "pool-env" {
		t.Errorf("Pool.ID = %q, want env override %q", cfg.Pool.ID, "pool-env")
	}
	if cfg.Cloud.Password != "env-secret" {
		t.Errorf("Cloud.Password = %q, want env override", cfg.Cloud.Password)
	}
	if cfg.Pool.PollIntervalMinutes != 10 {
		t.Errorf("PollIntervalMinutes = %d, want env override 10", cfg.Pool.PollIntervalMinutes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(_ *Config) {}, false},
		{"missing pool id", func(c *Config) { c.Pool.ID = "" }, true},
		{"zero poll interval", func(c *Config) { c.Pool.PollIntervalMinutes = 0 }, true},
		{"negative poll interval", func(c *Config) { c.Pool.PollIntervalMinutes = -1 }, true},
		{"missing api key", func(c *Config) { c.Cloud.APIKey = "" }, true},
		{"missing email", func(c *Config) { c.Cloud.Email = "" }, true},
		{"missing password", func(c *Config) { c.Cloud.Password = "" }, true},
		{"missing documents url", func(c *Config) { c.Cloud.DocumentsURL = "" }, true},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Pool.ID = "pool-1"
			cfg.Cloud.APIKey = "key"
			cfg.Cloud.Email = "a@b.c"
			cfg.Cloud.Password = "pw"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPollInterval(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.PollInterval(); got != 5*time.Minute {
		t.Errorf("PollInterval() = %v, want 5m", got)
	}
}
