// Package config provides configuration loading for the pool bridge.
//
// Configuration is loaded from a YAML file with environment variable
// overrides following the POOLBRIDGE_SECTION_KEY pattern. Defaults are
// applied before the file is read, so a minimal config only needs the
// pool identity and cloud credentials.
//
// Example:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.PollInterval()
//
// Credentials (cloud email/password, API key, MQTT password, InfluxDB token)
// should be supplied via environment variables in production rather than
// committed to the config file.
package config
