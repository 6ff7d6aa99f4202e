// Pool Bridge - Pool Controller Cloud Gateway
//
// This is the main entry point for the pool bridge. It connects a
// cloud-managed pool controller to the local MQTT bus: capability state
// flows out on retained topics, set-requests flow back in as commands, and
// edge events fire on status transitions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-pool/migrations"

	"github.com/nerrad567/gray-logic-pool/internal/bridges/pool"
	"github.com/nerrad567/gray-logic-pool/internal/host"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pool/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-pool/internal/poolcloud"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pool bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the cloud session and document client
	sessions := poolcloud.NewSessionManager(poolcloud.SessionConfig{
		IdentityURL: cfg.Cloud.IdentityURL,
		TokenURL:    cfg.Cloud.TokenURL,
		APIKey:      cfg.Cloud.APIKey,
	}, poolcloud.Credentials{
		Email:    cfg.Cloud.Email,
		Password: cfg.Cloud.Password,
	})
	sessions.SetLogger(log)

	cloudClient := poolcloud.NewClient(poolcloud.ClientConfig{
		DocumentsURL: cfg.Cloud.DocumentsURL,
	}, sessions)
	cloudClient.SetLogger(log)

	// Start the device host
	deviceHost, err := host.New(host.Options{
		PoolID:     cfg.Pool.ID,
		Repository: host.NewSQLiteRepository(db),
		Bus:        mqttClient,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating device host: %w", err)
	}
	if err := deviceHost.Start(ctx); err != nil {
		return fmt.Errorf("starting device host: %w", err)
	}
	log.Info("device host started", "pool", cfg.Pool.ID)

	// Start the pool bridge
	bridgeOpts := pool.Options{
		PoolID:       cfg.Pool.ID,
		PollInterval: cfg.PollInterval(),
		API:          cloudClient,
		Host:         deviceHost,
		Logger:       log,
	}
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}

	bridge, err := pool.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating pool bridge: %w", err)
	}
	bridge.Start(ctx)
	defer func() {
		log.Info("stopping pool bridge")
		bridge.Stop()
	}()
	log.Info("pool bridge started",
		"pool", cfg.Pool.ID,
		"poll_interval_minutes", cfg.Pool.PollIntervalMinutes,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Pool bridge
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("pool bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POOLBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POOLBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Cloud health is verified by the bridge's first poll; a failed
	// poll surfaces on the device status topic rather than aborting
	// startup, since the cloud side may recover on its own.

	return nil
}
