// homeautod is the engine process of the home automation controller.
//
// It ingests device reports over HTTP (and optionally MQTT), maintains the
// state store, evaluates output-pin expressions and input-pin triggers, and
// sends the resulting pin-set actions to the dispatch process (dispatchd)
// over a unix datagram socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/petersohn/home-automation/migrations"

	"github.com/petersohn/home-automation/internal/engine"
	"github.com/petersohn/home-automation/internal/executor"
	"github.com/petersohn/home-automation/internal/infrastructure/config"
	"github.com/petersohn/home-automation/internal/infrastructure/database"
	"github.com/petersohn/home-automation/internal/infrastructure/influxdb"
	"github.com/petersohn/home-automation/internal/infrastructure/logging"
	"github.com/petersohn/home-automation/internal/infrastructure/mqtt"
	"github.com/petersohn/home-automation/internal/ingest"
	"github.com/petersohn/home-automation/internal/process"
	"github.com/petersohn/home-automation/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// socketWaitTimeout bounds the wait for the dispatch socket at startup.
const socketWaitTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting homeautod", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version).With("process", "homeautod")

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	st := store.New(db.DB, cfg.HeartbeatTimeout())
	eng := engine.New(st, log.Logger)

	// Optionally run the dispatch process ourselves.
	if cfg.Dispatch.Managed {
		manager := process.NewManager(process.Config{
			Name:         "dispatchd",
			Binary:       cfg.Dispatch.Binary,
			Env:          []string{"HOMEAUTO_CONFIG=" + configPath},
			RestartDelay: time.Duration(cfg.Dispatch.RestartDelay) * time.Second,
		}, log.Logger)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("starting dispatch process: %w", err)
		}
		defer func() {
			log.Info("stopping dispatch process")
			if stopErr := manager.Stop(); stopErr != nil {
				log.Error("error stopping dispatch process", "error", stopErr)
			}
		}()
	}

	// The dispatch process owns the socket; wait for it to appear.
	if err := waitForSocket(ctx, cfg.Dispatch.Socket, socketWaitTimeout); err != nil {
		return fmt.Errorf("waiting for dispatch socket: %w", err)
	}
	sender, err := executor.Dial(cfg.Dispatch.Socket)
	if err != nil {
		return fmt.Errorf("connecting to dispatch socket: %w", err)
	}
	defer sender.Close()
	log.Info("dispatch channel connected", "socket", cfg.Dispatch.Socket)

	service := ingest.NewService(st, eng, sender, log.Logger)

	// Optional pin telemetry
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		service.SetTelemetry(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Optional MQTT report ingestion
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Logger)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := ingest.NewBridge(service, log.Logger)
		if err := bridge.Attach(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
			return fmt.Errorf("attaching MQTT bridge: %w", err)
		}
		log.Info("MQTT report bridge attached")
	} else {
		log.Info("MQTT disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	server := ingest.NewServer(cfg, service, log.Logger)
	server.Start()
	defer func() {
		log.Info("stopping http server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping http server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// waitForSocket polls until the dispatch socket exists.
func waitForSocket(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("socket %s did not appear within %v", path, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses HOMEAUTO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEAUTO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
