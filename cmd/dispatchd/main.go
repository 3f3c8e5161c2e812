// dispatchd is the dispatch process of the home automation controller.
//
// It listens on a unix datagram socket for actions serialized by homeautod,
// owns one connection actor per device address and performs the actual
// pin-set HTTP requests against devices. Delivery failures are recorded in
// the shared state store's log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/petersohn/home-automation/migrations"

	"github.com/petersohn/home-automation/internal/dispatch"
	"github.com/petersohn/home-automation/internal/executor"
	"github.com/petersohn/home-automation/internal/infrastructure/config"
	"github.com/petersohn/home-automation/internal/infrastructure/database"
	"github.com/petersohn/home-automation/internal/infrastructure/logging"
	"github.com/petersohn/home-automation/internal/store"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting dispatchd", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("process", "dispatchd")

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

	// Either process may start first; both apply migrations.
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	st := store.New(db.DB, cfg.HeartbeatTimeout())

	dispatcher := dispatch.New(dispatch.NewStoreResolver(st), dispatch.Config{
		Timeout:   cfg.DispatchTimeout(),
		Retries:   cfg.Dispatch.Retries,
		QueueSize: cfg.Dispatch.QueueSize,
	}, log.Logger)
	defer func() {
		log.Info("draining dispatcher")
		dispatcher.Close()
	}()

	dispatcher.SetOnResponse(func(device, body string) {
		log.Debug("device responded", "device", device, "body", body)
	})
	dispatcher.SetOnError(func(device string, err error) {
		// The dispatcher already logged it; record it for operators too.
		logCtx, cancel := context.WithTimeout(context.Background(), cfg.DispatchTimeout())
		defer cancel()
		if logErr := st.Log(logCtx, store.SeverityError, err.Error(), &device, nil); logErr != nil {
			log.Error("recording dispatch failure failed", "device", device, "error", logErr)
		}
	})

	server := executor.NewServer(cfg.Dispatch.Socket, func(a dispatch.Action) {
		if err := dispatcher.Submit(ctx, a); err != nil {
			log.Error("submitting action failed", "type", a.Type, "device", a.Device, "error", err)
		}
	}, log.Logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting executor server: %w", err)
	}
	defer func() {
		log.Info("closing executor socket")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing executor socket", "error", closeErr)
		}
	}()
	log.Info("listening for dispatch actions", "socket", cfg.Dispatch.Socket)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEAUTO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEAUTO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
