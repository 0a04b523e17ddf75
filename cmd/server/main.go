package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/talkroom/internal/auth"
	"github.com/Tyrowin/talkroom/internal/config"
	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/server"
	"github.com/Tyrowin/talkroom/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := server.NewHub(server.HubOptions{Logger: log, Location: cfg.Location()})
	go hub.Run()

	srv, err := server.NewServer(server.Deps{
		Config: cfg,
		Logger: log,
		Hub:    hub,
		Auth:   auth.NewService(repo, cfg.Auth, log),
		Guard:  auth.NewGuard(repo, cfg.Auth.Secret, log),
	})
	if err != nil {
		return err
	}

	httpServer := server.CreateServer(cfg.Port, srv.Routes())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = hub.Shutdown(shutdownTimeout)
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout, log); err != nil {
		log.Warn(context.Background(), "http shutdown incomplete", "err", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn(context.Background(), "hub shutdown incomplete", "err", err)
	}
	return nil
}

// openStore selects the credential store. The returned func releases it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (users.Repository, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn(ctx, "using in-memory credential store; accounts are lost on restart")
		return users.NewMemoryRepository(), func() {}, nil
	}

	db, err := users.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := users.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info(ctx, "connected to postgres", "host", cfg.Host, "database", cfg.Name)

	return users.NewPostgresRepository(db, cfg.QueryTimeout), closeDB(db, log), nil
}

func closeDB(db *sql.DB, log logging.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn(context.Background(), "error closing database", "err", err)
		}
	}
}
