package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/calyptra/tunesync/internal/jobs"
	"github.com/calyptra/tunesync/internal/library"
	"github.com/calyptra/tunesync/internal/models"
	"github.com/calyptra/tunesync/internal/repositories"
	"github.com/calyptra/tunesync/internal/server"
	"github.com/calyptra/tunesync/internal/shared"
	"github.com/calyptra/tunesync/internal/syncer"
	"github.com/calyptra/tunesync/internal/watcher"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sync server with job queue, event stream, and subscription watcher",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the configured listen port",
			},
		},
		Action: r.Serve,
	}
}

// Serve wires the whole service together and blocks until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if configPath := cmd.String("config"); configPath != "" {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			r.logger.Warn("failed to load config, using current settings", "error", err)
		}
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	format, err := models.ParseAudioFormat(config.Downloads.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	writer := library.NewWriter(config.Downloads.Directory, format, r.httpClient)
	runner := syncer.New(r.catalog, writer, shared.WithLogger(r.logger, "component", "syncer"))

	store := jobs.NewStore(config.Jobs.QueueLimit)
	bus := jobs.NewBus(shared.WithLogger(r.logger, "component", "bus"))
	timeout := time.Duration(config.Jobs.TimeoutMinutes) * time.Minute
	executor := jobs.NewExecutor(store, bus, runner, shared.WithLogger(r.logger, "component", "executor"), timeout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		executor.Run(ctx)
	}()

	if config.Watcher.Enabled {
		repo := repositories.NewSubscriptionRepository(db)
		interval := time.Duration(config.Watcher.IntervalMinutes) * time.Minute
		w := watcher.New(repo, store, executor, bus, interval, shared.WithLogger(r.logger, "component", "watcher"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(shared.WithLogger(r.logger, "component", "http")))
	router.Handler(server.NewJobsHandler(store, executor, bus, r.logger))
	router.Handler(server.NewStreamHandler(store, bus, time.Duration(config.Jobs.HeartbeatSeconds)*time.Second, r.logger))
	router.Handler(server.HealthHandler{})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutting down")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("shutdown error", "error", err)
	}

	wg.Wait()
	r.logger.Info("server stopped")
	return nil
}
