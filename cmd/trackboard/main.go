// @title			Trackboard API
// @version		1.0
// @description	Task visibility, assignment and progress aggregation for project tracks.
// @BasePath		/api/v1

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/trackboard/trackboard/internal/config"
	"github.com/trackboard/trackboard/internal/database"
	"github.com/trackboard/trackboard/internal/handler"
	"github.com/trackboard/trackboard/internal/logger"
	"github.com/trackboard/trackboard/internal/notify"
	"github.com/trackboard/trackboard/internal/repository"
	"github.com/trackboard/trackboard/internal/service"
	"github.com/urfave/cli/v2"
)

func main() {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "trackboard",
		Usage: "Task visibility and progress aggregation backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.IntFlag{
						Name:    "event-buffer",
						Value:   config.DefaultEventBuffer,
						Usage:   "Event dispatcher queue capacity",
						EnvVars: []string{"EVENT_BUFFER"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "repair-progress",
				Usage: "Re-derive stored scope-block progress bottom-up",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "track",
						Usage: "Repair a single track instead of all tracks",
					},
				},
				Action: runRepairProgress,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}
	databaseURL := c.String("database-url")

	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dispatcher := notify.NewDispatcher(c.Int("event-buffer"), notify.LogSink{})
	defer dispatcher.Close()

	h := handler.New(db.Pool(), dispatcher)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// runRepairProgress walks every parent block deepest-first and rewrites any
// stored progress that drifted from the mean of its children, typically after
// a crashed rollup.
func runRepairProgress(c *cli.Context) error {
	ctx := c.Context
	databaseURL := c.String("database-url")

	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dispatcher := notify.NewDispatcher(config.DefaultEventBuffer, notify.LogSink{})
	defer dispatcher.Close()

	trackRepo := repository.NewTrackRepository(db.Pool())
	aggregator := service.NewAggregator(
		repository.NewScopeBlockRepository(db.Pool()),
		repository.NewStatsRepository(db.Pool()),
		repository.NewProgressRepository(db.Pool()),
		dispatcher,
	)

	trackIDs := []string{}
	if trackID := c.String("track"); trackID != "" {
		trackIDs = append(trackIDs, trackID)
	} else {
		trackIDs, err = trackRepo.ListIDs(ctx)
		if err != nil {
			return fmt.Errorf("list tracks: %w", err)
		}
	}

	total := 0
	for _, trackID := range trackIDs {
		repaired, err := aggregator.RepairTrack(ctx, trackID)
		if err != nil {
			return fmt.Errorf("repair track %s: %w", trackID, err)
		}
		if repaired > 0 {
			slog.Info("repaired scope-block progress", "track_id", trackID, "blocks", repaired)
		}
		total += repaired
	}

	slog.Info("progress repair finished", "tracks", len(trackIDs), "blocks_repaired", total)
	return nil
}
