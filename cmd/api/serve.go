package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"authguard/internal/api/routes"
	"authguard/internal/api/server"
	"authguard/internal/audit"
	"authguard/internal/database"
	"authguard/internal/jobs"
	"authguard/internal/mq"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the maintenance jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.SetupDatabase(cfg.Database, !skipMigrations)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := routes.PostgresDependencies(db)

	if cfg.Audit.GeoIPDBPath != "" {
		locator, err := audit.OpenMaxMind(cfg.Audit.GeoIPDBPath)
		if err != nil {
			log.WithError(err).Warn("GeoIP database unavailable, locations disabled")
		} else {
			defer locator.Close()
			deps.Locator = locator
		}
	}

	if cfg.Audit.AMQPURL != "" {
		publisher, err := mq.NewRabbitMQClient(cfg.Audit.AMQPURL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer publisher.Close()
		deps.Sinks = append(deps.Sinks, audit.NewPublisherSink(publisher, cfg.Audit.AMQPQueue, cfg.Audit.SecurityQueue))
	}

	app := routes.SetupRoutes(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := jobs.NewMaintenanceManager(cfg.Jobs, cfg.RateLimit.AuthWindow, jobs.Maintenance{
		Users:    deps.Users,
		Sessions: deps.Sessions,
		Limits:   app.Limits,
		Cleaner:  app.RateLimiter,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start jobs: %w", err)
	}

	srv, err := server.New(cfg, app)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("Server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	// HTTP first, then the scheduler, then the audit queue, then the database
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("jobs shutdown: %w", err))
	}
	if err := app.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("app shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info("Server exited properly")
	return nil
}
