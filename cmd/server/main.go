// cmd/server/main.go
// Entry point for the league registration API server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/app"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/config"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/database"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/handlers"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/jobs"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/live"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("development", "info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server stopped")
}

func run(cfg *config.Config) error {
	// Schema first: nothing below works against an old schema.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	hub := live.NewHub()
	a, err := app.New(cfg, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing connections")
		}
	}()

	fiberApp := fiber.New(fiber.Config{
		AppName: "OFSL League Registration API",
	})
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())
	// Open CORS suits development; production sits behind the site's own origin.
	fiberApp.Use(cors.New())

	// Public routes
	fiberApp.Get("/health", handlers.HealthCheck(a.Store))
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.Routes(fiberApp, handlers.Deps{
		Config:  cfg,
		Users:   a.Store,
		Service: a.Service,
		Hub:     hub,
	})

	var sched *jobs.Scheduler
	if cfg.SweepInterval > 0 {
		if sched, err = jobs.New(a.Service, cfg.SweepInterval); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(ctx) })
	} else {
		log.Info().Msg("Background sweeps disabled")
	}

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Starting server")
		return fiberApp.Listen(":" + cfg.Port)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Shutting down")
		if err := fiberApp.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
