// Package app wires the storage, cache, notification and service layers from a Config.
// The server and leaguectl both start from here.
package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/config"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/database"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/service"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// App holds the long-lived collaborators. Close releases them.
type App struct {
	Store   *store.Store
	Service *service.Service

	closers []func() error
}

// New connects to Postgres and, when configured, Redis and RabbitMQ. Without REDIS_ADDR
// availability is computed on every read; without RABBIT_URL notifications go to the log.
// hub may be nil when nothing streams live updates.
func New(cfg *config.Config, hub service.Broadcaster) (*App, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store.New(db)}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	opts := service.Options{Cache: cache.Noop{}, Hub: hub}

	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		a.closers = append(a.closers, rc.Close)
		opts.Cache = rc
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Availability cache enabled")
	}

	var pub notify.Publisher = notify.LogPublisher{}
	if cfg.RabbitURL != "" {
		p, err := notify.DialAMQP(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		pub = p
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("Publishing notifications to RabbitMQ")
	}
	n := notify.NewQueuedNotifier(pub, cfg.NotifyQueueSize)
	a.closers = append(a.closers, n.Close)
	opts.Notifier = n

	a.Service = service.New(a.Store, opts)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
