// Package app wires configuration, logging, persistence, the API client and
// the session manager into one handle the CLI commands share.
package app

import (
	"context"
	"fmt"

	"portfolio-console/internal/api"
	"portfolio-console/internal/config"
	"portfolio-console/internal/db"
	"portfolio-console/internal/pkg/logger"
	"portfolio-console/internal/pkg/session"

	"go.uber.org/zap"
)

// Options tune how the app is assembled.
type Options struct {
	// Interactive turns on the refresh and inactivity timers and the
	// activity source, for long-running use.
	Interactive bool
	// Logger overrides the logger built from the config.
	Logger *zap.Logger
	// Store overrides the store selected by the config.
	Store session.Store
}

type App struct {
	Config   config.AppConfig
	Logger   *zap.Logger
	Client   *api.Client
	Session  *session.Manager
	Activity *session.ManualActivity

	closers []func() error
}

// New assembles the app and restores any persisted session before returning.
func New(ctx context.Context, cfg config.AppConfig, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		var err error
		log, err = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: log}

	// ----- Session store -----
	store := opts.Store
	if store == nil {
		var err error
		store, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	// ----- API client -----
	a.Client = api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.HTTPTimeout}, log.Named("api"))

	// ----- Session manager -----
	managerOpts := []session.Option{
		session.WithRevalidateOnRestore(cfg.Revalidate),
		session.WithRequestTimeout(cfg.HTTPTimeout),
	}
	if opts.Interactive {
		a.Activity = session.NewManualActivity()
		managerOpts = append(managerOpts,
			session.WithTimers(cfg.RefreshInterval, cfg.InactivityCheck, cfg.InactivityTimeout),
			session.WithActivitySource(a.Activity),
		)
	} else {
		managerOpts = append(managerOpts, session.WithoutTimers())
	}
	a.Session = session.NewManager(a.Client, store, log, managerOpts...)
	a.Client.SetAuthenticator(a.Session)

	a.Session.Restore(ctx)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (session.Store, error) {
	switch a.Config.StoreDriver {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreRedis:
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPass,
			DB:       a.Config.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.Logger.Debug("session store: redis", zap.String("addr", a.Config.RedisAddr))
		return session.NewRedisStore(client, a.Config.RedisPrefix), nil
	case config.StoreBolt:
		store, err := session.OpenBoltStore(a.Config.StorePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Logger.Debug("session store: bolt", zap.String("path", a.Config.StorePath))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
	}
}

// Close stops the session timers and releases the store. The persisted
// session is kept.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = a.Logger.Sync()
	return firstErr
}
