// Package app wires the server runtime: config, logging, stores, guards,
// HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"loveludo/cmd/internal/adminpanel"
	"loveludo/cmd/internal/credential"
	"loveludo/cmd/internal/guard"
	"loveludo/cmd/internal/heartbeat"
	"loveludo/cmd/internal/presence"
	"loveludo/cmd/internal/profile"
	"loveludo/cmd/internal/realtime"
)

// App is the server runtime.
type App struct {
	cfg     Config
	log     *slog.Logger
	metrics *Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool
	rdb       *redis.Client

	validator *guard.SessionValidator
	device    *guard.DeviceGuard
	admin     *guard.AdminGuard
	hb        *heartbeat.Handler
	panel     *adminpanel.Handler
	ws        *realtime.Gateway
}

// countingKicker layers the kick counter over the gateway.
type countingKicker struct {
	metrics *Metrics
	gateway *realtime.Gateway
}

func (k countingKicker) KickUser(userID, reason string, exceptSessionID string) {
	k.metrics.Kicks.Inc()
	k.gateway.KickUser(userID, reason, exceptSessionID)
}

// New constructs a fully wired App from config. Without a database or redis
// URL it falls back to in-memory stores for dev.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metrics := NewMetrics()

	var (
		dbPool     *pgxpool.Pool
		profiles   profile.Store
		panelStore adminpanel.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dbPool = pool
		profiles, err = profile.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		panelStore, err = adminpanel.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
	} else {
		profiles = profile.NewMemoryStore()
		panelStore = adminpanel.NewMemoryStore()
		log.Info("db.disabled.inmemory_store")
	}

	var (
		rdb     *redis.Client
		tracker presence.Tracker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if dbPool != nil {
				dbPool.Close()
			}
			return nil, err
		}
		rdb = redis.NewClient(opts)
		tracker, err = presence.NewRedisTracker(rdb, presence.DefaultTTL)
		if err != nil {
			if dbPool != nil {
				dbPool.Close()
			}
			return nil, err
		}
		log.Info("presence.redis")
	} else {
		tracker = presence.NewMemoryTracker(presence.DefaultTTL)
		log.Info("presence.inmemory")
	}

	verifier, err := credential.NewVerifier(cfg.SessionSecret, cfg.SessionCookieName)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	// The settings loader re-reads the environment so an explicit
	// invalidation picks up rotated allowlists and keys.
	settings := guard.NewAdminSettings(func() guard.AdminConfig {
		c := LoadConfig()
		return guard.AdminConfig{
			AllowedEmails: c.AdminEmails,
			AdminKey:      c.AdminKey,
			CookieName:    c.AdminCookieName,
			CookieTTL:     c.AdminCookieTTL,
			CookieSecure:  c.Production,
		}
	})

	hub := realtime.NewHub(log)
	ws := realtime.NewGateway(log, hub, verifier, realtime.GatewayConfig{
		OriginPatterns: cfg.WSOrigins,
	})
	kicker := countingKicker{metrics: metrics, gateway: ws}

	validator := guard.NewSessionValidator(log, verifier, profiles)
	device := guard.NewDeviceGuard(log, verifier, profiles, kicker, cfg.DeviceCookieName)
	admin := guard.NewAdminGuard(log, verifier, settings)
	hb := heartbeat.NewHandler(log, verifier, profiles, tracker, metrics.Heartbeats)
	panel := adminpanel.NewHandler(log, admin, verifier, panelStore, profiles, tracker)

	return &App{
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
		dbPool:    dbPool,
		dbEnabled: dbPool != nil,
		rdb:       rdb,
		validator: validator,
		device:    device,
		admin:     admin,
		hb:        hb,
		panel:     panel,
		ws:        ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log, a.metrics),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}
