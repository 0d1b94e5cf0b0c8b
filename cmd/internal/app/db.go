package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dbConnectTimeout bounds the startup connectivity probe.
const dbConnectTimeout = 3 * time.Second

// NewDBPool builds the pgx pool for the ludo schema and probes connectivity
// before handing it out. Schema management lives in cmd/migrate; this only
// connects.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}

	pcfg.ConnConfig.RuntimeParams["application_name"] = "loveludo"
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}

	if err := PingDB(ctx, pool, dbConnectTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return pool, nil
}

// PingDB round-trips a query on a freshly acquired connection within timeout.
// The readiness endpoint calls this on every probe, so it must stay cheap.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return conn.Ping(ctx)
}
