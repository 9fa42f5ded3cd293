package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appsystem/pkg/config"
)

// Open builds the shop store pool and fails fast when the database is
// unreachable.
func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pcfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PoolConfig parses the configured DSN. A pgbouncer=true parameter switches
// the pool to the simple protocol with statement caching off, and is not
// forwarded to the server as a runtime parameter.
func PoolConfig(cfg config.Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	params := pcfg.ConnConfig.RuntimeParams
	if v, ok := params["pgbouncer"]; ok {
		delete(params, "pgbouncer")
		if strings.EqualFold(v, "true") {
			pcfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
			pcfg.ConnConfig.StatementCacheCapacity = 0
			pcfg.ConnConfig.DescriptionCacheCapacity = 0
		}
	}
	return pcfg, nil
}

// ConnString returns DATABASE_URL when set, otherwise a DSN assembled from
// the DB_* settings.
func ConnString(cfg config.Config) string {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		return cfg.DatabaseURL
	}
	return dsn(cfg.DB)
}

func dsn(cfg config.DBConfig) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, sslmode,
	)
}
