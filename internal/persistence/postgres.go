package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool when a DSN is provided.
func NewPostgres(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping database connection")
		return &Postgres{Pool: nil}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return pgx.ErrNoRows
	}
	return p.Pool.Ping(ctx)
}

// Available reports whether a pool was configured.
func (p *Postgres) Available() bool {
	return p != nil && p.Pool != nil
}

// PostgresBackend keeps the store document in a single-row table, rewritten
// whole on every save.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend builds a snapshot backend over the given pool.
func NewPostgresBackend(pg *Postgres) *PostgresBackend {
	return &PostgresBackend{pool: pg.Pool}
}

// Load reads the current document.
func (b *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx,
		`SELECT document FROM store_snapshot WHERE id = 1`).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the document.
func (b *PostgresBackend) Save(ctx context.Context, data []byte) error {
	_, err := b.pool.Exec(ctx, `
        INSERT INTO store_snapshot (id, document, updated_at)
        VALUES (1, $1, NOW())
        ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`,
		data)
	return err
}
