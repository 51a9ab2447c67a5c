package database

import (
	"context"
	"fmt"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/changewld/backend/config"
)

// Postgres wraps the connection pool together with the transactor used by
// repositories to compose multi-statement operations.
type Postgres struct {
	Pool       *pgxpool.Pool
	DBGetter   tx.DBGetter
	Transactor *tx.Transactor
}

type Option func(*pgxpool.Config)

func MaxPoolSize(size int32) Option {
	return func(cfg *pgxpool.Config) {
		cfg.MaxConns = size
	}
}

func ConnTimeout(seconds int) Option {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.ConnectTimeout = time.Duration(seconds) * time.Second
	}
}

func HealthCheckPeriod(minutes int) Option {
	return func(cfg *pgxpool.Config) {
		cfg.HealthCheckPeriod = time.Duration(minutes) * time.Minute
	}
}

func New(cfg *config.Config, opts ...Option) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DB.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	transactor, dbGetter := tx.NewTransactorFromPool(pool)

	return &Postgres{
		Pool:       pool,
		DBGetter:   dbGetter,
		Transactor: transactor,
	}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
