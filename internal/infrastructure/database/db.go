package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kitepay/railbridge/migrations"
	"github.com/kitepay/railbridge/pkg/config"
)

type DBManager struct {
	Pool *pgxpool.Pool
}

func dsn(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.SSLMode,
	)
}

func New(cfg *config.DatabaseConfig) (*DBManager, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			poolCfg.MaxConnLifetime = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &DBManager{Pool: pool}, nil
}

// Migrate applies the embedded goose migration set. Goose drives a
// database/sql connection, so this opens one through the pgx stdlib driver
// separately from the pool.
func Migrate(cfg *config.DatabaseConfig) error {
	conn, err := sql.Open("pgx", dsn(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(conn, ".")
}

func (dm *DBManager) ShutDown() {
	if dm.Pool != nil {
		dm.Pool.Close()
	}
}
