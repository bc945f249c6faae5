package main

import (
	"context"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/storage/migrations"
	pgstore "solana-meme-radar/internal/storage/postgres"
)

func migrate(ctx context.Context, cfg *config.Config) error {
	logger := logging.For("migrate")
	if cfg.Postgres.DSN == "" && cfg.ClickHouse.DSN == "" {
		return errors.New("nothing to migrate: set postgres.dsn and/or clickhouse.dsn")
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			return errors.Wrap(err, "postgres migrations")
		}
	}

	if cfg.ClickHouse.DSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN, logger)
		if err != nil {
			return errors.Wrap(err, "clickhouse migrations")
		}
		conn.Close()
	}

	logger.Info("migrations complete")
	return nil
}
