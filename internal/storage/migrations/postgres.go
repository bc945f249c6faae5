package migrations

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *logrus.Entry) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		// Simple protocol: a file may hold several statements.
		if _, err := pool.Exec(ctx, f.sql); err != nil {
			return errors.Wrapf(err, "apply migration %s", f.name)
		}
		if logger != nil {
			logger.WithField("migration", f.name).Info("applied postgres migration")
		}
	}
	return nil
}
