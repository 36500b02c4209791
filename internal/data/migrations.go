package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/target/mmk-bol-sync/internal/migrate"
)

// RunMigrations executes database migrations to set up the required schema by
// delegating to the migrate package. It returns the versions applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	return migrate.Run(ctx, db, logger)
}
