package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/bankrecon/bankrecon/internal/infrastructure/storage/migrations"
)

// runMigrations applies all pending migrations and returns the resulting
// schema version.
func (s *Storage) runMigrations(ctx context.Context) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, nil,
		goose.WithGoMigrations(migrations.All()...),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		s.logger.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}

	return provider.GetDBVersion(ctx)
}

// SchemaVersion returns the current schema version.
func (s *Storage) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, nil,
		goose.WithGoMigrations(migrations.All()...),
	)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
