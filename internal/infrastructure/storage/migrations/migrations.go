// Package migrations holds the versioned schema migrations, registered
// with goose as Go migrations so the binary carries its own schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// All returns every migration in version order.
func All() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1, &goose.GoFunc{RunTx: upMovements}, &goose.GoFunc{RunTx: downMovements}),
		goose.NewGoMigration(2, &goose.GoFunc{RunTx: upReconciliations}, &goose.GoFunc{RunTx: downReconciliations}),
		goose.NewGoMigration(3, &goose.GoFunc{RunTx: upMatchingRuns}, &goose.GoFunc{RunTx: downMatchingRuns}),
	}
}

func exec(ctx context.Context, tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
