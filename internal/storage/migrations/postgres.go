package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// execer is the subset of the pool used to apply migrations.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunPostgresMigrations applies all embedded SQL files in lexical order and
// returns the names of the files applied. Every file is idempotent, so this
// runs before each engine start; it also installs the price_change
// uniqueness constraint the upsert relies on.
func RunPostgresMigrations(ctx context.Context, db execer) ([]string, error) {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, f := range files {
		// No args: pgx uses the simple protocol, which accepts multi-statement files.
		if _, err := db.Exec(ctx, f.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
		applied = append(applied, f.Name)
	}

	return applied, nil
}
