package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockID keys the advisory lock that keeps concurrent replicas from
// migrating at the same time.
const migrationLockID int64 = 734019265

// Migrate applies embedded SQL migrations in filename order inside a single
// transaction. Already applied files are recorded in schema_migrations.
func Migrate(ctx context.Context, db DB) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}

	return WithTx(ctx, db, func(ctx context.Context) error {
		q := conn(ctx, db)

		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}

		if _, err := q.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				name TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`); err != nil {
			return fmt.Errorf("failed to ensure schema_migrations: %w", err)
		}

		for _, name := range names {
			var applied bool
			if err := q.GetContext(ctx, &applied, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name); err != nil {
				return fmt.Errorf("failed to check migration %s: %w", name, err)
			}
			if applied {
				continue
			}

			body, err := migrationFiles.ReadFile("migrations/" + name)
			if err != nil {
				return fmt.Errorf("failed to read migration %s: %w", name, err)
			}
			stmt := strings.TrimSpace(string(body))
			if stmt != "" {
				if _, err := q.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to apply migration %s: %w", name, err)
				}
			}

			if _, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", name, err)
			}
		}
		return nil
	})
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
