package database

import (
	"context"
	"fmt"
	"strings"
)

// TableCount is the row count of one table
type TableCount struct {
	Table string
	Rows  int
}

// ClearData truncates the booking tables, plus buses and users when asked,
// resetting their identity sequences. It returns the row counts afterwards.
func ClearData(ctx context.Context, db DB, includeCatalog, includeUsers bool) ([]TableCount, error) {
	tables := []string{"passengers", "bookings"}
	if includeCatalog {
		tables = append(tables, "buses")
	}
	if includeUsers {
		tables = append(tables, "users")
	}

	err := WithTx(ctx, db, func(ctx context.Context) error {
		query := `TRUNCATE TABLE ` + strings.Join(tables, ", ") + ` RESTART IDENTITY CASCADE`
		if _, err := conn(ctx, db).ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to truncate tables: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	counts := make([]TableCount, 0, len(tables))
	for _, table := range tables {
		var rows int
		if err := db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM `+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: rows})
	}
	return counts, nil
}
