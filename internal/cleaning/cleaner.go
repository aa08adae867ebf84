// Package cleaning applies schema-mutating transforms to analytic tables:
// type conversion, duplicate handling, null imputation and structural
// normalization. Every mutating operation returns an operation report; batch
// operations record per-item outcomes instead of failing wholesale.
package cleaning

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/store"
)

// Cleaner runs cleaning operations against the analytic store.
type Cleaner struct {
	store  *store.Accessor
	logger *slog.Logger
}

// NewCleaner creates a Cleaner bound to the given store accessor.
func NewCleaner(accessor *store.Accessor, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cleaner{store: accessor, logger: logger}
}

// columns returns the ordered schema of a table, or store.ErrTableNotFound.
func (c *Cleaner) columns(ctx context.Context, conn *sql.Conn, table string) ([]profile.Column, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []profile.Column
	for rows.Next() {
		var col profile.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, store.ErrTableNotFound)
	}
	return cols, nil
}

func (c *Cleaner) rowCount(ctx context.Context, conn *sql.Conn, quotedTable string) (int64, error) {
	var n int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quotedTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (c *Cleaner) countWhereNull(ctx context.Context, conn *sql.Conn, quotedTable, quotedColumn string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", quotedTable, quotedColumn)
	if err := conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count nulls: %w", err)
	}
	return n, nil
}

func hasColumn(cols []profile.Column, name string) bool {
	for _, col := range cols {
		if col.Name == name {
			return true
		}
	}
	return false
}

func columnType(cols []profile.Column, name string) (string, bool) {
	for _, col := range cols {
		if col.Name == name {
			return col.Type, true
		}
	}
	return "", false
}

// acquire validates the table identifier and returns a worker connection.
func (c *Cleaner) acquire(ctx context.Context, table string) (*sql.Conn, error) {
	if err := ident.Validate(table); err != nil {
		return nil, err
	}
	return c.store.Conn(ctx)
}
