// Package profile computes structural profiles, statistical summaries and
// data-quality insights for tables in the analytic store.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/store"
)

// sampleRows is the size of the preview returned with a profile.
const sampleRows = 5

// Column describes one column of a table, in schema order.
type Column struct {
	Name string `json:"column_name"`
	Type string `json:"column_type"`
}

// Profile is a point-in-time structural summary of a table.
type Profile struct {
	TotalRows       int64            `json:"total_rows"`
	TotalColumns    int              `json:"total_columns"`
	Schema          []Column         `json:"schema"`
	NullCounts      map[string]int64 `json:"null_counts"`
	DuplicatesCount int64            `json:"duplicates_count"`
	SamplePreview   []map[string]any `json:"sample_preview"`
}

// Profiler runs profiling queries against the analytic store.
type Profiler struct {
	store  *store.Accessor
	logger *slog.Logger
}

// NewProfiler creates a Profiler bound to the given store accessor.
func NewProfiler(accessor *store.Accessor, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Profiler{store: accessor, logger: logger}
}

// Tables returns the names of all tables currently in the store.
func (p *Profiler) Tables(ctx context.Context) ([]string, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

// Columns returns the ordered schema of a table, or store.ErrTableNotFound
// when the table is absent.
func (p *Profiler) Columns(ctx context.Context, table string) ([]Column, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

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

	var cols []Column
	for rows.Next() {
		var col Column
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

// DataProfile assembles row/column counts, per-column null counts, the exact
// duplicate count and a bounded sample preview for a table.
func (p *Profiler) DataProfile(ctx context.Context, table string) (*Profile, error) {
	if err := ident.Validate(table); err != nil {
		return nil, err
	}

	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	cols, err := p.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	var totalRows int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&totalRows); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	nullCounts, err := p.nullCounts(ctx, qt, cols)
	if err != nil {
		return nil, err
	}

	// total rows minus distinct rows
	var duplicates int64
	dupQuery := fmt.Sprintf(
		"SELECT (SELECT COUNT(*) FROM %s) - (SELECT COUNT(*) FROM (SELECT DISTINCT * FROM %s))",
		qt, qt,
	)
	if err := conn.QueryRowContext(ctx, dupQuery).Scan(&duplicates); err != nil {
		return nil, fmt.Errorf("failed to count duplicates: %w", err)
	}

	sample, err := p.samplePreview(ctx, qt)
	if err != nil {
		return nil, err
	}

	return &Profile{
		TotalRows:       totalRows,
		TotalColumns:    len(cols),
		Schema:          cols,
		NullCounts:      nullCounts,
		DuplicatesCount: duplicates,
		SamplePreview:   sample,
	}, nil
}

// nullCounts issues a single aggregate query with one SUM(CASE ...) clause
// per column and keeps only the columns whose count is positive.
func (p *Profiler) nullCounts(ctx context.Context, quotedTable string, cols []Column) (map[string]int64, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	// SUM over integers yields HUGEINT in DuckDB; cast down so the driver
	// scans a plain int64 instead of a big.Int.
	clauses := make([]string, len(cols))
	for i, col := range cols {
		qc := ident.Quote(col.Name)
		clauses[i] = fmt.Sprintf("CAST(SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END) AS BIGINT)", qc)
	}
	query := "SELECT " + strings.Join(clauses, ", ") + " FROM " + quotedTable

	counts := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range counts {
		ptrs[i] = &counts[i]
	}
	if err := conn.QueryRowContext(ctx, query).Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to count nulls: %w", err)
	}

	result := make(map[string]int64)
	for i, col := range cols {
		if n := asInt64(counts[i]); n > 0 {
			result[col.Name] = n
		}
	}
	return result, nil
}

func (p *Profiler) samplePreview(ctx context.Context, quotedTable string) ([]map[string]any, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quotedTable, sampleRows))
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sample, err := store.ScanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}
	return sample, nil
}

// asInt64 normalizes the integer-ish values DuckDB aggregates can scan as.
// HUGEINT results arrive as *big.Int.
func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case *big.Int:
		return x.Int64()
	default:
		return 0
	}
}

// NumericType reports whether a storage type belongs to the number family.
func NumericType(storageType string) bool {
	t := strings.ToUpper(storageType)
	for _, prefix := range []string{
		"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT",
		"FLOAT", "REAL", "DOUBLE", "DECIMAL",
	} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// TextType reports whether a storage type belongs to the text family.
func TextType(storageType string) bool {
	t := strings.ToUpper(storageType)
	return strings.HasPrefix(t, "VARCHAR") || strings.HasPrefix(t, "CHAR") ||
		strings.HasPrefix(t, "TEXT") || strings.HasPrefix(t, "STRING")
}
