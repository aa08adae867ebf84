// Package ingest loads CSV data into project tables and exports tables
// back out as CSV.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/store"
)

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

// Loader creates project tables from parsed CSV content.
type Loader struct {
	store  *store.Accessor
	logger *slog.Logger
}

// NewLoader creates a Loader bound to the given store accessor.
func NewLoader(accessor *store.Accessor, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{store: accessor, logger: logger}
}

// ReadCSV parses an entire CSV stream into a header and data rows. Every
// record must have the same field count as the header.
func ReadCSV(r io.Reader) (header []string, rows [][]string, err error) {
	reader := csv.NewReader(r)

	header, err = reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	rows, err = reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv rows: %w", err)
	}
	return header, rows, nil
}

// CreateOrReplaceTable (re)creates the named table with one VARCHAR column
// per header field and inserts all rows. Typing is deferred to the
// conversion step; raw uploads land as text so that nothing is lost to a
// premature cast. Empty values are kept as empty strings, not nulls.
func (l *Loader) CreateOrReplaceTable(ctx context.Context, name string, header []string, rows [][]string) error {
	if err := ident.Validate(name); err != nil {
		return err
	}
	if len(header) == 0 {
		return fmt.Errorf("csv header has no columns")
	}

	cols := columnNames(header)

	conn, err := l.store.Conn(ctx)
	if err != nil {
		return err
	}

	qt := ident.Quote(name)
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+qt); err != nil {
		return fmt.Errorf("failed to drop existing table: %w", err)
	}

	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = ident.Quote(col) + " VARCHAR"
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", qt, strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := l.insertBatch(ctx, qt, len(cols), rows[start:end]); err != nil {
			return err
		}
	}

	l.logger.Info("loaded csv into table", "table", name, "columns", len(cols), "rows", len(rows))
	return nil
}

func (l *Loader) insertBatch(ctx context.Context, quotedTable string, width int, rows [][]string) error {
	conn, err := l.store.Conn(ctx)
	if err != nil {
		return err
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d fields, header has %d", i, len(row), width)
		}
		tuples[i] = placeholder
		for _, v := range row {
			args = append(args, v)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s VALUES %s", quotedTable, strings.Join(tuples, ", "))
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	return nil
}

// columnNames makes header fields usable as column names: blanks become
// column_<i> and duplicates get a numeric suffix.
func columnNames(header []string) []string {
	taken := make(map[string]bool, len(header))
	cols := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		candidate := name
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		taken[candidate] = true
		cols[i] = candidate
	}
	return cols
}
