package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/store"
)

// ExportCSVString renders the full table as an RFC 4180 CSV string with a
// header row. Nulls become empty fields.
func (l *Loader) ExportCSVString(ctx context.Context, table string) (string, error) {
	if err := ident.Validate(table); err != nil {
		return "", err
	}

	conn, err := l.store.Conn(ctx)
	if err != nil {
		return "", err
	}

	rows, err := conn.QueryContext(ctx, "SELECT * FROM "+ident.Quote(table))
	if err != nil {
		if store.NotFound(err) {
			return "", fmt.Errorf("table %q: %w", table, store.ErrTableNotFound)
		}
		return "", fmt.Errorf("failed to query table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(cols))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			record[i] = formatField(store.SanitizeValue(v))
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read rows: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return b.String(), nil
}

func formatField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
