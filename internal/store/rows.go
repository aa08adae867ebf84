package store

import (
	"database/sql"
	"math"
)

// SanitizeValue normalizes a driver value for JSON serialization: []byte
// becomes string, and non-finite floats become nil so the result never
// carries NaN or Infinity.
func SanitizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return v
	}
}

// ScanRows collects every remaining row into a slice of column-keyed maps
// with sanitized values. The caller retains ownership of rows and must
// close them.
func ScanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = SanitizeValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
