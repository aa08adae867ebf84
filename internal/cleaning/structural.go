package cleaning

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
)

// nullSentinels are string values rewritten to true NULL during value
// cleaning. Trimming runs first, so padded variants collapse into these.
var nullSentinels = []string{"N/A", "NA", "null", "Null", "?", "", " "}

// AutoCleanAndPrepare normalizes a table in two fixed passes. The rename
// pass converts every column name to snake_case and fully completes
// (including a schema re-read) before value cleaning starts, because value
// cleaning must address post-rename names. The value pass trims text values,
// unifies null-like sentinels into true NULL, then upper-cases what remains
// for categorical consistency. Running it twice produces no further changes.
func (c *Cleaner) AutoCleanAndPrepare(ctx context.Context, table string) (*Report, error) {
	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	report := &Report{Status: "success", Message: "Automated preparation complete."}

	// Pass 1: structural rename. Column names are case-insensitively unique
	// in the catalog, so collision tracking works on folded names.
	taken := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		taken[strings.ToLower(col.Name)] = struct{}{}
	}
	for i, col := range cols {
		newName := ident.Snake(col.Name)
		if newName == "" {
			newName = fmt.Sprintf("column_%d", i+1)
		}
		if newName == col.Name {
			continue
		}

		// Preserve name uniqueness when two headers normalize identically.
		// The column's own slot is released first so a case-only rename is
		// not treated as a collision with itself.
		delete(taken, strings.ToLower(col.Name))
		candidate := newName
		for n := 2; ; n++ {
			if _, exists := taken[candidate]; !exists {
				break
			}
			candidate = fmt.Sprintf("%s_%d", newName, n)
		}
		newName = candidate

		rename := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			qt, ident.Quote(col.Name), ident.Quote(newName))
		if _, err := conn.ExecContext(ctx, rename); err != nil {
			return nil, fmt.Errorf("failed to rename column %q: %w", col.Name, err)
		}
		taken[newName] = struct{}{}
		report.Log = append(report.Log, fmt.Sprintf("Renamed column '%s' to '%s'.", col.Name, newName))
	}

	// Re-read the schema so value cleaning sees post-rename names.
	cols, err = c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}

	// Pass 2: value cleaning on text columns.
	for _, col := range cols {
		if !profile.TextType(col.Type) {
			continue
		}
		qc := ident.Quote(col.Name)

		trim := fmt.Sprintf("UPDATE %s SET %s = TRIM(%s)", qt, qc, qc)
		if _, err := conn.ExecContext(ctx, trim); err != nil {
			return nil, fmt.Errorf("failed to trim column %q: %w", col.Name, err)
		}

		unify := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s IN (?, ?, ?, ?, ?, ?, ?)", qt, qc, qc)
		args := make([]any, len(nullSentinels))
		for i, s := range nullSentinels {
			args[i] = s
		}
		if _, err := conn.ExecContext(ctx, unify, args...); err != nil {
			return nil, fmt.Errorf("failed to unify nulls in column %q: %w", col.Name, err)
		}

		upper := fmt.Sprintf("UPDATE %s SET %s = UPPER(%s)", qt, qc, qc)
		if _, err := conn.ExecContext(ctx, upper); err != nil {
			return nil, fmt.Errorf("failed to normalize casing in column %q: %w", col.Name, err)
		}
	}
	report.Log = append(report.Log,
		"Cleaned whitespace, unified nulls, and standardized casing for all text columns.")

	c.logger.Info("auto clean completed", "table", table, "operations", len(report.Log))
	return report, nil
}
