package cleaning

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/store"
)

// duplicateSampleCap bounds the number of sampled duplicate groups or rows.
const duplicateSampleCap = 10

// StrategyRemoveExact is the only recognized duplicate-handling strategy.
const StrategyRemoveExact = "remove_exact_duplicates"

// keyLikeSubstrings drive the entity-duplicate heuristic: the first schema
// column whose name contains one of these, and that has at least one
// repeated value, is treated as the candidate key. This is a best-effort
// guess, not key inference.
var keyLikeSubstrings = []string{"customer_id", "customerid", "user_id", "userid", "id", "name"}

// ExactDuplicates summarizes full-row duplicates.
type ExactDuplicates struct {
	Count int64 `json:"count"`
	// Sample holds one instance per duplicated row pattern plus its
	// occurrence count, capped at 10 groups.
	Sample []map[string]any `json:"sample"`
}

// EntityDuplicates summarizes rows that share a candidate key but diverge in
// other fields.
type EntityDuplicates struct {
	CheckedColumn string           `json:"checked_column"`
	DuplicateKeys int64            `json:"duplicate_keys"`
	Sample        []map[string]any `json:"sample"`
}

// DuplicatesReport is the result of a duplicate scan.
type DuplicatesReport struct {
	Exact  ExactDuplicates   `json:"exact_duplicates"`
	Entity *EntityDuplicates `json:"entity_duplicates,omitempty"`
}

// FindDuplicates counts exact row duplicates and samples one instance of
// each duplicated group. When a candidate key column is available (explicit
// primaryKey first, heuristic scan otherwise) it additionally samples
// entity-level duplicates: keys that repeat with diverging row content.
func (c *Cleaner) FindDuplicates(ctx context.Context, table, primaryKey string) (*DuplicatesReport, error) {
	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	quotedCols := make([]string, len(cols))
	for i, col := range cols {
		quotedCols[i] = ident.Quote(col.Name)
	}
	colList := strings.Join(quotedCols, ", ")

	var exactCount int64
	countQuery := fmt.Sprintf(
		"SELECT (SELECT COUNT(*) FROM %s) - (SELECT COUNT(*) FROM (SELECT DISTINCT * FROM %s))",
		qt, qt,
	)
	if err := conn.QueryRowContext(ctx, countQuery).Scan(&exactCount); err != nil {
		return nil, fmt.Errorf("failed to count exact duplicates: %w", err)
	}

	sampleQuery := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS occurrences
		FROM %s
		GROUP BY %s
		HAVING COUNT(*) > 1
		ORDER BY occurrences DESC
		LIMIT %d`, colList, qt, colList, duplicateSampleCap)

	rows, err := conn.QueryContext(ctx, sampleQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to sample exact duplicates: %w", err)
	}
	sample, err := store.ScanRows(rows)
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan duplicate sample: %w", err)
	}

	report := &DuplicatesReport{
		Exact: ExactDuplicates{Count: exactCount, Sample: sample},
	}

	keyColumn, err := c.pickKeyColumn(ctx, conn, qt, cols, primaryKey)
	if err != nil {
		return nil, err
	}
	if keyColumn != "" {
		entity, err := c.entityDuplicates(ctx, conn, qt, keyColumn)
		if err != nil {
			return nil, err
		}
		report.Entity = entity
	}

	return report, nil
}

// pickKeyColumn resolves the column checked for entity duplicates: the
// explicit primary key when present in the schema, otherwise the first
// identifier-like column with at least one repeated value.
func (c *Cleaner) pickKeyColumn(ctx context.Context, conn *sql.Conn, quotedTable string, cols []profile.Column, primaryKey string) (string, error) {
	if primaryKey != "" && hasColumn(cols, primaryKey) {
		return primaryKey, nil
	}

	for _, col := range cols {
		lower := strings.ToLower(col.Name)
		matched := false
		for _, sub := range keyLikeSubstrings {
			if strings.Contains(lower, sub) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		qc := ident.Quote(col.Name)
		var repeated int64
		query := fmt.Sprintf(`
			SELECT COUNT(*) FROM (
				SELECT %s FROM %s WHERE %s IS NOT NULL
				GROUP BY %s HAVING COUNT(*) > 1
			)`, qc, quotedTable, qc, qc)
		if err := conn.QueryRowContext(ctx, query).Scan(&repeated); err != nil {
			return "", fmt.Errorf("failed to probe key column %q: %w", col.Name, err)
		}
		if repeated > 0 {
			return col.Name, nil
		}
	}
	return "", nil
}

// entityDuplicates samples rows whose key value still has more than one row
// after restricting to distinct full rows, i.e. true content divergence
// under a shared key rather than exact re-uploads.
func (c *Cleaner) entityDuplicates(ctx context.Context, conn *sql.Conn, quotedTable, keyColumn string) (*EntityDuplicates, error) {
	qc := ident.Quote(keyColumn)

	divergentKeys := fmt.Sprintf(`
		SELECT %s FROM (SELECT DISTINCT * FROM %s)
		GROUP BY %s HAVING COUNT(*) > 1`, qc, quotedTable, qc)

	var keyCount int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s)", divergentKeys)
	if err := conn.QueryRowContext(ctx, countQuery).Scan(&keyCount); err != nil {
		return nil, fmt.Errorf("failed to count entity duplicates: %w", err)
	}

	sampleQuery := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE %s IN (%s)
		ORDER BY %s
		LIMIT %d`, quotedTable, qc, divergentKeys, qc, duplicateSampleCap)

	rows, err := conn.QueryContext(ctx, sampleQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to sample entity duplicates: %w", err)
	}
	sample, err := store.ScanRows(rows)
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity duplicates: %w", err)
	}

	return &EntityDuplicates{
		CheckedColumn: keyColumn,
		DuplicateKeys: keyCount,
		Sample:        sample,
	}, nil
}

// HandleDuplicates applies a duplicate-handling strategy. The only
// recognized strategy removes exact duplicates by materializing a distinct
// copy and swapping it in for the original; anything else is reported as
// skipped rather than failing.
func (c *Cleaner) HandleDuplicates(ctx context.Context, table, strategy string) (*Report, error) {
	if strategy != StrategyRemoveExact {
		return &Report{
			Status:  "skipped",
			Message: fmt.Sprintf("Unrecognized strategy %q; no changes applied.", strategy),
		}, nil
	}

	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}
	if _, err := c.columns(ctx, conn, table); err != nil {
		return nil, err
	}

	qt := ident.Quote(table)
	tempTable := table + "_dedup_tmp"
	qTemp := ident.Quote(tempTable)

	before, err := c.rowCount(ctx, conn, qt)
	if err != nil {
		return nil, err
	}

	create := fmt.Sprintf("CREATE TABLE %s AS SELECT DISTINCT * FROM %s", qTemp, qt)
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("failed to materialize distinct rows: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "DROP TABLE "+qt); err != nil {
		return nil, fmt.Errorf("failed to drop original table: %w", err)
	}
	rename := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qTemp, qt)
	if _, err := conn.ExecContext(ctx, rename); err != nil {
		return nil, fmt.Errorf("failed to rename distinct table: %w", err)
	}

	after, err := c.rowCount(ctx, conn, qt)
	if err != nil {
		return nil, err
	}

	removed := before - after
	c.logger.Info("exact duplicates removed", "table", table, "removed", removed)

	return &Report{
		Status:  "success",
		Message: fmt.Sprintf("Removed %d exact duplicate row(s).", removed),
	}, nil
}
