package cleaning

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
)

// Imputation strategies.
const (
	StrategyMean   = "mean"
	StrategyMedian = "median"
	StrategyMode   = "mode"
	StrategyCustom = "custom"
)

// ImputationSpec is one requested null fill.
type ImputationSpec struct {
	Column   string `json:"column_name"`
	Strategy string `json:"strategy"`
	Value    any    `json:"value,omitempty"`
}

// ImputeNulls fills null cells in the requested columns. Mean and median
// apply to numeric columns only; mode works for any type; custom uses the
// caller-supplied value. Only currently-null cells are touched. A column
// whose computed impute value is undefined (all nulls) is skipped without
// failing the batch, as are malformed items.
func (c *Cleaner) ImputeNulls(ctx context.Context, table string, specs []ImputationSpec) (*Report, error) {
	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	report := &Report{Status: "success", Message: "Imputation process completed."}
	for _, spec := range specs {
		item := c.imputeOne(ctx, conn, qt, cols, spec)
		report.Items = append(report.Items, item)
	}
	return report, nil
}

func (c *Cleaner) imputeOne(ctx context.Context, conn *sql.Conn, quotedTable string, cols []profile.Column, spec ImputationSpec) ItemReport {
	if spec.Column == "" || spec.Strategy == "" {
		return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: "column_name and strategy are required"}
	}
	colType, ok := columnType(cols, spec.Column)
	if !ok {
		return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: fmt.Sprintf("column %q does not exist", spec.Column)}
	}

	qc := ident.Quote(spec.Column)

	var value any
	switch spec.Strategy {
	case StrategyCustom:
		if spec.Value == nil {
			return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: "custom strategy requires a value"}
		}
		value = spec.Value

	case StrategyMean, StrategyMedian:
		if !profile.NumericType(colType) {
			return ItemReport{Column: spec.Column, Status: StatusSkipped,
				Error: fmt.Sprintf("strategy %q requires a numeric column", spec.Strategy)}
		}
		values, err := c.numericValues(ctx, conn, quotedTable, qc)
		if err != nil {
			return ItemReport{Column: spec.Column, Status: StatusFailed, Error: err.Error()}
		}
		if len(values) == 0 {
			// mean/median of an all-null column is undefined; skip quietly
			c.logger.Debug("imputation skipped, no non-null values", "column", spec.Column)
			return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: "no non-null values to derive from"}
		}
		var computed float64
		if spec.Strategy == StrategyMean {
			computed, err = stats.Mean(values)
		} else {
			computed, err = stats.Median(values)
		}
		if err != nil {
			return ItemReport{Column: spec.Column, Status: StatusFailed, Error: err.Error()}
		}
		value = computed

	case StrategyMode:
		mode, found, err := c.modeValue(ctx, conn, quotedTable, qc)
		if err != nil {
			return ItemReport{Column: spec.Column, Status: StatusFailed, Error: err.Error()}
		}
		if !found {
			c.logger.Debug("imputation skipped, no non-null values", "column", spec.Column)
			return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: "no non-null values to derive from"}
		}
		value = mode

	default:
		return ItemReport{Column: spec.Column, Status: StatusSkipped,
			Error: fmt.Sprintf("unknown strategy %q", spec.Strategy)}
	}

	update := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IS NULL", quotedTable, qc, qc)
	result, err := conn.ExecContext(ctx, update, value)
	if err != nil {
		return ItemReport{Column: spec.Column, Status: StatusFailed, Error: err.Error()}
	}
	filled, _ := result.RowsAffected()

	return ItemReport{Column: spec.Column, Status: StatusSuccess, FilledNulls: int64Ptr(filled)}
}

func (c *Cleaner) numericValues(ctx context.Context, conn *sql.Conn, quotedTable, quotedColumn string) ([]float64, error) {
	query := fmt.Sprintf("SELECT CAST(%s AS DOUBLE) FROM %s WHERE %s IS NOT NULL",
		quotedColumn, quotedTable, quotedColumn)
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read column values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan column value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// modeValue returns the most frequent non-null value, ties broken by value
// order for determinism.
func (c *Cleaner) modeValue(ctx context.Context, conn *sql.Conn, quotedTable, quotedColumn string) (any, bool, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s FROM %[2]s
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY COUNT(*) DESC, %[1]s
		LIMIT 1`, quotedColumn, quotedTable)

	var value any
	err := conn.QueryRowContext(ctx, query).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to compute mode: %w", err)
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	return value, true, nil
}
