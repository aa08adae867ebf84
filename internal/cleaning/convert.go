package cleaning

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
)

// suggestionThreshold is the convertible fraction above which a conversion
// is suggested.
const suggestionThreshold = 0.95

// tempColumnSuffix names the scratch column used during a conversion.
const tempColumnSuffix = "_temp_conversion"

// allowedTypes is the fixed analytic type vocabulary accepted for
// conversions. Anything else is rejected per item.
var allowedTypes = map[string]struct{}{
	"VARCHAR":   {},
	"DOUBLE":    {},
	"INTEGER":   {},
	"BIGINT":    {},
	"BOOLEAN":   {},
	"DATE":      {},
	"TIMESTAMP": {},
}

// ConversionSpec is one requested column type change.
type ConversionSpec struct {
	Column  string `json:"column_name"`
	NewType string `json:"new_type"`
}

// Suggestion proposes converting a text column to a richer type.
type Suggestion struct {
	Column        string  `json:"column_name"`
	CurrentType   string  `json:"current_type"`
	SuggestedType string  `json:"suggested_type"`
	Confidence    float64 `json:"confidence"`
}

// SuggestConversions inspects every text column and suggests a DOUBLE
// conversion when more than 95% of its non-empty values cast cleanly.
// DOUBLE is suggested over INTEGER to tolerate decimals.
func (c *Cleaner) SuggestConversions(ctx context.Context, table string) ([]Suggestion, error) {
	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	suggestions := []Suggestion{}
	for _, col := range cols {
		if !profile.TextType(col.Type) {
			continue
		}
		qc := ident.Quote(col.Name)

		var convertible int64
		castQuery := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE TRY_CAST(%s AS DOUBLE) IS NOT NULL", qt, qc)
		if err := conn.QueryRowContext(ctx, castQuery).Scan(&convertible); err != nil {
			return nil, fmt.Errorf("failed to probe column %q: %w", col.Name, err)
		}

		var nonEmpty int64
		nonEmptyQuery := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s != ''", qt, qc, qc)
		if err := conn.QueryRowContext(ctx, nonEmptyQuery).Scan(&nonEmpty); err != nil {
			return nil, fmt.Errorf("failed to probe column %q: %w", col.Name, err)
		}

		if nonEmpty == 0 {
			continue
		}
		ratio := float64(convertible) / float64(nonEmpty)
		if ratio > suggestionThreshold {
			suggestions = append(suggestions, Suggestion{
				Column:        col.Name,
				CurrentType:   "VARCHAR",
				SuggestedType: "DOUBLE",
				Confidence:    math.Round(ratio*100) / 100,
			})
		}
	}
	return suggestions, nil
}

// ConvertColumnTypes applies the requested conversions one column at a time
// using a create/populate/validate/swap sequence, so a value that fails to
// cast becomes null instead of aborting the statement. A failure in one
// column is recorded and the batch continues; the failing column's original
// data is never dropped.
func (c *Cleaner) ConvertColumnTypes(ctx context.Context, table string, specs []ConversionSpec) (*Report, error) {
	conn, err := c.acquire(ctx, table)
	if err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	report := &Report{Status: "success", Message: "Type conversion process completed."}
	for _, spec := range specs {
		item := c.convertOne(ctx, conn, qt, cols, spec)
		report.Items = append(report.Items, item)
		if item.Status == StatusSuccess {
			c.logger.Info("column converted",
				"table", table, "column", spec.Column, "new_type", item.NewType)
		}
	}
	return report, nil
}

func (c *Cleaner) convertOne(ctx context.Context, conn *sql.Conn, quotedTable string, cols []profile.Column, spec ConversionSpec) ItemReport {
	if spec.Column == "" || spec.NewType == "" {
		return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: "column_name and new_type are required"}
	}
	if !hasColumn(cols, spec.Column) {
		return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: fmt.Sprintf("column %q does not exist", spec.Column)}
	}
	newType := strings.ToUpper(spec.NewType)
	if _, ok := allowedTypes[newType]; !ok {
		return ItemReport{Column: spec.Column, Status: StatusSkipped, Error: fmt.Sprintf("unsupported type %q", spec.NewType)}
	}

	qc := ident.Quote(spec.Column)
	tempName := spec.Column + tempColumnSuffix
	qTemp := ident.Quote(tempName)

	fail := func(err error) ItemReport {
		return ItemReport{Column: spec.Column, Status: StatusFailed, Error: err.Error()}
	}

	initialNulls, err := c.countWhereNull(ctx, conn, quotedTable, qc)
	if err != nil {
		return fail(err)
	}

	addColumn := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quotedTable, qTemp, newType)
	if _, err := conn.ExecContext(ctx, addColumn); err != nil {
		return fail(fmt.Errorf("failed to add temporary column: %w", err))
	}

	populate := fmt.Sprintf("UPDATE %s SET %s = TRY_CAST(%s AS %s)", quotedTable, qTemp, qc, newType)
	if _, err := conn.ExecContext(ctx, populate); err != nil {
		return fail(fmt.Errorf("failed to populate temporary column: %w", err))
	}

	newNulls, err := c.countWhereNull(ctx, conn, quotedTable, qTemp)
	if err != nil {
		return fail(err)
	}
	failures := newNulls - initialNulls

	dropOld := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quotedTable, qc)
	if _, err := conn.ExecContext(ctx, dropOld); err != nil {
		return fail(fmt.Errorf("failed to drop original column: %w", err))
	}

	rename := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quotedTable, qTemp, qc)
	if _, err := conn.ExecContext(ctx, rename); err != nil {
		return fail(fmt.Errorf("failed to rename temporary column: %w", err))
	}

	return ItemReport{
		Column:             spec.Column,
		Status:             StatusSuccess,
		NewType:            newType,
		ConversionFailures: int64Ptr(failures),
	}
}
