package profile

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/insightduck/insightduck/internal/ident"
)

// topValueCount caps the per-categorical-column frequency table.
const topValueCount = 5

// NumericStats holds descriptive statistics for one numeric column.
// Quantiles are computed with linear interpolation (quantile_cont).
type NumericStats struct {
	Count  int64    `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"25%"`
	Q50    *float64 `json:"50%"`
	Q75    *float64 `json:"75%"`
	Max    *float64 `json:"max"`
}

// CategoricalStats holds descriptive statistics for one text column.
type CategoricalStats struct {
	UniqueValues int64            `json:"unique_values"`
	Mode         *string          `json:"mode"`
	TopValues    map[string]int64 `json:"top_values"`
}

// Correlation is the Pearson correlation of one unordered numeric column
// pair, rounded to four decimal places.
type Correlation struct {
	Columns     [2]string `json:"columns"`
	Coefficient float64   `json:"correlation"`
}

// Summary is the full statistical summary of a table.
type Summary struct {
	Numeric      map[string]NumericStats     `json:"numerical_summary"`
	Categorical  map[string]CategoricalStats `json:"categorical_summary"`
	Correlations []Correlation               `json:"correlations"`
}

// StatisticalSummary computes per-numeric-column descriptive statistics,
// per-categorical-column frequency tables, and pairwise Pearson correlations
// over rows where both columns are non-null.
func (p *Profiler) StatisticalSummary(ctx context.Context, table string) (*Summary, error) {
	if err := ident.Validate(table); err != nil {
		return nil, err
	}

	cols, err := p.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	summary := &Summary{
		Numeric:      make(map[string]NumericStats),
		Categorical:  make(map[string]CategoricalStats),
		Correlations: []Correlation{},
	}

	var numericCols []string
	for _, col := range cols {
		switch {
		case NumericType(col.Type):
			numericCols = append(numericCols, col.Name)
			ns, err := p.numericStats(ctx, qt, col.Name)
			if err != nil {
				return nil, err
			}
			summary.Numeric[col.Name] = *ns
		case TextType(col.Type):
			cs, err := p.categoricalStats(ctx, qt, col.Name)
			if err != nil {
				return nil, err
			}
			summary.Categorical[col.Name] = *cs
		}
	}

	for i := 0; i < len(numericCols); i++ {
		for j := i + 1; j < len(numericCols); j++ {
			r, ok, err := p.pearson(ctx, qt, numericCols[i], numericCols[j])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			summary.Correlations = append(summary.Correlations, Correlation{
				Columns:     [2]string{numericCols[i], numericCols[j]},
				Coefficient: round4(r),
			})
		}
	}

	return summary, nil
}

func (p *Profiler) numericStats(ctx context.Context, quotedTable, column string) (*NumericStats, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	qc := ident.Quote(column)
	query := fmt.Sprintf(`
		SELECT
			COUNT(%[1]s),
			AVG(%[1]s),
			STDDEV_SAMP(%[1]s),
			MIN(%[1]s),
			quantile_cont(%[1]s, 0.25),
			quantile_cont(%[1]s, 0.50),
			quantile_cont(%[1]s, 0.75),
			MAX(%[1]s)
		FROM %[2]s`, qc, quotedTable)

	var (
		count                               int64
		mean, std, min, q25, q50, q75, max_ sql.NullFloat64
	)
	if err := conn.QueryRowContext(ctx, query).Scan(&count, &mean, &std, &min, &q25, &q50, &q75, &max_); err != nil {
		return nil, fmt.Errorf("failed to summarize column %q: %w", column, err)
	}

	return &NumericStats{
		Count:  count,
		Mean:   nullableFloat(mean),
		StdDev: nullableFloat(std),
		Min:    nullableFloat(min),
		Q25:    nullableFloat(q25),
		Q50:    nullableFloat(q50),
		Q75:    nullableFloat(q75),
		Max:    nullableFloat(max_),
	}, nil
}

func (p *Profiler) categoricalStats(ctx context.Context, quotedTable, column string) (*CategoricalStats, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	qc := ident.Quote(column)

	var unique int64
	uniqueQuery := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", qc, quotedTable)
	if err := conn.QueryRowContext(ctx, uniqueQuery).Scan(&unique); err != nil {
		return nil, fmt.Errorf("failed to count distinct values of %q: %w", column, err)
	}

	topQuery := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS freq
		FROM %[2]s
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY freq DESC, %[1]s
		LIMIT %[3]d`, qc, quotedTable, topValueCount)

	rows, err := conn.QueryContext(ctx, topQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to read top values of %q: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	cs := &CategoricalStats{
		UniqueValues: unique,
		TopValues:    make(map[string]int64),
	}
	for rows.Next() {
		var value string
		var freq int64
		if err := rows.Scan(&value, &freq); err != nil {
			return nil, fmt.Errorf("failed to scan top value of %q: %w", column, err)
		}
		if cs.Mode == nil {
			mode := value
			cs.Mode = &mode
		}
		cs.TopValues[value] = freq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top values of %q: %w", column, err)
	}
	return cs, nil
}

// pearson computes the Pearson coefficient over rows where both columns are
// non-null. ok is false when the pair has fewer than two valid rows or zero
// variance; such pairs are omitted from the summary.
func (p *Profiler) pearson(ctx context.Context, quotedTable, colA, colB string) (r float64, ok bool, err error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return 0, false, err
	}

	qa, qb := ident.Quote(colA), ident.Quote(colB)
	query := fmt.Sprintf(`
		SELECT CAST(%[1]s AS DOUBLE), CAST(%[2]s AS DOUBLE)
		FROM %[3]s
		WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL`, qa, qb, quotedTable)

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read pair (%s, %s): %w", colA, colB, err)
	}
	defer func() { _ = rows.Close() }()

	var xs, ys []float64
	for rows.Next() {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return 0, false, fmt.Errorf("failed to scan pair (%s, %s): %w", colA, colB, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("failed to read pair (%s, %s): %w", colA, colB, err)
	}

	if len(xs) < 2 {
		return 0, false, nil
	}
	// stats.Pearson returns 0 (not an error) for a constant column, so the
	// zero-variance check has to happen before calling it.
	for _, s := range [][]float64{xs, ys} {
		v, verr := stats.Variance(s)
		if verr != nil || v == 0 {
			return 0, false, nil
		}
	}
	r, err = stats.Pearson(xs, ys)
	if err != nil || math.IsNaN(r) {
		return 0, false, nil
	}
	return r, true, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return nil
	}
	f := v.Float64
	return &f
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
