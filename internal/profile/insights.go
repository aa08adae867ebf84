package profile

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/insightduck/insightduck/internal/ident"
)

// Insight severities and types.
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"

	InsightCorrelation  = "correlation"
	InsightOutlier      = "outlier"
	InsightDistribution = "distribution"
)

// correlationThreshold is the absolute Pearson coefficient at or above which
// a pair is reported.
const correlationThreshold = 0.8

// dominanceThreshold is the share of total rows above which a single
// categorical value is reported as an imbalance.
const dominanceThreshold = 0.9

// Insight is an automatically detected, human-readable data-quality
// observation. Insights are derived and never persisted.
type Insight struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
}

// Insights derives correlation, outlier and distribution insights from a
// freshly computed statistical summary. This path is best-effort: any
// internal failure degrades to an empty list instead of an error.
func (p *Profiler) Insights(ctx context.Context, table string) []Insight {
	insights, err := p.detectInsights(ctx, table)
	if err != nil {
		p.logger.Warn("insight detection failed", "table", table, "error", err)
		return []Insight{}
	}
	return insights
}

func (p *Profiler) detectInsights(ctx context.Context, table string) ([]Insight, error) {
	if err := ident.Validate(table); err != nil {
		return nil, err
	}

	summary, err := p.StatisticalSummary(ctx, table)
	if err != nil {
		return nil, err
	}

	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}
	qt := ident.Quote(table)

	var totalRows int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&totalRows); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	insights := []Insight{}

	// Pass 1: high pairwise correlation.
	for _, c := range summary.Correlations {
		if math.Abs(c.Coefficient) < correlationThreshold {
			continue
		}
		insights = append(insights, Insight{
			Type:     InsightCorrelation,
			Severity: SeverityWarning,
			Title:    "Highly correlated columns",
			Description: fmt.Sprintf("Columns '%s' and '%s' are strongly correlated (r = %.4f).",
				c.Columns[0], c.Columns[1], c.Coefficient),
			Columns: []string{c.Columns[0], c.Columns[1]},
		})
	}

	// Pass 2: IQR outliers. Reported only when the count clears both the
	// absolute and the relative floor, so tiny datasets stay quiet.
	for _, col := range orderedNumericColumns(summary) {
		ns := summary.Numeric[col]
		if ns.Q25 == nil || ns.Q75 == nil {
			continue
		}
		iqr := *ns.Q75 - *ns.Q25
		lower := *ns.Q25 - 1.5*iqr
		upper := *ns.Q75 + 1.5*iqr

		qc := ident.Quote(col)
		var outliers int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < ? OR %s > ?", qt, qc, qc)
		if err := conn.QueryRowContext(ctx, query, lower, upper).Scan(&outliers); err != nil {
			return nil, fmt.Errorf("failed to count outliers in %q: %w", col, err)
		}

		if outliers > 5 && float64(outliers) > 0.01*float64(totalRows) {
			insights = append(insights, Insight{
				Type:     InsightOutlier,
				Severity: SeverityWarning,
				Title:    "Potential outliers",
				Description: fmt.Sprintf("Column '%s' has %d value(s) outside [%.2f, %.2f].",
					col, outliers, lower, upper),
				Columns: []string{col},
			})
		}
	}

	// Pass 3: categorical imbalance.
	if totalRows > 0 {
		for _, col := range orderedCategoricalColumns(summary) {
			cs := summary.Categorical[col]
			if cs.Mode == nil {
				continue
			}
			share := float64(cs.TopValues[*cs.Mode]) / float64(totalRows)
			if share > dominanceThreshold {
				insights = append(insights, Insight{
					Type:     InsightDistribution,
					Severity: SeverityInfo,
					Title:    "Imbalanced distribution",
					Description: fmt.Sprintf("Value '%s' accounts for %d%% of column '%s'.",
						*cs.Mode, int(math.Round(share*100)), col),
					Columns: []string{col},
				})
			}
		}
	}

	return insights, nil
}

func orderedNumericColumns(s *Summary) []string {
	return slices.Sorted(maps.Keys(s.Numeric))
}

func orderedCategoricalColumns(s *Summary) []string {
	return slices.Sorted(maps.Keys(s.Categorical))
}
