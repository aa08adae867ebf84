// Package chart prepares chart-ready row sets and advisory chart
// suggestions for a table.
package chart

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/store"
)

const (
	// maxGroups caps grouped chart results.
	maxGroups = 50
	// maxScatterPoints caps scatter plots; larger tables are sampled.
	maxScatterPoints = 1000
)

// Chart types understood by the projector and accepted from the suggestion
// collaborator.
const (
	TypeBarChart    = "bar_chart"
	TypeHistogram   = "histogram"
	TypeScatterPlot = "scatter_plot"
)

// KnownType reports whether a chart type is part of the fixed vocabulary.
func KnownType(chartType string) bool {
	switch chartType {
	case TypeBarChart, TypeHistogram, TypeScatterPlot:
		return true
	}
	return false
}

// Data is a chart-ready row set.
type Data struct {
	ChartType string           `json:"chart_type"`
	XAxis     string           `json:"x_axis"`
	YAxis     string           `json:"y_axis,omitempty"`
	Rows      []map[string]any `json:"rows"`
}

// Projector maps chart requests to aggregated or sampled row sets.
type Projector struct {
	store  *store.Accessor
	logger *slog.Logger
}

// NewProjector creates a Projector bound to the given store accessor.
func NewProjector(accessor *store.Accessor, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Projector{store: accessor, logger: logger}
}

// ChartData returns rows ready for direct plotting. This path degrades
// gracefully for a UI: any validation failure (empty table, unknown chart
// type, missing axis column) yields an empty row set, not an error.
func (p *Projector) ChartData(ctx context.Context, table, chartType, xAxis, yAxis string) *Data {
	data := &Data{ChartType: chartType, XAxis: xAxis, YAxis: yAxis, Rows: []map[string]any{}}

	rows, err := p.chartRows(ctx, table, chartType, xAxis, yAxis)
	if err != nil {
		p.logger.Debug("chart data unavailable",
			"table", table, "chart_type", chartType, "reason", err)
		return data
	}
	data.Rows = rows
	return data
}

func (p *Projector) chartRows(ctx context.Context, table, chartType, xAxis, yAxis string) ([]map[string]any, error) {
	if err := ident.Validate(table); err != nil {
		return nil, err
	}
	if !KnownType(chartType) {
		return nil, fmt.Errorf("unsupported chart type %q", chartType)
	}

	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	cols, err := tableColumns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	if !containsColumn(cols, xAxis) {
		return nil, fmt.Errorf("x axis column %q does not exist", xAxis)
	}

	qt := ident.Quote(table)
	var total int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("table has no rows")
	}

	qx := ident.Quote(xAxis)

	switch chartType {
	case TypeBarChart, TypeHistogram:
		query := fmt.Sprintf(`
			SELECT %[1]s, COUNT(*) AS count
			FROM %[2]s
			GROUP BY %[1]s
			ORDER BY count DESC
			LIMIT %[3]d`, qx, qt, maxGroups)
		return p.collect(ctx, query)

	case TypeScatterPlot:
		if !containsColumn(cols, yAxis) {
			return nil, fmt.Errorf("y axis column %q does not exist", yAxis)
		}
		qy := ident.Quote(yAxis)

		query := fmt.Sprintf(`
			SELECT %[1]s, %[2]s
			FROM %[3]s
			WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL`, qx, qy, qt)
		if total > maxScatterPoints {
			query += fmt.Sprintf(" ORDER BY random() LIMIT %d", maxScatterPoints)
		}
		return p.collect(ctx, query)
	}

	return nil, fmt.Errorf("unsupported chart type %q", chartType)
}

func (p *Projector) collect(ctx context.Context, query string) ([]map[string]any, error) {
	conn, err := p.store.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart data: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return store.ScanRows(rows)
}

func tableColumns(ctx context.Context, conn *sql.Conn, table string) ([]profile.Column, error) {
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

	var cols []profile.Column
	for rows.Next() {
		var col profile.Column
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

func containsColumn(cols []profile.Column, name string) bool {
	for _, col := range cols {
		if col.Name == name {
			return true
		}
	}
	return false
}
