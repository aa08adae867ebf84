package profile

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightduck/insightduck/internal/store"
	"github.com/insightduck/insightduck/internal/testutil"
)

func newTestProfiler(t *testing.T) (*Profiler, *store.Accessor) {
	t.Helper()
	accessor, err := store.Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accessor.Close() })
	return NewProfiler(accessor, testutil.NewTestLogger(t)), accessor
}

func mustExec(t *testing.T, accessor *store.Accessor, query string, args ...any) {
	t.Helper()
	conn, err := accessor.Conn(context.Background())
	require.NoError(t, err)
	_, err = conn.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func TestTables(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	tables, err := p.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)

	mustExec(t, a, `CREATE TABLE project_1 (id INTEGER)`)
	mustExec(t, a, `CREATE TABLE project_2 (id INTEGER)`)

	tables, err = p.Tables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"project_1", "project_2"}, tables)
}

func TestDataProfile(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (name VARCHAR, age VARCHAR, city VARCHAR)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES
		('alice', '29', 'berlin'),
		('bob', '31', NULL),
		('carol', NULL, NULL),
		('alice', '29', 'berlin'),
		('dave', '40', 'paris')`)

	prof, err := p.DataProfile(ctx, "project_1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), prof.TotalRows)
	assert.Equal(t, 3, prof.TotalColumns)
	require.Len(t, prof.Schema, 3)
	assert.Equal(t, "name", prof.Schema[0].Name)

	// Only columns with nulls appear.
	assert.Equal(t, map[string]int64{"age": 1, "city": 2}, prof.NullCounts)

	// Two fully identical rows among five count as one duplicate.
	assert.Equal(t, int64(1), prof.DuplicatesCount)

	assert.Len(t, prof.SamplePreview, 5)
}

func TestDataProfileSampleCapped(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 AS SELECT range AS id FROM range(100)`)

	prof, err := p.DataProfile(ctx, "project_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), prof.TotalRows)
	assert.Len(t, prof.SamplePreview, sampleRows)
}

func TestDataProfileTableNotFound(t *testing.T) {
	p, _ := newTestProfiler(t)

	_, err := p.DataProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, store.NotFound(err))
}

func TestDataProfileRejectsBadIdentifier(t *testing.T) {
	p, _ := newTestProfiler(t)

	_, err := p.DataProfile(context.Background(), `p; DROP TABLE x`)
	require.Error(t, err)
}

func TestStatisticalSummaryNumeric(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (v DOUBLE)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES (1), (2), (3), (4), (100)`)

	summary, err := p.StatisticalSummary(ctx, "project_1")
	require.NoError(t, err)

	ns, ok := summary.Numeric["v"]
	require.True(t, ok)
	assert.Equal(t, int64(5), ns.Count)
	require.NotNil(t, ns.Q25)
	require.NotNil(t, ns.Q75)

	// Linear interpolation: Q1=2, Q3=4 for [1,2,3,4,100].
	assert.InDelta(t, 2.0, *ns.Q25, 1e-9)
	assert.InDelta(t, 4.0, *ns.Q75, 1e-9)
	assert.InDelta(t, 22.0, *ns.Mean, 1e-9)
	assert.InDelta(t, 1.0, *ns.Min, 1e-9)
	assert.InDelta(t, 100.0, *ns.Max, 1e-9)
}

func TestStatisticalSummaryCategorical(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (city VARCHAR)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES
		('berlin'), ('berlin'), ('berlin'), ('paris'), (NULL)`)

	summary, err := p.StatisticalSummary(ctx, "project_1")
	require.NoError(t, err)

	cs, ok := summary.Categorical["city"]
	require.True(t, ok)
	assert.Equal(t, int64(2), cs.UniqueValues)
	require.NotNil(t, cs.Mode)
	assert.Equal(t, "berlin", *cs.Mode)
	assert.Equal(t, int64(3), cs.TopValues["berlin"])
	assert.Equal(t, int64(1), cs.TopValues["paris"])
}

func TestStatisticalSummaryCorrelation(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (a DOUBLE, b DOUBLE, flat DOUBLE)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES
		(1, 2, 7), (2, 4, 7), (3, 6, 7), (4, 8, 7)`)

	summary, err := p.StatisticalSummary(ctx, "project_1")
	require.NoError(t, err)

	// Perfect linear relationship between a and b; pairs involving the
	// zero-variance column are omitted entirely.
	require.Len(t, summary.Correlations, 1)
	c := summary.Correlations[0]
	assert.Equal(t, [2]string{"a", "b"}, c.Columns)
	assert.InDelta(t, 1.0, c.Coefficient, 1e-9)
}

func TestStatisticalSummaryCorrelationSkipsNullPairs(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	// Only one row has both values set: fewer than 2 valid rows, omitted.
	mustExec(t, a, `CREATE TABLE project_1 (a DOUBLE, b DOUBLE)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES (1, 1), (2, NULL), (NULL, 3)`)

	summary, err := p.StatisticalSummary(ctx, "project_1")
	require.NoError(t, err)
	assert.Empty(t, summary.Correlations)
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(7), asInt64(int64(7)))
	assert.Equal(t, int64(7), asInt64(big.NewInt(7)))
	assert.Equal(t, int64(0), asInt64("7"))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.8123, round4(0.8123456))
	assert.Equal(t, -0.8123, round4(-0.8123456))
	assert.Equal(t, 1.0, round4(0.99996))
}

func TestInsightsCorrelation(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (a DOUBLE, b DOUBLE)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES (1, 2), (2, 4), (3, 6), (4, 8)`)

	insights := p.Insights(ctx, "project_1")
	require.Len(t, insights, 1)
	assert.Equal(t, InsightCorrelation, insights[0].Type)
	assert.Equal(t, SeverityWarning, insights[0].Severity)
	assert.ElementsMatch(t, []string{"a", "b"}, insights[0].Columns)
}

func TestInsightsOutlierSuppressedOnSmallDataset(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	// 100 is far outside the IQR bounds, but a single outlier among five
	// rows clears neither the absolute nor the relative floor.
	mustExec(t, a, `CREATE TABLE project_1 (v DOUBLE)`)
	mustExec(t, a, `INSERT INTO project_1 VALUES (1), (2), (3), (4), (100)`)

	insights := p.Insights(ctx, "project_1")
	for _, ins := range insights {
		assert.NotEqual(t, InsightOutlier, ins.Type)
	}
}

func TestInsightsOutlierEmittedOnLargeDataset(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	// 600 tightly clustered values plus 10 extremes: count > 5 and > 1%.
	mustExec(t, a, `CREATE TABLE project_1 AS
		SELECT CAST(10 + range % 5 AS DOUBLE) AS v FROM range(600)`)
	mustExec(t, a, `INSERT INTO project_1 SELECT 10000 FROM range(10)`)

	insights := p.Insights(ctx, "project_1")
	var found bool
	for _, ins := range insights {
		if ins.Type == InsightOutlier {
			found = true
			assert.Equal(t, SeverityWarning, ins.Severity)
			assert.Equal(t, []string{"v"}, ins.Columns)
		}
	}
	assert.True(t, found, "expected an outlier insight")
}

func TestInsightsImbalance(t *testing.T) {
	p, a := newTestProfiler(t)
	ctx := context.Background()

	mustExec(t, a, `CREATE TABLE project_1 (status VARCHAR)`)
	mustExec(t, a, `INSERT INTO project_1 SELECT 'OK' FROM range(95)`)
	mustExec(t, a, `INSERT INTO project_1 SELECT 'FAIL' FROM range(5)`)

	insights := p.Insights(ctx, "project_1")
	require.Len(t, insights, 1)
	assert.Equal(t, InsightDistribution, insights[0].Type)
	assert.Equal(t, SeverityInfo, insights[0].Severity)
	assert.Contains(t, insights[0].Description, "95%")
}

func TestInsightsDegradeToEmptyOnMissingTable(t *testing.T) {
	p, _ := newTestProfiler(t)

	insights := p.Insights(context.Background(), "missing")
	assert.NotNil(t, insights)
	assert.Empty(t, insights)
}

func TestNumericType(t *testing.T) {
	assert.True(t, NumericType("INTEGER"))
	assert.True(t, NumericType("DOUBLE"))
	assert.True(t, NumericType("DECIMAL(18,3)"))
	assert.False(t, NumericType("VARCHAR"))
	assert.False(t, NumericType("BOOLEAN"))
	assert.True(t, TextType("VARCHAR"))
	assert.False(t, TextType("DOUBLE"))
}
