package cleaning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/store"
	"github.com/insightduck/insightduck/internal/testutil"
)

func newTestCleaner(t *testing.T) (*Cleaner, *profile.Profiler, *store.Accessor) {
	t.Helper()
	accessor, err := store.Open(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accessor.Close() })

	logger := testutil.NewTestLogger(t)
	return NewCleaner(accessor, logger), profile.NewProfiler(accessor, logger), accessor
}

func mustExec(t *testing.T, accessor *store.Accessor, query string, args ...any) {
	t.Helper()
	conn, err := accessor.Conn(context.Background())
	require.NoError(t, err)
	_, err = conn.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func queryStrings(t *testing.T, accessor *store.Accessor, query string) []string {
	t.Helper()
	conn, err := accessor.Conn(context.Background())
	require.NoError(t, err)
	rows, err := conn.QueryContext(context.Background(), query)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v *string
		require.NoError(t, rows.Scan(&v))
		if v == nil {
			out = append(out, "<null>")
		} else {
			out = append(out, *v)
		}
	}
	require.NoError(t, rows.Err())
	return out
}
