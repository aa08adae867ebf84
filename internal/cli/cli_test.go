package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightduck/insightduck/internal/config"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "insightduck", cmd.Use)

	names := []string{}
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "tables")
}

func TestRenderTablesTable(t *testing.T) {
	var b strings.Builder
	require.NoError(t, renderTablesTable(&b, nil))
	assert.Contains(t, b.String(), "(0 tables)")

	b.Reset()
	require.NoError(t, renderTablesTable(&b, []tableInfo{
		{Name: "project_1", Rows: 42, Columns: 3},
	}))
	out := b.String()
	assert.Contains(t, out, "project_1")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(1 tables)")
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		cfg := &config.Config{Log: config.LogConfig{Level: level, Format: "text"}}
		assert.NotNil(t, newLogger(cfg))
	}

	cfg := &config.Config{Log: config.LogConfig{Format: "json"}}
	assert.NotNil(t, newLogger(cfg))
}
