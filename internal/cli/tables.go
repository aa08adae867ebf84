package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/insightduck/insightduck/internal/ident"
	"github.com/insightduck/insightduck/internal/profile"
	"github.com/insightduck/insightduck/internal/store"
)

func newTablesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List project tables in the analytic store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			accessor, err := store.Open(cfg.Store.Database, logger)
			if err != nil {
				return err
			}
			defer func() { _ = accessor.Close() }()

			ctx := cmd.Context()
			profiler := profile.NewProfiler(accessor, logger)

			tables, err := profiler.Tables(ctx)
			if err != nil {
				return err
			}

			conn, err := accessor.Conn(ctx)
			if err != nil {
				return err
			}

			infos := make([]tableInfo, 0, len(tables))
			for _, name := range tables {
				cols, err := profiler.Columns(ctx, name)
				if err != nil {
					return err
				}
				var count int64
				if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident.Quote(name)).Scan(&count); err != nil {
					return fmt.Errorf("failed to count rows of %s: %w", name, err)
				}
				infos = append(infos, tableInfo{Name: name, Rows: count, Columns: len(cols)})
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			return renderTablesTable(cmd.OutOrStdout(), infos)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	return cmd
}

// tableInfo is one row of the tables listing.
type tableInfo struct {
	Name    string `json:"name"`
	Rows    int64  `json:"rows"`
	Columns int    `json:"columns"`
}

func renderTablesTable(w io.Writer, infos []tableInfo) error {
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(w, "(0 tables)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Rows", "Columns"})
	for _, info := range infos {
		t.AppendRow(table.Row{info.Name, info.Rows, info.Columns})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tables)\n", len(infos))
	return nil
}
