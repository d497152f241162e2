package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "List configured indexes and their state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return listIndexes(ctx, a, cmd.OutOrStdout())
		})
	},
}

func listIndexes(ctx context.Context, a *app, out io.Writer) error {
	stored, err := a.catalog.List(ctx, a.cfg.Database.DatasetID)
	if err != nil {
		return err
	}
	sizes := make(map[string]int, len(stored))
	for _, e := range stored {
		sizes[e.Name] = e.Size
	}

	var rows [][]string
	for _, ix := range a.registry.List() {
		meta := ix.Meta()
		built := "-"
		if t := ix.BuiltAt(); !t.IsZero() {
			built = t.Format("2006-01-02 15:04")
		}
		snapshot := "-"
		if size, ok := sizes[ix.Name()]; ok {
			snapshot = fmt.Sprintf("%.1f KiB", float64(size)/1024)
		}
		rows = append(rows, []string{
			ix.Name(), ix.State().String(), describeKind(ix), string(meta.Metric),
			strconv.Itoa(ix.Len()), strconv.Itoa(meta.Dimension), meta.Embedder, built, snapshot,
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, helpStyle.Render("no indexes configured"))
		return nil
	}
	renderTable(out, []string{"NAME", "STATE", "KIND", "METRIC", "ENTRIES", "DIM", "EMBEDDER", "BUILT", "SNAPSHOT"}, rows)
	return nil
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
