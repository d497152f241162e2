package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/vec"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [index...]",
	Short: "Rebuild indexes from the vector store",
	Long: `Rebuilds the named indexes (all when none are named) from the vector
store under the cross-process build lock and saves the new snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runReindex(ctx, a, args, cmd.OutOrStdout())
		})
	},
}

func runReindex(ctx context.Context, a *app, names []string, out io.Writer) error {
	targets := a.registry.List()
	if len(names) > 0 {
		targets = targets[:0:0]
		for _, name := range names {
			ix, err := a.registry.Get(name)
			if err != nil {
				return err
			}
			targets = append(targets, ix)
		}
	}
	for _, ix := range targets {
		done := startSpinner("rebuilding " + ix.Name())
		n, err := a.catalog.Reindex(ctx, ix, a.store, a.cfg.Database.DatasetID, a.cfg.Embedding.Identifier())
		done()
		if err != nil {
			return fmt.Errorf("reindex %s: %w", ix.Name(), err)
		}
		fmt.Fprintf(out, "%s %s %s\n", titleStyle.Render("reindexed"), ix.Name(),
			helpStyle.Render(fmt.Sprintf("(%d entries, %s)", n, describeKind(ix))))
	}
	return nil
}

func describeKind(ix *vec.Index) string {
	declared := ix.Meta().Kind
	if declared == vec.KindAuto {
		return fmt.Sprintf("auto: %s", ix.Kind())
	}
	return string(ix.Kind())
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
