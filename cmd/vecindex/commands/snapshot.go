package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/storage"
	"github.com/viant/vecindex/vec"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save or load index snapshots in the configured storage",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <index> [path]",
	Short: "Write an index snapshot (default path <index>.vec)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ix, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			path := ix.Name() + ".vec"
			if len(args) == 2 {
				path = args[1]
			}
			fs, err := storage.New(a.cfg.Storage)
			if err != nil {
				return err
			}
			if err := ix.SaveTo(ctx, fs, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", titleStyle.Render("saved"), ix.Name(), path)
			return nil
		})
	},
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Restore an index from a snapshot and store it in the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			fs, err := storage.New(a.cfg.Storage)
			if err != nil {
				return err
			}
			ix, err := vec.LoadFrom(ctx, fs, args[0], vec.Options{Logger: a.logger})
			if err != nil {
				return err
			}
			if err := a.catalog.Save(ctx, ix, a.cfg.Database.DatasetID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", titleStyle.Render("loaded"), ix.Name(),
				helpStyle.Render(fmt.Sprintf("(%d entries, %s)", ix.Len(), ix.Kind())))
			return nil
		})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd)
	rootCmd.AddCommand(snapshotCmd)
}
