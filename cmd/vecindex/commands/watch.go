package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/source"
)

var (
	watchRoot         string
	watchSaveInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a directory tree and keep the indexes current",
	Long: `Indexes every file under the watch root that matches the include
patterns, then follows filesystem events until interrupted. Snapshots are
saved periodically and on exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a)
		})
	},
}

func newWatcher(a *app) (*source.Watcher, error) {
	opts := a.cfg.Watch.WatcherOptions(a.logger)
	if watchRoot != "" {
		opts.Root = watchRoot
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("watch root not set (watch.root or --root)")
	}
	return source.NewWatcher(opts)
}

func runWatch(ctx context.Context, a *app) error {
	w, err := newWatcher(a)
	if err != nil {
		return err
	}
	if err := a.prepare(ctx); err != nil {
		return err
	}
	pipe, err := a.pipeline(nil)
	if err != nil {
		return err
	}
	l, err := a.listener(ctx, "watch:"+a.cfg.Database.DatasetID, w, pipe)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(watchSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.saveAll(ctx); err != nil {
					a.logger.Warn("save snapshots", "error", err)
				}
			}
		}
	}()

	a.logger.Info("watching", "listener", "watch:"+a.cfg.Database.DatasetID)
	err = l.Run(ctx)
	if saveErr := a.saveAll(context.WithoutCancel(ctx)); saveErr != nil {
		return saveErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	watchCmd.Flags().StringVar(&watchRoot, "root", "", "directory to watch (overrides watch.root)")
	watchCmd.Flags().DurationVar(&watchSaveInterval, "save-interval", time.Minute, "interval between snapshot saves")
	rootCmd.AddCommand(watchCmd)
}
