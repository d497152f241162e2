package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed documents changed since the last run",
	Long: `Reads the change log of the SQLite document source from the stored
cursor, embeds the configured fields and writes them to the vector store and
every configured index. Index snapshots are saved afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runIngest(ctx, a, cmd.OutOrStdout())
		})
	},
}

// runIngest polls the document source until it has no more changes.
func runIngest(ctx context.Context, a *app, out io.Writer) error {
	if err := a.prepare(ctx); err != nil {
		return err
	}
	onProgress, finish := newProgress("embedding")
	pipe, err := a.pipeline(onProgress)
	if err != nil {
		return err
	}
	l, err := a.listener(ctx, "vecsync:"+a.cfg.Database.DatasetID, a.docs, pipe)
	if err != nil {
		return err
	}
	var total ingest.Report
	for {
		report, err := l.Poll(ctx)
		if err != nil {
			finish()
			return err
		}
		if report.Indexed+report.Deleted+len(report.Failed) == 0 {
			break
		}
		total.Indexed += report.Indexed
		total.Deleted += report.Deleted
		total.Failed = append(total.Failed, report.Failed...)
		total.Elapsed += report.Elapsed
	}
	finish()
	if err := a.saveAll(ctx); err != nil {
		return err
	}
	printReport(out, &total)
	return nil
}

func printReport(w io.Writer, r *ingest.Report) {
	fmt.Fprintf(w, "%s %d indexed, %d deleted, %d failed %s\n",
		titleStyle.Render("ingest"), r.Indexed, r.Deleted, len(r.Failed),
		helpStyle.Render(fmt.Sprintf("(%s)", r.Elapsed.Round(time.Millisecond))))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %s %s/%s: %v\n", errStyle.Render("failed"), f.ID, f.Key, f.Err)
	}
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
