package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/query"
	"github.com/viant/vecindex/source"
	"github.com/viant/vecindex/vector"
)

var (
	queryN      int
	queryMetric string
	queryExact  bool
	queryVector string
	querySource string
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <index> [text...]",
	Short: "Rank documents by similarity",
	Long: `Embeds the query text with the index's embedder (or takes --vector),
searches the index and joins every hit with its document.`,
	Example: `  vecindex query docs "vector search in go" -n 5
  vecindex query docs --vector 0.1,0.2,0.3 --metric dot --exact`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := query.Request{Index: args[0], Text: strings.Join(args[1:], " "), N: queryN, Exact: queryExact}
		if queryMetric != "" {
			m, err := vector.ParseMetric(queryMetric)
			if err != nil {
				return err
			}
			req.Metric = m
		}
		if queryVector != "" {
			v, err := parseVector(queryVector)
			if err != nil {
				return err
			}
			req.Vector = v
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			var src source.Source = a.docs
			if querySource == "watch" {
				w, err := newWatcher(a)
				if err != nil {
					return err
				}
				src = w
			}
			en, err := a.queryEngine(src)
			if err != nil {
				return err
			}
			results, err := en.Query(ctx, req)
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			renderResults(cmd.OutOrStdout(), results)
			return nil
		})
	},
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

type jsonResult struct {
	ID     string         `json:"id"`
	Key    string         `json:"key"`
	Parent string         `json:"parent,omitempty"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

func writeJSON(w io.Writer, results []query.Result) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{ID: r.ID, Key: r.Key, Parent: r.Parent, Score: r.Score}
		if r.Document != nil {
			out[i].Fields = r.Document.Fields
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderResults(w io.Writer, results []query.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, helpStyle.Render("no results"))
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			titleStyle.Render(fmt.Sprintf("%2d.", i+1)),
			labelStyle.Render(r.ID+"/"+r.Key),
			helpStyle.Render(fmt.Sprintf("score=%.4f", r.Score)))
		if r.Document == nil {
			fmt.Fprintf(w, "    %s\n", helpStyle.Render("(document not found)"))
			continue
		}
		if text, ok := r.Document.Text(r.Key); ok {
			fmt.Fprintf(w, "    %s\n", snippet(text, 120))
		}
	}
}

func init() {
	queryCmd.Flags().IntVarP(&queryN, "num", "n", query.DefaultN, "number of results")
	queryCmd.Flags().StringVar(&queryMetric, "metric", "", "metric override: cosine, dot or euclidean")
	queryCmd.Flags().BoolVar(&queryExact, "exact", false, "scan every entry instead of using the index structure")
	queryCmd.Flags().StringVar(&queryVector, "vector", "", "comma-separated query vector instead of text")
	queryCmd.Flags().StringVar(&querySource, "source", "db", "document source joined with hits: db or watch")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}
