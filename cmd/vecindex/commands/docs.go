package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/source"
)

var docParent string

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage documents in the SQLite document source",
}

var docPutCmd = &cobra.Command{
	Use:   "put <id> <field=value>...",
	Short: "Insert or replace a document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := parseDocument(args[0], docParent, args[1:])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.docs.Put(ctx, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("put"), doc.ID)
			return nil
		})
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			for _, id := range args {
				if err := a.docs.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render("deleted"), id)
			}
			return nil
		})
	},
}

func parseDocument(id, parent string, pairs []string) (source.Document, error) {
	doc := source.Document{ID: id, Parent: parent, Fields: make(map[string]any, len(pairs))}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return source.Document{}, fmt.Errorf("invalid field %q, expected field=value", pair)
		}
		doc.Fields[strings.TrimSpace(key)] = value
	}
	return doc, nil
}

func init() {
	docPutCmd.Flags().StringVar(&docParent, "parent", "", "parent document id")
	docCmd.AddCommand(docPutCmd, docDeleteCmd)
	rootCmd.AddCommand(docCmd)
}
