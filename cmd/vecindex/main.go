// Package main is the entry point for the vecindex CLI.
//
// Usage:
//
//	vecindex [flags] <command> [args]
//
// Commands:
//
//	doc       - Put or delete documents in the SQLite document source
//	ingest    - Embed changed documents into the configured indexes
//	watch     - Follow a directory tree and keep the indexes current
//	query     - Rank documents by similarity to a text or vector
//	reindex   - Rebuild indexes from the vector store
//	snapshot  - Save or load index snapshots (local or S3)
//	indexes   - List configured and stored indexes
package main

import (
	"fmt"
	"os"

	"github.com/viant/vecindex/cmd/vecindex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
