// Package index defines the similarity index contract shared by the exact
// brute-force scan and the approximate structures, the deterministic hit
// ordering (score desc, then id and key asc), and the snapshot format used to
// persist a named vector index.
package index
