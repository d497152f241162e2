// Package hnsw provides an approximate Hierarchical Navigable Small World
// index.
//
// Recall trade-off: search visits at most max(EfSearch, k) candidates on the
// bottom layer, so results can miss true neighbors. With the defaults
// (M=16, EfConstruction=200, EfSearch=50) recall@10 on random unit vectors is
// typically above 0.9; raising EfSearch trades latency for recall. Removing
// nodes does not repair the graph, so heavy churn lowers recall until the
// index is rebuilt. Candidates are re-scored exactly and tie-broken by id, and
// level assignment uses a seeded generator, so building from the same entries
// always produces the same graph.
package hnsw
