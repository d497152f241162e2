// Package bruteforce provides the exact vector index: every query scores all
// entries under the configured metric (cosine, dot or euclidean). It is the
// correctness reference for the approximate indexes and the fallback for
// queries that need a metric other than the one an index was built with.
package bruteforce
