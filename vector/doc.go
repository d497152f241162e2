// Package vector holds the persistent side of the similarity system:
//   - Record and the Store contract (put/get/delete/iterate by document id and field key)
//   - Memory, SQLiteStore and BadgerStore implementations
//   - Metric with cosine, dot and euclidean scoring
//   - Embedding encoding (little-endian float32 BLOB)
//
// Every store fixes its dimension on the first Put (or at construction) and
// rejects vectors of any other length with ErrDimensionMismatch.
package vector
