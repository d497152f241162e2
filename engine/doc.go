// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections and registering the vec_cosine,
// vec_dot and vec_l2 scalar functions over embedding BLOBs. Every package that
// touches SQLite goes through Open so they share one driver registration.
package engine
