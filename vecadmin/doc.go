// Package vecadmin persists built vector indexes in SQLite and coordinates
// rebuilds across processes sharing the same database.
//
// Snapshots live in the vector_storage table keyed by index name and
// dataset. Rebuilds take a row in vector_storage_locks; a lock older than
// the stale timeout is taken over by the next builder.
package vecadmin
