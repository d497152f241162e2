// Package vecsync exposes a SQLite document table as a change-feed source.
//
// Documents live in a dataset-scoped shadow table. AFTER INSERT/UPDATE/DELETE
// triggers append every change to vec_shadow_log under a per-dataset system
// change number (SCN) kept in vec_dataset_scn, so a listener can resume from
// the last SCN it applied. The same DDL is available in MySQL syntax for
// upstream databases that replicate into SQLite.
//
// StateStore persists listener cursors in vec_sync_state so ingest restarts
// pick up where they stopped.
package vecsync
