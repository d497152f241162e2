// Package source defines the document source boundary consumed by the
// ingest listener and the query engine.
//
// A Source reports changed documents since an opaque Cursor (pull) and
// returns full documents by id for result joins. Sources that can push
// changes also implement Subscriber.
//
// Two implementations live here: Memory, an in-process change log used by
// tests and embedding applications, and Watcher, a file tree exposed as a
// document collection through fsnotify. The SQLite change log source lives
// in package vecsync.
package source
