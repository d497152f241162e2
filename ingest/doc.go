// Package ingest feeds changed documents through an embedder into a vector
// store and a vector index.
//
// A Pipeline consumes DocumentChanged events on bounded per-worker queues,
// so producers block when workers fall behind. Each worker groups events
// into chunks and embeds a chunk with a single batch call; when that call
// fails, every document of the chunk is embedded on its own, with retries
// for transient provider errors, so one bad document never drops the
// others. Successful embeddings are written to the store first and then
// upserted into the index.
//
// A Listener drives a Pipeline from a source: it polls FetchChanged on an
// interval, or consumes pushed changes when the source is a Subscriber, and
// persists its cursor after every processed batch.
package ingest
