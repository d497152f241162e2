// Package vec manages named vector indexes: their metadata, lifecycle state
// and the similarity structure that serves searches.
//
// An Index moves through Unbuilt, Building, Ready, Stale and Rebuilding.
// Builds construct a new structure off to the side while searches keep
// reading the previous one; writes that arrive during a build are journaled
// and replayed onto the new structure before it is swapped in. Searches hold
// a read lock for their duration only, and an index that is not Ready (or
// Stale) answers ErrIndexNotReady unless stale reads are enabled and a
// previous structure exists.
//
// The structure kind is chosen per index: "brute" (exact scan), "cover"
// (exact cover tree), "hnsw" (approximate graph) or "auto", which picks a
// cover tree for large, dense collections and brute force otherwise.
//
// Registry keeps indexes by unique name. Snapshots serialize an index with
// its metadata so it can be restored without re-embedding.
package vec
