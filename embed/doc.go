// Package embed defines the boundary to embedding providers.
//
// An Embedder converts texts into dense float32 vectors and reports a stable
// identifier ("provider/model@version") that vector indexes record at build
// time. Queries and upserts are only accepted when the caller's embedder
// identifier matches the one an index was built with.
//
// Implementations:
//
//   - [FromFunc] adapts any Go function, which is how local models and tests
//     plug in.
//   - [OpenAI] calls an OpenAI-compatible embeddings endpoint.
//   - [Limited] throttles another Embedder with a token bucket.
//
// Provider failures are reported as [*ProviderError]; [IsTransient] tells the
// ingest pipeline whether a retry may succeed.
package embed
