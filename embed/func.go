package embed

import (
	"context"
	"fmt"
)

// EmbedFunc converts free-form text into an embedding.
//
// Implementations can call any embedding provider (a local model, a cloud
// API) as long as they return a slice of float32 values.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

type funcEmbedder struct {
	id  string
	dim int
	fn  EmbedFunc
}

// FromFunc adapts fn into an Embedder that embeds texts one at a time.
// Every returned vector must have dim components.
func FromFunc(id string, dim int, fn EmbedFunc) Embedder {
	return &funcEmbedder{id: id, dim: dim, fn: fn}
}

func (f *funcEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := f.fn(ctx, text)
		if err != nil {
			return nil, err
		}
		if f.dim > 0 && len(vec) != f.dim {
			return nil, &ProviderError{
				Provider: f.id,
				Err:      fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), f.dim),
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *funcEmbedder) Dimension() int     { return f.dim }
func (f *funcEmbedder) Identifier() string { return f.id }
