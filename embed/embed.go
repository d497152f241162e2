package embed

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int

	// Identifier returns the "provider/model@version" string recorded in
	// index metadata.
	Identifier() string
}

var (
	// ErrEmptyInput is returned when no text (or an empty text) is supplied.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrEmbeddingVersionMismatch is returned when the embedder used for a
	// query or upsert differs from the one an index was built with.
	ErrEmbeddingVersionMismatch = errors.New("embed: embedding version mismatch")
)

// Embed returns the embedding of a single text.
func Embed(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed: provider returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// Identifier formats a provider/model/version triple. An empty version is
// omitted.
func Identifier(provider, model, version string) string {
	id := provider + "/" + model
	if version != "" {
		id += "@" + version
	}
	return id
}

// ProviderError describes a failed call to an embedding provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	// Transient reports whether retrying the same request may succeed
	// (rate limits, timeouts, 5xx responses, network failures).
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("embed: %s %s error (status %d): %v", e.Provider, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embed: %s %s error: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying. Deadline overruns and
// network timeouts count as transient; cancellation does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// StatusTransient reports whether an HTTP status code denotes a retryable
// provider condition.
func StatusTransient(code int) bool {
	return code == 408 || code == 409 || code == 429 || code >= 500
}
