package embed

import (
	"net/http"
	"time"
)

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	version    string
	dim        int
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVersion sets the version suffix reported by Identifier. Bump it when a
// provider silently changes model weights under the same name.
func WithVersion(version string) Option {
	return func(c *config) { c.version = version }
}

// WithDimension sets the desired output vector dimensionality.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout bounds each request sent to the provider.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}
