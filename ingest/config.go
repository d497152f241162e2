package ingest

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes a Pipeline and its Listener.
type Config struct {
	// Keys lists the document fields to embed. Default: ["content"].
	Keys []string
	// Workers is the number of concurrent embedding workers. Default: 4.
	Workers int
	// QueueSize bounds the events buffered across workers. Default: 256.
	QueueSize int
	// MaxChunkSize is the largest number of texts sent in one embedding
	// call. Default: 32.
	MaxChunkSize int
	// MaxAttempts bounds embedding attempts per document. Default: 3.
	MaxAttempts int
	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	// Defaults: 200ms and 5s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// CallTimeout bounds every embedding call. Default: 30s.
	CallTimeout time.Duration
	// PollInterval is the Listener's delay between empty polls. Default: 5s.
	PollInterval time.Duration

	// Limiter throttles embedding calls when set.
	Limiter *rate.Limiter
	// OnProgress is called with the number of events finished so far.
	OnProgress func(done int)
	Logger     *slog.Logger
}

// DefaultKey is the field embedded when no keys are configured.
const DefaultKey = "content"

func (c *Config) applyDefaults() {
	if len(c.Keys) == 0 {
		c.Keys = []string{DefaultKey}
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 32
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	c.MaxBackoff = max(c.MaxBackoff, c.InitialBackoff)
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// backoff returns the delay before retry number attempt (1-based).
func (c *Config) backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < attempt && d < c.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, c.MaxBackoff)
}
