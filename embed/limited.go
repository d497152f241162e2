package embed

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an underlying Embedder. Each EmbedBatch call
// waits for one token per text, capped at the burst size.
type Limited struct {
	Embedder
	limiter *rate.Limiter
}

// NewLimited wraps e with a token bucket allowing perSecond texts per second
// and bursts of up to burst texts.
func NewLimited(e Embedder, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{Embedder: e, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// EmbedBatch waits for capacity and then delegates.
func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := min(len(texts), l.limiter.Burst())
	if n > 0 {
		if err := l.limiter.WaitN(ctx, n); err != nil {
			return nil, err
		}
	}
	return l.Embedder.EmbedBatch(ctx, texts)
}
