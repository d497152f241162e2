package embed_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecindex/embed"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding response.
func fakeEmbeddingResponse(dim int, texts []string) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
	}
	data := make([]embItem, len(texts))
	for i := range texts {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(i+1) * 0.01 * float64(j+1)
		}
		data[i] = embItem{Object: "embedding", Index: i, Embedding: vec}
	}
	b, _ := json.Marshal(resp{Object: "list", Model: "test-model", Data: data})
	return b
}

func newFakeServer(t *testing.T, dim int, status *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			fmt.Fprintf(w, `{"error":{"message":"status %d","type":"test"}}`, code)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(fakeEmbeddingResponse(dim, req.Input))
	}))
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	const dim = 4
	var status atomic.Int32
	srv := newFakeServer(t, dim, &status)
	defer srv.Close()

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(dim),
		embed.WithVersion("2024-01"),
	)
	assert.Equal(t, dim, e.Dimension())
	assert.Equal(t, "openai/text-embedding-3-small@2024-01", e.Identifier())

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		require.Len(t, v, dim)
		assert.InDelta(t, float64(i+1)*0.01, v[0], 1e-6)
	}

	vec, err := embed.Embed(context.Background(), e, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, dim)

	_, err = e.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}

func TestOpenAI_ErrorClassification(t *testing.T) {
	const dim = 4
	var status atomic.Int32
	srv := newFakeServer(t, dim, &status)
	defer srv.Close()
	e := embed.NewOpenAI("test-key", embed.WithBaseURL(srv.URL), embed.WithDimension(dim))

	cases := []struct {
		code      int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			status.Store(int32(tc.code))
			_, err := e.EmbedBatch(context.Background(), []string{"x"})
			require.Error(t, err)
			var pe *embed.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.code, pe.StatusCode)
			assert.Equal(t, tc.transient, embed.IsTransient(err))
		})
	}
}

func TestFromFunc(t *testing.T) {
	e := embed.FromFunc("local/test@1", 2, func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return []float32{1}, nil
		}
		return []float32{float32(len(text)), 1}, nil
	})
	assert.Equal(t, "local/test@1", e.Identifier())
	assert.Equal(t, 2, e.Dimension())

	vecs, err := e.EmbedBatch(context.Background(), []string{"ab", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}}, vecs)

	_, err = e.EmbedBatch(context.Background(), []string{"ok", "bad"})
	var pe *embed.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Transient)

	_, err = embed.Embed(context.Background(), e, "")
	assert.ErrorIs(t, err, embed.ErrEmptyInput)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	assert.False(t, embed.IsTransient(nil))
	assert.False(t, embed.IsTransient(context.Canceled))
	assert.True(t, embed.IsTransient(context.DeadlineExceeded))
	assert.True(t, embed.IsTransient(fmt.Errorf("wrapped: %w", timeoutErr{})))
	assert.False(t, embed.IsTransient(errors.New("boom")))
	assert.True(t, embed.IsTransient(&embed.ProviderError{Provider: "p", Transient: true, Err: errors.New("x")}))
	assert.False(t, embed.IsTransient(fmt.Errorf("ctx: %w", &embed.ProviderError{Provider: "p", Err: errors.New("x")})))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "openai/m", embed.Identifier("openai", "m", ""))
	assert.Equal(t, "openai/m@v2", embed.Identifier("openai", "m", "v2"))
}

func TestLimited(t *testing.T) {
	var calls atomic.Int32
	inner := embed.FromFunc("local/count", 1, func(context.Context, string) ([]float32, error) {
		calls.Add(1)
		return []float32{1}, nil
	})
	l := embed.NewLimited(inner, 1000, 2)
	assert.Equal(t, "local/count", l.Identifier())

	_, err := l.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	slow := embed.NewLimited(inner, 0.001, 1)
	_, err = slow.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slow.EmbedBatch(ctx, []string{"b"})
	assert.Error(t, err)
}
