package embed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embedding models.
const (
	ModelOpenAI3Small = "text-embedding-3-small"
	ModelOpenAI3Large = "text-embedding-3-large"
)

const (
	openAIProvider     = "openai"
	openAIMaxBatch     = 2048
	openAIDefaultDim   = 1536
	openAIDefaultModel = ModelOpenAI3Small
)

// OpenAI implements [Embedder] using the OpenAI embeddings API.
//
// Any OpenAI-compatible provider can be used by setting WithBaseURL.
// The client does not retry on its own; retry policy belongs to the caller.
type OpenAI struct {
	client  *openai.Client
	model   string
	version string
	dim     int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      openAIDefaultModel,
		dim:        openAIDefaultDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.timeout))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client:  &client,
		model:   cfg.model,
		version: cfg.version,
		dim:     cfg.dim,
	}
}

// EmbedBatch returns embeddings for multiple texts.
// Batches larger than 2048 are split into multiple API calls.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := o.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

// Dimension returns the configured vector dimensionality.
func (o *OpenAI) Dimension() int {
	return o.dim
}

// Identifier returns "openai/<model>[@<version>]".
func (o *OpenAI) Identifier() string {
	return Identifier(openAIProvider, o.model, o.version)
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, &ProviderError{Provider: openAIProvider, Err: fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))}
		}
		vecs[idx] = toFloat32s(item.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, &ProviderError{Provider: openAIProvider, Err: fmt.Errorf("missing embedding for index %d", i)}
		}
		if len(v) != o.dim {
			return nil, &ProviderError{Provider: openAIProvider, Err: fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), o.dim)}
		}
	}
	return vecs, nil
}

func classifyOpenAI(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   openAIProvider,
			StatusCode: apiErr.StatusCode,
			Transient:  StatusTransient(apiErr.StatusCode),
			Err:        err,
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return &ProviderError{Provider: openAIProvider, Transient: true, Err: err}
	}
	return &ProviderError{Provider: openAIProvider, Err: err}
}

func toFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
