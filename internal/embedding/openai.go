package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible /embeddings endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty uses api.openai.com
	Model      string
	Dimensions int // 0 keeps the model default
	BatchSize  int
}

type openAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAIProvider creates a provider for any OpenAI-compatible service.
func NewOpenAIProvider(cfg OpenAIConfig) (Provider, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &openAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
	}, nil
}

func (p *openAIProvider) Model() string { return p.model }

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends texts in chunks of batchSize and reassembles the vectors
// by the index the service reports for each item.
func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		chunk := texts[start:end]

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      chunk,
			Model:      openai.EmbeddingModel(p.model),
			Dimensions: p.dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings failed: %w", err)
		}
		if len(resp.Data) != len(chunk) {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(chunk))
		}

		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(chunk) {
				return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
			}
			if len(item.Embedding) == 0 || isZero(item.Embedding) {
				return nil, fmt.Errorf("empty embedding for input %d", start+item.Index)
			}
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			l2normalize(vec)
			vectors[start+item.Index] = vec
		}
	}

	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}
