package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Embedder converts text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const (
	DefaultEmbeddingModel     = "gemini-embedding-001"
	DefaultEmbeddingDimension = 768
)

type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	dimension      int32
}

type GeminiOption func(*GeminiClient)

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithDimension sets the output dimensionality. Every embedding of one
// deployment must share it.
func WithDimension(dim int) GeminiOption {
	return func(g *GeminiClient) {
		g.dimension = int32(dim)
	}
}

// NewGemini creates an embedder backed by Vertex AI
func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client",
			goerr.V("project", projectID), goerr.V("location", location))
	}

	return newGeminiClient(client, opts...), nil
}

// NewGeminiWithAPIKey creates an embedder backed by the Gemini API
func NewGeminiWithAPIKey(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return newGeminiClient(client, opts...), nil
}

func newGeminiClient(client *genai.Client, opts ...GeminiOption) *GeminiClient {
	g := &GeminiClient{
		client:         client,
		embeddingModel: DefaultEmbeddingModel,
		dimension:      DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &g.dimension,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("no embedding returned", goerr.V("model", g.embeddingModel))
	}

	return resp.Embeddings[0].Values, nil
}
