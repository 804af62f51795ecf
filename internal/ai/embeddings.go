package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"cv-rag-platform/internal/config"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// NewEmbedder builds the embedder for cfg.EmbeddingsProvider. Default
// provider is Google Generative AI (text-embedding-004).
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	guard := NewGuard("embeddings", EmbeddingLimits(cfg.LLMTier))

	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		return &googleEmbedder{client: client, model: cfg.GoogleEmbeddingsModel, guard: guard}, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		return &openAIEmbedder{
			client:     openai.NewClientWithConfig(openAIConfig(cfg)),
			model:      cfg.OpenAIEmbeddingsModel,
			dimensions: cfg.VectorDimensions,
			guard:      guard,
		}, nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

func openAIConfig(cfg *config.Config) openai.ClientConfig {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	return oc
}

type googleEmbedder struct {
	client *genai.Client
	model  string
	guard  *Guard
}

func (e *googleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("embeddings").Start(ctx, "google.embed_content")
	defer span.End()
	span.SetAttributes(attribute.String("embeddings.model", e.model), attribute.Int("embeddings.chars", len(text)))

	result, err := e.guard.Do(ctx, estimateTokens(text), func(ctx context.Context) (interface{}, error) {
		resp, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.([]float32), nil
}

func (e *googleEmbedder) Close() error {
	return e.client.Close()
}

type openAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	guard      *Guard
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("embeddings").Start(ctx, "openai.create_embeddings")
	defer span.End()
	span.SetAttributes(attribute.String("embeddings.model", e.model), attribute.Int("embeddings.chars", len(text)))

	result, err := e.guard.Do(ctx, estimateTokens(text), func(ctx context.Context) (interface{}, error) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dimensions,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result.([]float32), nil
}

func (e *openAIEmbedder) Close() error {
	return nil
}
