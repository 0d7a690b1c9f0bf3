package embed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/openmemory/engine/internal/model"
)

// GeminiProvider embeds via Google's Generative AI API. Grounded on
// the teacher's pkg/memory/embeeding_vertex.go VertexAIEmbedder.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a provider from GEMINI_API_KEY/GOOGLE_API_KEY
// and OPENMEMORY_EMBED_MODEL (default text-embedding-004).
func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("embed: gemini provider requires GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	m := os.Getenv("OPENMEMORY_EMBED_MODEL")
	if m == "" {
		m = "text-embedding-004"
	}
	return &GeminiProvider{client: client, model: m}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Embed(ctx context.Context, text string, _ model.Sector, _ int) ([]float32, error) {
	em := p.client.EmbeddingModel(p.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("gemini embed: empty response")
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying genai client.
func (p *GeminiProvider) Close() error { return p.client.Close() }
