package embed

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openmemory/engine/internal/model"
)

// OpenAIProvider embeds via OpenAI's embeddings endpoint. Grounded on
// the teacher's core/memory/embed/openai.go OpenAIEmbedder.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider from OPENAI_API_KEY/OPENAI_KEY
// and OPENMEMORY_EMBED_MODEL (default text-embedding-3-small).
func NewOpenAIProvider() (*OpenAIProvider, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		key = os.Getenv("OPENAI_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("embed: openai provider requires OPENAI_API_KEY")
	}
	m := os.Getenv("OPENMEMORY_EMBED_MODEL")
	if m == "" {
		m = "text-embedding-3-small"
	}
	return &OpenAIProvider{client: openai.NewClient(key), model: m}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Embed(ctx context.Context, text string, _ model.Sector, dim int) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: dim,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}
