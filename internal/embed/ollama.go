package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"

	"github.com/openmemory/engine/internal/model"
)

// OllamaProvider embeds via a local or remote Ollama server. Grounded
// on the teacher's pkg/memory/embeeding_ollama.go OllamaEmbedder.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider builds a provider against endpoint (falls back to
// OLLAMA_HOST, then http://localhost:11434) and OPENMEMORY_EMBED_MODEL
// (default nomic-embed-text).
func NewOllamaProvider(endpoint string) (*OllamaProvider, error) {
	if endpoint == "" {
		endpoint = os.Getenv("OLLAMA_HOST")
	}
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("embed: invalid ollama endpoint %q: %w", endpoint, err)
	}
	m := os.Getenv("OPENMEMORY_EMBED_MODEL")
	if m == "" {
		m = "nomic-embed-text"
	}
	return &OllamaProvider{client: api.NewClient(base, http.DefaultClient), model: m}, nil
}

// LocalProvider is the spec's "local" provider: self-hosted weights
// reached through the same Ollama wire protocol but addressed as a
// distinct provider name and defaulting to a loopback-only endpoint
// rather than OLLAMA_HOST.
type LocalProvider struct {
	*OllamaProvider
}

// NewLocalProvider builds a LocalProvider against endpoint (default
// http://127.0.0.1:11434).
func NewLocalProvider(endpoint string) (*LocalProvider, error) {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:11434"
	}
	p, err := NewOllamaProvider(endpoint)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{OllamaProvider: p}, nil
}

func (p *LocalProvider) Name() string { return "local" }

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Embed(ctx context.Context, text string, _ model.Sector, _ int) ([]float32, error) {
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
