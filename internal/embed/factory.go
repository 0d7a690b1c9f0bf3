package embed

import (
	"context"
	"fmt"
)

// NewProvider builds the concrete Provider named by name, per the
// `provider` configuration key (§6): one of
// openai|gemini|aws|ollama|local|synthetic.
func NewProvider(ctx context.Context, name, endpoint string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider()
	case "gemini":
		return NewGeminiProvider(ctx)
	case "aws":
		return NewAWSProvider(ctx)
	case "ollama":
		return NewOllamaProvider(endpoint)
	case "local":
		return NewLocalProvider(endpoint)
	case "synthetic", "":
		return SyntheticProvider{}, nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", name)
	}
}
