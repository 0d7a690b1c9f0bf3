package embed

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	json "github.com/alpkeskin/gotoon"

	"github.com/openmemory/engine/internal/model"
)

// AWSProvider embeds via Amazon Bedrock's Titan embedding models.
// Grounded in HTTP-client shape on the teacher's
// pkg/memory/embeeding_claude.go (bearer-auth, JSON body, configurable
// endpoint), adapted from that file's Voyage AI proxy to Bedrock since
// spec.md's provider set names "aws", not "claude".
type AWSProvider struct {
	client *bedrockruntime.Client
	model  string
}

// NewAWSProvider builds a provider from the process's standard AWS
// credential chain and OPENMEMORY_EMBED_MODEL (default
// amazon.titan-embed-text-v2:0).
func NewAWSProvider(ctx context.Context) (*AWSProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	m := os.Getenv("OPENMEMORY_EMBED_MODEL")
	if m == "" {
		m = "amazon.titan-embed-text-v2:0"
	}
	return &AWSProvider{client: bedrockruntime.NewFromConfig(cfg), model: m}, nil
}

func (p *AWSProvider) Name() string { return "aws" }

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *AWSProvider) Embed(ctx context.Context, text string, _ model.Sector, _ int) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("aws embed request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("aws invoke model: %w", err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("aws embed response: %w", err)
	}
	return resp.Embedding, nil
}
