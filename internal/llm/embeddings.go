package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// Embedder vectorizes text for similarity search.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embed generates an embedding for the given text.
func (o *OpenAI) Embed(ctx context.Context, model, text string) ([]float32, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.embed")
	defer span.End()

	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("llm embed: empty embedding response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
