package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	genai "github.com/google/generative-ai-go/genai"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

var _ Embedder = (*GeminiClient)(nil)

// Embed issues one batch embedding request for texts.
func (gc *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.embedding_model", gc.embeddingModel),
	)

	ctx, cancel := gc.withTimeout(ctx)
	defer cancel()

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.embeddingModel)
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}
		return em.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, mapBreakerError(err)
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
