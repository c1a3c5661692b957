package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/internal/observability"
)

// TitanEmbedder generates text embeddings with the Titan embedding model.
type TitanEmbedder struct {
	client    ModelClient
	modelID   string
	dimension int
}

// NewTitanEmbedder creates an embedder for the given embedding model id.
// An empty modelID selects DefaultEmbeddingModelID.
func NewTitanEmbedder(client ModelClient, modelID string) *TitanEmbedder {
	if modelID == "" {
		modelID = DefaultEmbeddingModelID
	}
	return &TitanEmbedder{
		client:    client,
		modelID:   modelID,
		dimension: 1536,
	}
}

// Dimension returns the embedding vector dimension.
func (e *TitanEmbedder) Dimension() int {
	return e.dimension
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// GenerateEmbedding embeds text into a vector.
func (e *TitanEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	start := time.Now()
	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	observability.RecordModelInvoke(time.Since(start), err == nil)
	if err != nil {
		log.Error().Err(err).Str("model", e.modelID).Msg("Embedding invocation failed")
		return nil, WrapProviderError(err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response for model %s contained no vector", e.modelID)
	}
	return resp.Embedding, nil
}
