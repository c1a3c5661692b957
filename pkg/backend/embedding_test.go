package backend

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitanEmbedder(t *testing.T) {
	t.Run("generates embedding from response body", func(t *testing.T) {
		client := &fakeModelClient{
			invokeFn: func(params *bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
				assert.Equal(t, DefaultEmbeddingModelID, aws.ToString(params.ModelId))

				var req titanEmbedRequest
				require.NoError(t, json.Unmarshal(params.Body, &req))
				assert.Equal(t, "the dog is named Max", req.InputText)

				body, err := json.Marshal(titanEmbedResponse{
					Embedding:           []float32{0.1, 0.2, 0.3},
					InputTextTokenCount: 6,
				})
				require.NoError(t, err)
				return &bedrockruntime.InvokeModelOutput{Body: body}, nil
			},
		}
		embedder := NewTitanEmbedder(client, "")

		vec, err := embedder.GenerateEmbedding(context.Background(), "the dog is named Max")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
		assert.Equal(t, 1536, embedder.Dimension())
	})

	t.Run("empty vector is an error", func(t *testing.T) {
		client := &fakeModelClient{
			invokeFn: func(*bedrockruntime.InvokeModelInput) (*bedrockruntime.InvokeModelOutput, error) {
				return &bedrockruntime.InvokeModelOutput{Body: []byte(`{}`)}, nil
			},
		}
		embedder := NewTitanEmbedder(client, "custom-embed-model")

		_, err := embedder.GenerateEmbedding(context.Background(), "anything")
		assert.Error(t, err)
	})
}
