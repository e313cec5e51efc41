package openai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	chatResp  openai.ChatCompletionResponse
	chatErr   error
	chatReq   openai.ChatCompletionRequest
	embedResp openai.EmbeddingResponse
	embedErr  error
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatReq = req
	return f.chatResp, f.chatErr
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return f.embedResp, f.embedErr
}

func TestGenerate(t *testing.T) {
	api := &fakeAPI{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: `{"answer": "42"}`}},
			},
		},
	}
	client := NewClientWithAPI(api, "test-model")

	out, err := client.Generate(context.Background(), "What is the answer?", GenerationConfig{
		Temperature:     0.0,
		TopP:            0.1,
		MaxOutputTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "42"}`, out)

	assert.Equal(t, "test-model", api.chatReq.Model)
	assert.Equal(t, float32(0.0), api.chatReq.Temperature)
	assert.Equal(t, 256, api.chatReq.MaxTokens)
	assert.Equal(t, 1, api.chatReq.N)
	require.Len(t, api.chatReq.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, api.chatReq.Messages[0].Role)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	client := NewClientWithAPI(&fakeAPI{}, "")
	_, err := client.Generate(context.Background(), "", GenerationConfig{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestGenerateAPIError(t *testing.T) {
	api := &fakeAPI{chatErr: errors.New("rate limited")}
	client := NewClientWithAPI(api, "")

	_, err := client.Generate(context.Background(), "prompt", GenerationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateNoChoices(t *testing.T) {
	client := NewClientWithAPI(&fakeAPI{}, "")
	_, err := client.Generate(context.Background(), "prompt", GenerationConfig{})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestGenerateEmbedding(t *testing.T) {
	embedding := make([]float32, DefaultEmbeddingDimensions)
	embedding[0] = 0.5
	api := &fakeAPI{
		embedResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: embedding}},
		},
	}
	client := NewClientWithAPI(api, "")

	got, err := client.GenerateEmbedding(context.Background(), "acme revenue")
	require.NoError(t, err)
	assert.Len(t, got, DefaultEmbeddingDimensions)
	assert.Equal(t, float32(0.5), got[0])
}

func TestGenerateEmbeddingWrongDimensions(t *testing.T) {
	api := &fakeAPI{
		embedResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{0.1, 0.2}}},
		},
	}
	client := NewClientWithAPI(api, "")

	_, err := client.GenerateEmbedding(context.Background(), "text")
	assert.Error(t, err)
}

func TestGenerateEmbeddingEmptyText(t *testing.T) {
	client := NewClientWithAPI(&fakeAPI{}, "")
	_, err := client.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClientFromEnv()
	assert.ErrorIs(t, err, ErrNoAPIKey)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	client, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, client)
}
