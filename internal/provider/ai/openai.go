// internal/provider/ai/openai.go
package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
	"convocore/internal/provider"
)

const openAIProviderName = "openai"

// OpenAIConfig holds the OpenAI gateway settings.
type OpenAIConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	SystemPrompt   string
}

// OpenAIProvider generates replies and embeddings through the OpenAI API.
// Retries belong to the flow manager; each call here is a single attempt so
// the per-turn retry budget stays in one place.
type OpenAIProvider struct {
	client       *openai.Client
	chatModel    string
	embedModel   openai.EmbeddingModel
	systemPrompt string
}

func NewOpenAIProvider(config *OpenAIConfig) *OpenAIProvider {
	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	embedModel := config.EmbeddingModel
	if embedModel == "" {
		embedModel = openai.SmallEmbedding3
	}
	return &OpenAIProvider{
		client:       openai.NewClient(config.APIKey),
		chatModel:    chatModel,
		embedModel:   embedModel,
		systemPrompt: config.SystemPrompt,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if p.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.systemPrompt,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domainerrors.NewInvalidResponseError(openAIProviderName, "no completion choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, domainerrors.NewInvalidResponseError(openAIProviderName, "empty completion text")
	}
	return &provider.GenerateResponse{Text: text}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: p.embedModel,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, domainerrors.NewInvalidResponseError(openAIProviderName, "no embeddings returned")
	}

	embedding32 := resp.Data[0].Embedding
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64, nil
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domainerrors.NewProviderTimeoutError(openAIProviderName)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return domainerrors.NewRateLimitedError(openAIProviderName)
	}
	return domainerrors.NewProviderUnavailableError(openAIProviderName, err)
}
