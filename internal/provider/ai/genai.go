// internal/provider/ai/genai.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domainerrors "convocore/internal/common/errors"
	commonhttp "convocore/internal/common/http"
	"convocore/internal/provider"
)

const genAIProviderName = "genai"

// GenAIConfig holds settings for a tenant-hosted generation service.
type GenAIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GenAIProvider talks to a self-hosted generation service over plain HTTP.
// Tenants that cannot send conversation data to a public API bind this
// gateway instead of the OpenAI one.
type GenAIProvider struct {
	api *commonhttp.Client
}

func NewGenAIProvider(config *GenAIConfig) *GenAIProvider {
	return &GenAIProvider{
		api: commonhttp.NewClient(config.BaseURL, config.APIKey, config.Timeout),
	}
}

func (p *GenAIProvider) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := p.post(ctx, "/api/ai/generate", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, domainerrors.NewInvalidResponseError(genAIProviderName, "empty generation text")
	}
	return &provider.GenerateResponse{Text: out.Text}, nil
}

func (p *GenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	in := map[string]interface{}{"text": text}
	if err := p.post(ctx, "/api/ai/embed", in, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, domainerrors.NewInvalidResponseError(genAIProviderName, "empty embedding")
	}
	return out.Embedding, nil
}

func (p *GenAIProvider) post(ctx context.Context, path string, in interface{}, out interface{}) error {
	resp, err := p.api.PostJSON(ctx, path, in)
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return domainerrors.NewProviderTimeoutError(genAIProviderName)
	}
	if err != nil {
		return domainerrors.NewProviderUnavailableError(genAIProviderName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domainerrors.NewRateLimitedError(genAIProviderName)
	case resp.StatusCode != http.StatusOK:
		return domainerrors.NewProviderUnavailableError(genAIProviderName, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domainerrors.NewInvalidResponseError(genAIProviderName, "decode error: "+err.Error())
	}
	return nil
}
