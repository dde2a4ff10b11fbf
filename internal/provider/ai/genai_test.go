// internal/provider/ai/genai_test.go
package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
	"convocore/internal/provider"
)

func TestGenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req provider.GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pizzashop", req.TenantID)
		assert.Len(t, req.History, 1)

		json.NewEncoder(w).Encode(map[string]string{"text": "Claro, tenemos mesas disponibles."})
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	resp, err := p.Generate(context.Background(), &provider.GenerateRequest{
		TenantID: "pizzashop",
		Message:  "tienen mesas?",
		History:  []models.Turn{{Role: models.RoleUser, Text: "hola"}},
	})

	assert.NoError(t, err)
	assert.Equal(t, "Claro, tenemos mesas disponibles.", resp.Text)
}

func TestGenAIGenerateEmptyTextIsInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "  "})
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := p.Generate(context.Background(), &provider.GenerateRequest{Message: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeInvalidResponse, domainerrors.CodeOf(err))
}

func TestGenAIGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, &provider.GenerateRequest{Message: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeProviderTimeout, domainerrors.CodeOf(err))
}

func TestGenAIGenerateRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := p.Generate(context.Background(), &provider.GenerateRequest{Message: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeRateLimited, domainerrors.CodeOf(err))
}

func TestGenAIGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := p.Generate(context.Background(), &provider.GenerateRequest{Message: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeProviderUnavailable, domainerrors.CodeOf(err))
}

func TestGenAIEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/embed", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float64{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	p := NewGenAIProvider(&GenAIConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	vec, err := p.Embed(context.Background(), "quiero reservar")

	assert.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}
