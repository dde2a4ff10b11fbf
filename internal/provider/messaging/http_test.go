// internal/provider/messaging/http_test.go
package messaging

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
)

func TestHTTPSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer channel-key", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "user-1", payload["to"])
		assert.Equal(t, "Hola, bienvenido", payload["text"].(map[string]interface{})["body"])

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewHTTPProvider(&HTTPConfig{
		BaseURL: server.URL,
		APIKey:  "channel-key",
		Timeout: 5 * time.Second,
	})

	err := p.Send(context.Background(), &models.OutboundMessage{
		TenantID:      "pizzashop",
		ChannelUserID: "user-1",
		Text:          "Hola, bienvenido",
	})

	assert.NoError(t, err)
}

func TestHTTPSendDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProvider(&HTTPConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	err := p.Send(context.Background(), &models.OutboundMessage{ChannelUserID: "user-1", Text: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeDeliveryFailed, domainerrors.CodeOf(err))
}

func TestHTTPSendRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider(&HTTPConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	err := p.Send(context.Background(), &models.OutboundMessage{ChannelUserID: "user-1", Text: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeRateLimited, domainerrors.CodeOf(err))
}

func TestHTTPSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := NewHTTPProvider(&HTTPConfig{BaseURL: server.URL, Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Send(ctx, &models.OutboundMessage{ChannelUserID: "user-1", Text: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeProviderTimeout, domainerrors.CodeOf(err))
}
