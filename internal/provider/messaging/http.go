// internal/provider/messaging/http.go
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	domainerrors "convocore/internal/common/errors"
	commonhttp "convocore/internal/common/http"
	"convocore/internal/models"
)

const httpProviderName = "http"

// HTTPConfig holds settings for a REST chat channel API.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPProvider delivers replies through a chat channel's REST API
// (WhatsApp-style business messaging endpoints).
type HTTPProvider struct {
	api *commonhttp.Client
}

func NewHTTPProvider(config *HTTPConfig) *HTTPProvider {
	return &HTTPProvider{
		api: commonhttp.NewClient(config.BaseURL, config.APIKey, config.Timeout),
	}
}

func (p *HTTPProvider) Send(ctx context.Context, msg *models.OutboundMessage) error {
	payload := map[string]interface{}{
		"to":   msg.ChannelUserID,
		"type": "text",
		"text": map[string]string{
			"body": msg.Text,
		},
	}

	resp, err := p.api.PostJSON(ctx, "/messages", payload)
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return domainerrors.NewProviderTimeoutError(httpProviderName)
	}
	if err != nil {
		return domainerrors.NewDeliveryFailedError(httpProviderName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domainerrors.NewRateLimitedError(httpProviderName)
	case resp.StatusCode >= 300:
		return domainerrors.NewDeliveryFailedError(httpProviderName, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
