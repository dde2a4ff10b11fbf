// internal/provider/provider.go
package provider

import (
	"context"

	"convocore/internal/models"
)

// GenerateRequest asks an AI gateway for a conversational reply.
type GenerateRequest struct {
	TenantID string        `json:"tenantId"`
	Intent   string        `json:"intent,omitempty"`
	Message  string        `json:"message"`
	History  []models.Turn `json:"history,omitempty"`
	Context  interface{}   `json:"context,omitempty"` // fulfillment data woven into the prompt
}

// GenerateResponse is a gateway reply. Empty text is treated as an invalid
// response upstream.
type GenerateResponse struct {
	Text string `json:"text"`
}

// AIProvider generates replies and embeds text for semantic scoring.
// Implementations must honor ctx cancellation; the flow manager enforces
// per-call timeouts.
type AIProvider interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// QueryRequest asks a data gateway for business facts backing a fulfillment.
type QueryRequest struct {
	TenantID  string            `json:"tenantId"`
	QueryType string            `json:"queryType"`
	Params    map[string]string `json:"params,omitempty"` // collected slot values
}

// QueryResult carries whatever shape the tenant's data source returns.
type QueryResult struct {
	Data     interface{} `json:"data"`
	RowCount int         `json:"rowCount"`
}

// DataSource answers structured queries against a tenant's business data.
type DataSource interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResult, error)
}

// MessagingProvider delivers outbound replies to the user's channel.
type MessagingProvider interface {
	Send(ctx context.Context, msg *models.OutboundMessage) error
}
