package models

import "time"

// InboundMessage is one normalized user message entering the pipeline,
// channel details already stripped by the ingress layer.
type InboundMessage struct {
	TenantID      string    `json:"tenantId"`
	ChannelUserID string    `json:"channelUserId"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

// Action is what the flow manager decided to do for a turn.
type Action string

const (
	ActionReply       Action = "reply"
	ActionRequestData Action = "request-data"
	ActionInvokeAI    Action = "invoke-ai"
	ActionEscalate    Action = "escalate"
	ActionClarify     Action = "clarify"
)

// FlowDecision is the pure output of one state transition: the next state
// plus the side effects the boundary must perform. No I/O happens while one
// is being computed.
type FlowDecision struct {
	Next       FlowState         `json:"next"`
	Action     Action            `json:"action"`
	Reply      string            `json:"reply,omitempty"`      // literal text for reply/clarify actions
	Candidates []string          `json:"candidates,omitempty"` // intent labels offered in a clarify prompt
	QueryType  string            `json:"queryType,omitempty"`  // data source query for request-data
	Notify     bool              `json:"notify,omitempty"`     // escalation should page a human agent
	Intent     *IntentDefinition `json:"-"`                    // definition driving the action, when one resolved
	Silent     bool              `json:"silent,omitempty"`     // suppress the automated reply entirely
}

// OutboundMessage is the reply handed to the messaging gateway.
type OutboundMessage struct {
	TenantID      string `json:"tenantId"`
	ChannelUserID string `json:"channelUserId"`
	Text          string `json:"text"`
}
