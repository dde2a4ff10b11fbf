package models

import (
	"fmt"
	"time"
)

// FlowState is the deterministic per-conversation state machine position.
type FlowState string

const (
	StateIdle             FlowState = "idle"
	StateIntentPending    FlowState = "intent_pending"
	StateSlotCollection   FlowState = "slot_collection"
	StateAwaitingProvider FlowState = "awaiting_provider"
	StateEscalated        FlowState = "escalated"
	StateClosed           FlowState = "closed"
)

// TurnRole labels who produced a remembered turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one remembered exchange entry inside a session's bounded memory.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSession is the durable per-(tenant, channel user) conversation
// state. All mutation happens through the flow manager; the struct carries an
// optimistic Version so concurrent writers can detect lost updates.
type ConversationSession struct {
	ID                  string            `json:"id"`
	TenantID            string            `json:"tenantId"`
	ChannelUserID       string            `json:"channelUserId"`
	State               FlowState         `json:"state"`
	ActiveIntentID      string            `json:"activeIntentId,omitempty"`
	ActiveIntentVersion int               `json:"activeIntentVersion,omitempty"`
	PendingSlot         string            `json:"pendingSlot,omitempty"`
	Slots               map[string]string `json:"slots,omitempty"`
	Memory              []Turn            `json:"memory,omitempty"`
	ClarifyCount        int               `json:"clarifyCount,omitempty"`
	Escalated           bool              `json:"escalated,omitempty"`
	Version             int64             `json:"version"`
	CreatedAt           time.Time         `json:"createdAt"`
	LastActivity        time.Time         `json:"lastActivity"`
}

// SessionKey builds the canonical storage key for a conversation.
func SessionKey(tenantID, channelUserID string) string {
	return fmt.Sprintf("session:%s:%s", tenantID, channelUserID)
}

// Key returns the session's canonical storage key.
func (s *ConversationSession) Key() string {
	return SessionKey(s.TenantID, s.ChannelUserID)
}

// Remember appends a turn to the bounded memory, evicting the oldest entries
// past the window. A window of zero keeps no memory.
func (s *ConversationSession) Remember(role TurnRole, text string, window int, at time.Time) {
	if window <= 0 {
		return
	}
	s.Memory = append(s.Memory, Turn{Role: role, Text: text, Timestamp: at})
	if excess := len(s.Memory) - window; excess > 0 {
		s.Memory = s.Memory[excess:]
	}
}

// Expired reports whether the session's inactivity window has lapsed at the
// given instant.
func (s *ConversationSession) Expired(window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(s.LastActivity) > window
}

// ResetPursuit drops the active intent and any partially collected slots,
// e.g. on a topic switch. Memory and escalation status survive.
func (s *ConversationSession) ResetPursuit() {
	s.ActiveIntentID = ""
	s.ActiveIntentVersion = 0
	s.PendingSlot = ""
	s.Slots = nil
	s.ClarifyCount = 0
}

// NewSession returns a fresh idle session for a conversation key.
func NewSession(id, tenantID, channelUserID string, now time.Time) *ConversationSession {
	return &ConversationSession{
		ID:            id,
		TenantID:      tenantID,
		ChannelUserID: channelUserID,
		State:         StateIdle,
		CreatedAt:     now,
		LastActivity:  now,
	}
}
