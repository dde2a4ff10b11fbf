// internal/session/store.go
package session

import (
	"context"
	"time"

	"convocore/internal/models"
)

// Store persists conversation sessions keyed by (tenant, channel user).
//
// Save enforces optimistic concurrency: it only writes when the stored
// version still matches the version the session was loaded with, and returns
// a SESSION_CONFLICT error otherwise. Load returns (nil, nil) when no
// session exists for the key.
type Store interface {
	Load(ctx context.Context, tenantID, channelUserID string) (*models.ConversationSession, error)
	Save(ctx context.Context, sess *models.ConversationSession, ttl time.Duration) error
	Delete(ctx context.Context, tenantID, channelUserID string) error
}
