// internal/catalog/store.go
package catalog

import (
	"context"

	"convocore/internal/models"
)

// Snapshot is one tenant's full resolution configuration, loaded atomically.
// A conversation turn scores against exactly one snapshot; a re-provision
// never bleeds into a turn already in flight.
type Snapshot struct {
	Tenant  *models.Tenant
	Intents []*models.IntentDefinition
}

// Store loads tenant catalogs from the backing configuration database.
type Store interface {
	GetSnapshot(ctx context.Context, tenantID string) (*Snapshot, error)
}
