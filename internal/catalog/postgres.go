// internal/catalog/postgres.go
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

// PostgresStore reads tenant and intent rows from the provisioning database.
// Policy and signal structures live in JSONB columns so the provisioning UI
// can evolve them without migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	tenant, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	intents, err := s.getIntents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Tenant: tenant, Intents: intents}, nil
}

func (s *PostgresStore) getTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var (
		t         models.Tenant
		scoring   []byte
		retry     []byte
		escal     []byte
		bindings  []byte
		sessPol   []byte
		templates []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, business_type, catalog_version, active,
		       scoring, retry, escalation, bindings, session, templates
		FROM tenants
		WHERE id = $1`, tenantID).Scan(
		&t.ID, &t.Name, &t.BusinessType, &t.CatalogVersion, &t.Active,
		&scoring, &retry, &escal, &bindings, &sessPol, &templates,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NewUnknownTenantError(tenantID)
	}
	if err != nil {
		return nil, domainerrors.NewCatalogLoadFailedError(tenantID, err)
	}
	if !t.Active {
		return nil, domainerrors.NewUnknownTenantError(tenantID)
	}

	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{scoring, &t.Scoring},
		{retry, &t.Retry},
		{escal, &t.Escalation},
		{bindings, &t.Bindings},
		{sessPol, &t.Session},
		{templates, &t.Templates},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, domainerrors.NewCatalogLoadFailedError(tenantID, fmt.Errorf("decode tenant column: %w", err))
		}
	}

	return &t, nil
}

func (s *PostgresStore) getIntents(ctx context.Context, tenantID string) ([]*models.IntentDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, label, version, priority_tier, escalate,
		       signals, required_slots, fulfillment
		FROM intents
		WHERE tenant_id = $1
		ORDER BY priority_tier, id`, tenantID)
	if err != nil {
		return nil, domainerrors.NewCatalogLoadFailedError(tenantID, err)
	}
	defer rows.Close()

	var intents []*models.IntentDefinition
	for rows.Next() {
		var (
			def         models.IntentDefinition
			signals     []byte
			slots       []byte
			fulfillment []byte
		)
		if err := rows.Scan(
			&def.ID, &def.TenantID, &def.Label, &def.Version, &def.PriorityTier, &def.Escalate,
			&signals, &slots, &fulfillment,
		); err != nil {
			return nil, domainerrors.NewCatalogLoadFailedError(tenantID, err)
		}
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &def.Signals); err != nil {
				return nil, domainerrors.NewCatalogLoadFailedError(tenantID, fmt.Errorf("decode signals for %s: %w", def.ID, err))
			}
		}
		if len(slots) > 0 {
			if err := json.Unmarshal(slots, &def.RequiredSlots); err != nil {
				return nil, domainerrors.NewCatalogLoadFailedError(tenantID, fmt.Errorf("decode slots for %s: %w", def.ID, err))
			}
		}
		if len(fulfillment) > 0 {
			if err := json.Unmarshal(fulfillment, &def.Fulfillment); err != nil {
				return nil, domainerrors.NewCatalogLoadFailedError(tenantID, fmt.Errorf("decode fulfillment for %s: %w", def.ID, err))
			}
		}
		intents = append(intents, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewCatalogLoadFailedError(tenantID, err)
	}

	return intents, nil
}
