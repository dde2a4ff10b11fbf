// pkg/registry/registry.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"convocore/internal/catalog"
	domainerrors "convocore/internal/common/errors"
	"convocore/internal/common/validation"
)

// LoadSeed reads and validates a seed registry file. A file that fails schema
// validation is rejected wholesale; a partially valid catalog is worse than
// none.
func LoadSeed(path string) (*SeedRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed registry: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(seedSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validate seed registry: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("invalid seed registry: %s", strings.Join(issues, "; "))
	}

	var reg SeedRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode seed registry: %w", err)
	}

	// Contact formats are outside what the schema can express cleanly.
	for i := range reg.Tenants {
		esc := reg.Tenants[i].Tenant.Escalation
		id := reg.Tenants[i].Tenant.ID
		if esc.AgentEmail != "" && !validation.ValidateEmail(esc.AgentEmail) {
			return nil, fmt.Errorf("invalid seed registry: tenant %s has malformed agent email %q", id, esc.AgentEmail)
		}
		if esc.AgentPhone != "" && !validation.ValidatePhone(esc.AgentPhone) {
			return nil, fmt.Errorf("invalid seed registry: tenant %s has malformed agent phone %q", id, esc.AgentPhone)
		}
	}
	return &reg, nil
}

// Store serves seed registry content through the catalog Store interface, so
// development setups run the same resolution path as production.
type Store struct {
	snapshots map[string]*catalog.Snapshot
}

var _ catalog.Store = (*Store)(nil)

func NewStore(reg *SeedRegistry) *Store {
	snapshots := make(map[string]*catalog.Snapshot, len(reg.Tenants))
	for i := range reg.Tenants {
		seed := &reg.Tenants[i]
		snapshot := &catalog.Snapshot{Tenant: &seed.Tenant}
		for j := range seed.Intents {
			def := &seed.Intents[j]
			if def.TenantID == "" {
				def.TenantID = seed.Tenant.ID
			}
			snapshot.Intents = append(snapshot.Intents, def)
		}
		snapshots[seed.Tenant.ID] = snapshot
	}
	return &Store{snapshots: snapshots}
}

func (s *Store) GetSnapshot(ctx context.Context, tenantID string) (*catalog.Snapshot, error) {
	snapshot, ok := s.snapshots[tenantID]
	if !ok || !snapshot.Tenant.Active {
		return nil, domainerrors.NewUnknownTenantError(tenantID)
	}
	return snapshot, nil
}
