// internal/provider/registry.go
package provider

import (
	"sync"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

// Registry maps the binding names carried in tenant configuration to concrete
// gateway implementations. Registration happens at startup; lookups are
// read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	ai        map[string]AIProvider
	data      map[string]DataSource
	messaging map[string]MessagingProvider
}

func NewRegistry() *Registry {
	return &Registry{
		ai:        make(map[string]AIProvider),
		data:      make(map[string]DataSource),
		messaging: make(map[string]MessagingProvider),
	}
}

func (r *Registry) RegisterAI(name string, p AIProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ai[name] = p
}

func (r *Registry) RegisterData(name string, p DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = p
}

func (r *Registry) RegisterMessaging(name string, p MessagingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messaging[name] = p
}

// ResolveAI returns the AI gateway bound for a tenant.
func (r *Registry) ResolveAI(bindings models.ProviderBindings) (AIProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ai[bindings.AI]
	if !ok {
		return nil, domainerrors.NewProviderUnavailableError("ai:"+bindings.AI, nil)
	}
	return p, nil
}

// ResolveData returns the data gateway bound for a tenant.
func (r *Registry) ResolveData(bindings models.ProviderBindings) (DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[bindings.Data]
	if !ok {
		return nil, domainerrors.NewProviderUnavailableError("data:"+bindings.Data, nil)
	}
	return p, nil
}

// ResolveMessaging returns the messaging gateway bound for a tenant.
func (r *Registry) ResolveMessaging(bindings models.ProviderBindings) (MessagingProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.messaging[bindings.Messaging]
	if !ok {
		return nil, domainerrors.NewProviderUnavailableError("messaging:"+bindings.Messaging, nil)
	}
	return p, nil
}
