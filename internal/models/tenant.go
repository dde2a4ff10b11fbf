package models

// BusinessType classifies what a tenant sells.
type BusinessType string

const (
	BusinessProducts BusinessType = "products"
	BusinessServices BusinessType = "services"
	BusinessBookings BusinessType = "bookings"
)

// Tenant is one business on the platform. Tenants are created at onboarding,
// mutated only through configuration updates and deactivated rather than
// deleted.
type Tenant struct {
	ID             string           `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	BusinessType   BusinessType     `json:"businessType" db:"business_type"`
	CatalogVersion int              `json:"catalogVersion" db:"catalog_version"`
	Active         bool             `json:"active" db:"active"`
	Scoring        ScoringPolicy    `json:"scoring"`
	Retry          RetryPolicy      `json:"retry"`
	Escalation     EscalationPolicy `json:"escalation"`
	Bindings       ProviderBindings `json:"bindings"`
	Session        SessionPolicy    `json:"session"`
	Templates      map[string]string `json:"templates,omitempty"`
}

// ScoringPolicy holds the per-tenant intent resolution knobs.
type ScoringPolicy struct {
	MinThreshold     float64 `json:"minThreshold"`
	AmbiguityMargin  float64 `json:"ambiguityMargin"`
	SessionBiasBoost float64 `json:"sessionBiasBoost"`
	ClarifyLimit     int     `json:"clarifyLimit"`
	TopCandidates    int     `json:"topCandidates"`
}

// RetryPolicy caps provider retries within a single turn.
type RetryPolicy struct {
	MaxRetries  int `json:"maxRetries"`
	BackoffBase int `json:"backoffBase"` // milliseconds
}

// TimeoutBehavior decides what happens when a provider call times out past
// the retry budget.
type TimeoutBehavior string

const (
	TimeoutEscalate TimeoutBehavior = "escalate"
	TimeoutFallback TimeoutBehavior = "fallback"
)

// EscalationPolicy configures human handoff for a tenant.
type EscalationPolicy struct {
	OnProviderTimeout TimeoutBehavior `json:"onProviderTimeout"`
	AgentEmail        string          `json:"agentEmail,omitempty"`
	AgentPhone        string          `json:"agentPhone,omitempty"`
	NotifyAgent       bool            `json:"notifyAgent"`
}

// ProviderBindings names the concrete gateway implementation each capability
// resolves to for this tenant.
type ProviderBindings struct {
	AI        string `json:"ai"`
	Data      string `json:"data"`
	Messaging string `json:"messaging"`
}

// SessionPolicy overrides the global session defaults for a tenant. Zero
// values mean "use the global default".
type SessionPolicy struct {
	InactivityWindow int `json:"inactivityWindow"` // seconds
	MemoryWindow     int `json:"memoryWindow"`     // turns
}

// Template keys every tenant catalog may override.
const (
	TemplateGreeting    = "greeting"
	TemplateFallback    = "fallback"
	TemplateClarify     = "clarify"
	TemplateEscalated   = "escalated"
	TemplateUnavailable = "unavailable"
	TemplateClosed      = "closed"
)

// TemplateOr returns the tenant override for a template key or the given
// default text.
func (t *Tenant) TemplateOr(key, fallback string) string {
	if t.Templates != nil {
		if v, ok := t.Templates[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}
