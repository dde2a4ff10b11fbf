package models

// SignalType discriminates how a matching signal is evaluated against an
// inbound message.
type SignalType string

const (
	SignalKeyword  SignalType = "keyword"
	SignalPattern  SignalType = "pattern"
	SignalSemantic SignalType = "semantic-reference"
)

// Signal is one weighted matching rule inside an intent definition.
type Signal struct {
	Type      SignalType `json:"type"`
	Value     string     `json:"value"`
	Weight    float64    `json:"weight"`
	Embedding []float64  `json:"embedding,omitempty"` // reference vector for semantic signals
}

// SlotType constrains what a slot answer may look like.
type SlotType string

const (
	SlotText   SlotType = "text"
	SlotNumber SlotType = "number"
	SlotOption SlotType = "option"
)

// Slot is a named data value an intent needs before it can be fulfilled.
type Slot struct {
	Name    string   `json:"name"`
	Prompt  string   `json:"prompt"`
	Type    SlotType `json:"type"`
	Options []string `json:"options,omitempty"` // allowed values for option slots
}

// FulfillmentPolicy decides which gateways run once all required slots are
// filled.
type FulfillmentPolicy struct {
	UseDataSource bool   `json:"useDataSource"`
	QueryType     string `json:"queryType,omitempty"`
	UseAI         bool   `json:"useAI"`
	ReplyTemplate string `json:"replyTemplate,omitempty"`
}

// IntentDefinition is a tenant-scoped recognizable user goal. Definitions are
// immutable once published to a conversation in progress; edits bump Version.
type IntentDefinition struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenantId"`
	Label         string            `json:"label"`
	Version       int               `json:"version"`
	Signals       []Signal          `json:"signals"`
	PriorityTier  int               `json:"priorityTier"` // lower tier wins ties
	RequiredSlots []Slot            `json:"requiredSlots,omitempty"`
	Escalate      bool              `json:"escalate"`
	Fulfillment   FulfillmentPolicy `json:"fulfillment"`
}

// SlotByName returns the declared slot with the given name.
func (d *IntentDefinition) SlotByName(name string) (Slot, bool) {
	for _, s := range d.RequiredSlots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// UnmetSlots returns the required slots not yet present in filled, preserving
// declaration order.
func (d *IntentDefinition) UnmetSlots(filled map[string]string) []Slot {
	var unmet []Slot
	for _, s := range d.RequiredSlots {
		if _, ok := filled[s.Name]; !ok {
			unmet = append(unmet, s)
		}
	}
	return unmet
}
