// pkg/registry/schema.go
package registry

import "convocore/internal/models"

// SeedRegistry is a file-based tenant catalog used to bootstrap development
// and demo environments without a provisioning database.
type SeedRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Tenants     []SeedTenant `json:"tenants"`
}

type SeedTenant struct {
	Tenant  models.Tenant             `json:"tenant"`
	Intents []models.IntentDefinition `json:"intents"`
}

// seedSchema validates the seed file before it is trusted. Loose on policy
// shapes (those evolve), strict on the identifiers everything else keys off.
var seedSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"version", "tenants"},
	"properties": map[string]interface{}{
		"version":     map[string]interface{}{"type": "string"},
		"lastUpdated": map[string]interface{}{"type": "string"},
		"tenants": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"tenant", "intents"},
				"properties": map[string]interface{}{
					"tenant": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"id", "name", "businessType"},
						"properties": map[string]interface{}{
							"id":           map[string]interface{}{"type": "string", "minLength": 1},
							"name":         map[string]interface{}{"type": "string", "minLength": 1},
							"businessType": map[string]interface{}{"enum": []interface{}{"products", "services", "bookings"}},
						},
					},
					"intents": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":     "object",
							"required": []interface{}{"id", "label", "signals"},
							"properties": map[string]interface{}{
								"id":    map[string]interface{}{"type": "string", "minLength": 1},
								"label": map[string]interface{}{"type": "string", "minLength": 1},
								"signals": map[string]interface{}{
									"type":     "array",
									"minItems": 1,
									"items": map[string]interface{}{
										"type":     "object",
										"required": []interface{}{"type", "value", "weight"},
										"properties": map[string]interface{}{
											"type":   map[string]interface{}{"enum": []interface{}{"keyword", "pattern", "semantic-reference"}},
											"value":  map[string]interface{}{"type": "string", "minLength": 1},
											"weight": map[string]interface{}{"type": "number", "exclusiveMinimum": 0},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	},
}
