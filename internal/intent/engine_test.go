// internal/intent/engine_test.go
package intent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"convocore/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func testPolicy() models.ScoringPolicy {
	return models.ScoringPolicy{
		MinThreshold:     0.35,
		AmbiguityMargin:  0.15,
		SessionBiasBoost: 0.1,
		TopCandidates:    3,
	}
}

func pizzaCatalog() []*models.IntentDefinition {
	return []*models.IntentDefinition{
		{
			ID:           "booking_intent",
			Label:        "reservar mesa",
			PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "reservar", Weight: 1},
				{Type: models.SignalKeyword, Value: "reservacion", Weight: 1},
				{Type: models.SignalKeyword, Value: "mesa", Weight: 0.5},
			},
		},
		{
			ID:           "availability_request",
			Label:        "consultar disponibilidad",
			PriorityTier: 4,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "disponible", Weight: 1},
				{Type: models.SignalKeyword, Value: "horario", Weight: 1},
				{Type: models.SignalKeyword, Value: "abierto", Weight: 0.8},
			},
		},
		{
			ID:           "info_request",
			Label:        "informacion del menu",
			PriorityTier: 5,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "menu", Weight: 1},
				{Type: models.SignalKeyword, Value: "precio", Weight: 1},
				{Type: models.SignalKeyword, Value: "cuanto cuesta", Weight: 1},
			},
		},
		{
			ID:           "human_handoff",
			Label:        "hablar con una persona",
			PriorityTier: 1,
			Escalate:     true,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "agente", Weight: 1},
				{Type: models.SignalKeyword, Value: "humano", Weight: 1},
				{Type: models.SignalKeyword, Value: "hablar con alguien", Weight: 1},
			},
		},
	}
}

func TestScoreResolvesBookingIntent(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))

	result := engine.Score("quiero reservar una mesa para dos", pizzaCatalog(), testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "booking_intent", result.Top().Intent.ID)
	assert.GreaterOrEqual(t, result.Top().Confidence, 0.35)
}

func TestScoreIsAccentInsensitive(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))

	plain := engine.Score("quiero hacer una reservacion", pizzaCatalog(), testPolicy(), "")
	accented := engine.Score("Quiero hacer una reservación", pizzaCatalog(), testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, plain.Decision)
	assert.Equal(t, models.DecisionResolved, accented.Decision)
	assert.Equal(t, plain.Top().Intent.ID, accented.Top().Intent.ID)
	assert.InDelta(t, plain.Top().Confidence, accented.Top().Confidence, 1e-9)
}

func TestScoreNoMatchReturnsNone(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))

	result := engine.Score("hola buenos dias", pizzaCatalog(), testPolicy(), "")

	assert.Equal(t, models.DecisionNone, result.Decision)
	assert.Empty(t, result.Candidates)
}

func TestScoreEmptyMessageReturnsNone(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))

	result := engine.Score("   ", pizzaCatalog(), testPolicy(), "")

	assert.Equal(t, models.DecisionNone, result.Decision)
}

func TestScoreAmbiguousWhenMarginTooSmall(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "intent_a", Label: "A", PriorityTier: 2,
			Signals: []models.Signal{{Type: models.SignalKeyword, Value: "pedido", Weight: 1}},
		},
		{
			ID: "intent_b", Label: "B", PriorityTier: 3,
			Signals: []models.Signal{{Type: models.SignalKeyword, Value: "pedido", Weight: 1}},
		},
	}

	result := engine.Score("quiero hacer un pedido", catalog, testPolicy(), "")

	assert.Equal(t, models.DecisionAmbiguous, result.Decision)
	assert.Len(t, result.Candidates, 2)
	// Equal confidence ties break on priority tier.
	assert.Equal(t, "intent_a", result.Top().Intent.ID)
}

func TestScoreWordBoundaryForSingleTokens(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "info_request", Label: "info", PriorityTier: 5,
			Signals: []models.Signal{{Type: models.SignalKeyword, Value: "menu", Weight: 1}},
		},
	}

	// "menudo" must not match the single-token signal "menu".
	result := engine.Score("a menudo vengo por aqui", catalog, testPolicy(), "")
	assert.Equal(t, models.DecisionNone, result.Decision)

	result = engine.Score("me mandas el menu", catalog, testPolicy(), "")
	assert.Equal(t, models.DecisionResolved, result.Decision)
}

func TestScorePhraseSubstringMatch(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))

	result := engine.Score("precio de la pizza, cuanto cuesta la grande", pizzaCatalog(), testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "info_request", result.Top().Intent.ID)
}

func TestScoreSessionBiasBreaksAmbiguity(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "intent_a", Label: "A", PriorityTier: 2,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "pedido", Weight: 1},
				{Type: models.SignalKeyword, Value: "factura", Weight: 1},
			},
		},
		{
			ID: "intent_b", Label: "B", PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "pedido", Weight: 1},
				{Type: models.SignalKeyword, Value: "entrega", Weight: 1},
			},
		},
	}
	policy := testPolicy()
	policy.SessionBiasBoost = 0.2

	result := engine.Score("otro pedido por favor", catalog, policy, "intent_b")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "intent_b", result.Top().Intent.ID)
}

func TestScorePatternSignal(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "order_status", Label: "estado del pedido", PriorityTier: 4,
			Signals: []models.Signal{
				{Type: models.SignalPattern, Value: `pedido\s+#?\d+`, Weight: 1},
			},
		},
	}

	result := engine.Score("donde va mi pedido #4521", catalog, testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "order_status", result.Top().Intent.ID)
}

func TestScoreInvalidPatternIsSkipped(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "broken", Label: "broken", PriorityTier: 4,
			Signals: []models.Signal{
				{Type: models.SignalPattern, Value: `([`, Weight: 1},
			},
		},
	}

	result := engine.Score("anything at all", catalog, testPolicy(), "")

	assert.Equal(t, models.DecisionNone, result.Decision)
}

func TestScoreDeterministicAcrossRuns(t *testing.T) {
	engine := NewEngine(nil, NewTestLogger(t))
	catalog := pizzaCatalog()
	message := "quiero reservar y ver el menu con precios"

	first := engine.Score(message, catalog, testPolicy(), "")
	for i := 0; i < 20; i++ {
		again := engine.Score(message, catalog, testPolicy(), "")
		assert.Equal(t, first.Decision, again.Decision)
		for j := range first.Candidates {
			assert.Equal(t, first.Candidates[j].Intent.ID, again.Candidates[j].Intent.ID)
			assert.InDelta(t, first.Candidates[j].Confidence, again.Candidates[j].Confidence, 1e-12)
		}
	}
}

type stubEmbedder struct {
	vec []float64
	err error
}

func (s *stubEmbedder) Embed(text string) ([]float64, error) {
	return s.vec, s.err
}

func TestScoreSemanticSignal(t *testing.T) {
	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "close_match", Label: "close", PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalSemantic, Value: "ref", Weight: 1, Embedding: []float64{1, 0}},
			},
		},
		{
			ID: "far_match", Label: "far", PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalSemantic, Value: "ref", Weight: 1, Embedding: []float64{0, 1}},
			},
		},
	}

	result := engine.Score("anything", catalog, testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "close_match", result.Top().Intent.ID)
	assert.InDelta(t, 1.0, result.Top().Confidence, 1e-9)
}

func TestScoreEmbedderFailureSkipsSemanticSignals(t *testing.T) {
	engine := NewEngine(&stubEmbedder{err: errors.New("provider down")}, NewTestLogger(t))
	catalog := []*models.IntentDefinition{
		{
			ID: "semantic_only", Label: "semantic", PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalSemantic, Value: "ref", Weight: 1, Embedding: []float64{1, 0}},
			},
		},
		{
			ID: "keyword_backed", Label: "keyword", PriorityTier: 3,
			Signals: []models.Signal{
				{Type: models.SignalKeyword, Value: "hola", Weight: 1},
			},
		},
	}

	result := engine.Score("hola", catalog, testPolicy(), "")

	assert.Equal(t, models.DecisionResolved, result.Decision)
	assert.Equal(t, "keyword_backed", result.Top().Intent.ID)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	// Opposed vectors clamp to zero rather than going negative.
	assert.Equal(t, 0.0, Cosine([]float64{1, 0}, []float64{-1, 0}))
	assert.Equal(t, 0.0, Cosine(nil, []float64{1}))
	assert.Equal(t, 0.0, Cosine([]float64{1, 2}, []float64{1}))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "reservacion manana", Normalize("  Reservación Mañana "))
	assert.Equal(t, []string{"cuanto", "cuesta"}, Tokenize(Normalize("¿Cuánto cuesta?")))
}
