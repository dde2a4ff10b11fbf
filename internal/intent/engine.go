// internal/intent/engine.go
package intent

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"convocore/internal/models"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Engine scores inbound messages against a tenant's intent catalog. Scoring
// is deterministic: the same message, catalog and policy always produce the
// same ranked result.
type Engine struct {
	embedder Embedder
	logger   Logger

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func NewEngine(embedder Embedder, log Logger) *Engine {
	return &Engine{
		embedder: embedder,
		logger:   log,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Score evaluates every catalog intent against the message and classifies the
// outcome under the tenant's scoring policy. activeIntentID biases scoring
// toward the intent the conversation is already pursuing; pass "" when the
// session has no active pursuit.
func (e *Engine) Score(message string, catalog []*models.IntentDefinition, policy models.ScoringPolicy, activeIntentID string) *models.ScoringResult {
	normalized := Normalize(message)
	tokens := Tokenize(normalized)

	var vec []float64
	if e.embedder != nil && hasSemanticSignals(catalog) {
		v, err := e.embedder.Embed(normalized)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("embedding unavailable, semantic signals skipped", map[string]interface{}{
					"error": err.Error(),
				})
			}
		} else {
			vec = v
		}
	}

	candidates := make([]models.Candidate, 0, len(catalog))
	for _, def := range catalog {
		confidence := e.scoreIntent(def, normalized, tokens, vec)
		if def.ID == activeIntentID && confidence > 0 {
			confidence += policy.SessionBiasBoost
			if confidence > 1 {
				confidence = 1
			}
		}
		if confidence > 0 {
			candidates = append(candidates, models.Candidate{Intent: def, Confidence: confidence})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if candidates[i].Intent.PriorityTier != candidates[j].Intent.PriorityTier {
			return candidates[i].Intent.PriorityTier < candidates[j].Intent.PriorityTier
		}
		return candidates[i].Intent.ID < candidates[j].Intent.ID
	})

	if max := policy.TopCandidates; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	result := &models.ScoringResult{Candidates: candidates}
	result.Decision = classify(result, policy)
	return result
}

func classify(r *models.ScoringResult, policy models.ScoringPolicy) models.Decision {
	top := r.Top()
	if top == nil || top.Confidence < policy.MinThreshold {
		return models.DecisionNone
	}
	if len(r.Candidates) > 1 && r.Margin() < policy.AmbiguityMargin {
		return models.DecisionAmbiguous
	}
	return models.DecisionResolved
}

// scoreIntent sums the weights of matched signals and normalizes by the
// intent's total signal weight, so confidence lands in [0,1] no matter how
// many signals a definition carries.
func (e *Engine) scoreIntent(def *models.IntentDefinition, normalized string, tokens []string, vec []float64) float64 {
	var matched, total float64
	for _, sig := range def.Signals {
		if sig.Weight <= 0 {
			continue
		}
		total += sig.Weight
		switch sig.Type {
		case models.SignalKeyword:
			if e.matchKeyword(sig.Value, normalized, tokens) {
				matched += sig.Weight
			}
		case models.SignalPattern:
			if re := e.pattern(sig.Value); re != nil && re.MatchString(normalized) {
				matched += sig.Weight
			}
		case models.SignalSemantic:
			if vec != nil {
				matched += sig.Weight * Cosine(vec, sig.Embedding)
			}
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// matchKeyword applies word-boundary matching for single tokens and substring
// matching for multi-word phrases, mirroring how people actually type short
// chat messages ("quiero una reservacion" should hit "reservacion" but
// "precios" must not hit "precio sin").
func (e *Engine) matchKeyword(value, normalized string, tokens []string) bool {
	keyword := Normalize(value)
	if keyword == "" {
		return false
	}
	if strings.ContainsRune(keyword, ' ') {
		return strings.Contains(normalized, keyword)
	}
	return containsWord(tokens, keyword)
}

func (e *Engine) pattern(expr string) *regexp.Regexp {
	e.mu.RLock()
	re, ok := e.patterns[expr]
	e.mu.RUnlock()
	if ok {
		return re
	}
	compiled, err := regexp.Compile(expr)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("invalid pattern signal skipped", map[string]interface{}{
				"pattern": expr,
				"error":   err.Error(),
			})
		}
		compiled = nil
	}
	e.mu.Lock()
	e.patterns[expr] = compiled
	e.mu.Unlock()
	return compiled
}

func hasSemanticSignals(catalog []*models.IntentDefinition) bool {
	for _, def := range catalog {
		for _, sig := range def.Signals {
			if sig.Type == models.SignalSemantic {
				return true
			}
		}
	}
	return false
}
