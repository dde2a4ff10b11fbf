package models

// Decision is the outcome of scoring one message against a tenant catalog.
type Decision string

const (
	DecisionResolved  Decision = "resolved"
	DecisionAmbiguous Decision = "ambiguous"
	DecisionNone      Decision = "none"
)

// Candidate pairs an intent with its aggregated confidence in [0,1].
type Candidate struct {
	Intent     *IntentDefinition `json:"intent"`
	Confidence float64           `json:"confidence"`
}

// ScoringResult is the ranked output of the intent engine for a single
// inbound message. Ephemeral: computed per message, never persisted beyond
// the conversation log.
type ScoringResult struct {
	Candidates []Candidate `json:"candidates"` // sorted by confidence desc, then priority tier
	Decision   Decision    `json:"decision"`
}

// Top returns the highest-ranked candidate, or nil for an empty result.
func (r *ScoringResult) Top() *Candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Margin returns the confidence gap between the top two candidates. A single
// candidate has maximal margin.
func (r *ScoringResult) Margin() float64 {
	if len(r.Candidates) == 0 {
		return 0
	}
	if len(r.Candidates) == 1 {
		return r.Candidates[0].Confidence
	}
	return r.Candidates[0].Confidence - r.Candidates[1].Confidence
}
