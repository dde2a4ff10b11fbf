// internal/intent/similarity.go
package intent

import "math"

// Embedder turns a message into a vector comparable with an intent's
// semantic reference vectors. Implementations typically call an AI gateway;
// the engine treats a nil Embedder as "semantic signals disabled".
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Cosine returns the cosine similarity of two vectors, clamped to [0,1].
// Mismatched or zero-length vectors score zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
