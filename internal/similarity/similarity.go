// Package similarity provides the embedding provider consumed by the
// retrieval ranker: text-to-vector embedding plus vector similarity scoring.
// The provider is injected and replaceable; the engine treats an unavailable
// provider as a degradation signal, not a failure.
package similarity

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned when the embedding backend cannot be reached
// (network failure, open circuit breaker). Callers degrade to non-semantic
// ranking instead of failing.
var ErrUnavailable = errors.New("similarity provider unavailable")

// Provider produces dense vector embeddings for text.
type Provider interface {
	// Embed returns a fixed-length dense vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cosine computes cosine similarity between two vectors, rescaled from
// [-1, 1] to [0, 1]. Mismatched lengths or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
