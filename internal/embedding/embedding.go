// Package embedding turns text into vectors for the node index. Providers
// are the deterministic hash embedder, Ollama and OpenAI; New wraps the
// chosen one in a shared cache.
package embedding

import (
	"context"
	"errors"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

var (
	// ErrEmptyEmbedding is returned when a provider answers without a vector.
	ErrEmptyEmbedding = errors.New("embedding: provider returned no vector")
	// ErrDimensionMismatch is returned when a provider's vector length
	// disagrees with its configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")
)

// Embedder generates embedding vectors from text. Dims is the length every
// vector from Embed will have.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, aa, bb float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		aa += float64(x) * float64(x)
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return dot / math.Sqrt(aa*bb)
}
