// Package embedding maps text to fixed-length float vectors.
//
// The same Provider (and therefore the same model) must be used for
// building the exercise index and for embedding queries against it.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmbeddingUnavailable is returned when the provider fails, times out or
// returns an unusable vector. Callers never receive a zero vector instead.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Provider turns text into vectors.
type Provider interface {
	// Embed vectorizes a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch vectorizes texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model; it is part of the index fingerprint.
	Model() string
}

// l2normalize scales v to unit length in place. Zero vectors are left as is.
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// isZero reports whether every component of v is zero.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
