package repository

import (
	"math"
	"sort"
)

// CosineDistance returns 1 - cosine similarity of a and b, in [0, 2].
// Vectors of different length or with zero norm are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Candidate is a scored entry awaiting ranking.
type Candidate struct {
	ID       string
	Distance float64
	Seq      int64
}

// RankHits orders candidates by ascending distance, then by Seq, and keeps at
// most k of them.
func RankHits(candidates []Candidate, k int) []IndexHit {
	if k <= 0 || len(candidates) == 0 {
		return []IndexHit{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Seq < candidates[j].Seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]IndexHit, len(candidates))
	for i, c := range candidates {
		hits[i] = IndexHit{ID: c.ID, Distance: c.Distance}
	}
	return hits
}
