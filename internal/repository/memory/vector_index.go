// Package memory provides an in-process vector index. Entries live for the
// process lifetime; the index is rebuilt from the catalog on every cold start.
package memory

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"sync"
)

type entry struct {
	id       string
	vector   []float32
	metadata repository.EntryMetadata
	seq      int64
}

// VectorIndex implements repository.VectorIndex and repository.FingerprintStore.
type VectorIndex struct {
	mu          sync.RWMutex
	entries     []*entry
	byID        map[string]*entry
	nextSeq     int64
	fingerprint string
}

// NewVectorIndex creates an empty in-memory index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{byID: make(map[string]*entry)}
}

// Upsert inserts new entries and replaces existing ones in place, keeping
// their original insertion sequence.
func (ix *VectorIndex) Upsert(_ context.Context, entries ...repository.IndexEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			return errors.New("index entry ID is required")
		}
		if len(e.Vector) == 0 {
			return errors.New("index entry vector is empty")
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)

		if existing, ok := ix.byID[e.ID]; ok {
			existing.vector = vec
			existing.metadata = e.Metadata
			continue
		}
		stored := &entry{
			id:       e.ID,
			vector:   vec,
			metadata: e.Metadata,
			seq:      ix.nextSeq,
		}
		ix.nextSeq++
		ix.entries = append(ix.entries, stored)
		ix.byID[e.ID] = stored
	}
	return nil
}

func (ix *VectorIndex) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

// Query scans every entry that passes the filter and ranks by cosine distance.
func (ix *VectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.ExerciseFilter) ([]repository.IndexHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []repository.IndexHit{}, nil
	}

	ix.mu.RLock()
	candidates := make([]repository.Candidate, 0, len(ix.entries))
	for _, e := range ix.entries {
		if !filter.Matches(e.metadata.Category, e.metadata.Equipment, e.metadata.Difficulty) {
			continue
		}
		candidates = append(candidates, repository.Candidate{
			ID:       e.id,
			Distance: repository.CosineDistance(vector, e.vector),
			Seq:      e.seq,
		})
	}
	ix.mu.RUnlock()

	return repository.RankHits(candidates, k), nil
}

func (ix *VectorIndex) Reset(_ context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.byID = make(map[string]*entry)
	ix.nextSeq = 0
	ix.fingerprint = ""
	return nil
}

func (ix *VectorIndex) Fingerprint(_ context.Context) (string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.fingerprint, nil
}

func (ix *VectorIndex) SetFingerprint(_ context.Context, fingerprint string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.fingerprint = fingerprint
	return nil
}
