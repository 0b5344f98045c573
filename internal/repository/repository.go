package repository

import (
	"alcyxob/fitness-coach/internal/domain"
	"context"
)

// Error constants for repository layer
var (
	ErrNotFound        = RepositoryError("not found")
	ErrDataUnavailable = RepositoryError("exercise data unavailable")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// CatalogRepository serves the canonical exercise dataset.
// Records are loaded wholesale and are read-only afterwards.
type CatalogRepository interface {
	// LoadAll returns every record in catalog order. It fails with
	// ErrDataUnavailable when the dataset cannot be read, parsed or validated.
	LoadAll(ctx context.Context) ([]domain.Exercise, error)
	GetByID(ctx context.Context, id string) (*domain.Exercise, error)
	// GetByName matches name OR english_name exactly; first match wins.
	GetByName(ctx context.Context, name string) (*domain.Exercise, error)
	// GetByMuscle is an exhaustive linear scan over target muscles.
	GetByMuscle(ctx context.Context, muscle string) ([]domain.Exercise, error)
	// Fingerprint is a digest of the raw dataset content.
	Fingerprint(ctx context.Context) (string, error)
}

// EntryMetadata is the denormalized copy of the filterable catalog fields.
type EntryMetadata struct {
	Category      string   `bson:"category" json:"category"`
	Equipment     string   `bson:"equipment" json:"equipment"`
	Difficulty    string   `bson:"difficulty" json:"difficulty"`
	TargetMuscles []string `bson:"target_muscles" json:"target_muscles"`
}

// MetadataFor mirrors the filterable fields of an exercise.
func MetadataFor(ex *domain.Exercise) EntryMetadata {
	muscles := make([]string, len(ex.TargetMuscles))
	copy(muscles, ex.TargetMuscles)
	return EntryMetadata{
		Category:      ex.Category,
		Equipment:     ex.Equipment,
		Difficulty:    ex.Difficulty,
		TargetMuscles: muscles,
	}
}

// IndexEntry is one (id, vector, metadata) tuple stored in a VectorIndex.
type IndexEntry struct {
	ID       string
	Vector   []float32
	Metadata EntryMetadata
	// Ordinal is the catalog position; persistent backends use it to keep
	// insertion order for tie-breaking.
	Ordinal int
}

// IndexHit is a single nearest-neighbour result.
type IndexHit struct {
	ID       string
	Distance float64
}

// VectorIndex stores exercise vectors and answers nearest-neighbour queries.
// All implementations use cosine distance.
type VectorIndex interface {
	// Upsert is idempotent by entry ID.
	Upsert(ctx context.Context, entries ...IndexEntry) error
	Count(ctx context.Context) (int, error)
	// Query returns at most k hits ordered by ascending distance, ties broken
	// by insertion order. Non-empty filter fields must match exactly.
	Query(ctx context.Context, vector []float32, k int, filter domain.ExerciseFilter) ([]IndexHit, error)
	// Reset drops every entry. Only used for full rebuilds.
	Reset(ctx context.Context) error
}

// FingerprintStore is implemented by indexes that can remember which catalog
// content they were built from.
type FingerprintStore interface {
	Fingerprint(ctx context.Context) (string, error)
	SetFingerprint(ctx context.Context, fingerprint string) error
}
