package catalog

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// jsonCatalogRepository implements repository.CatalogRepository over a JSON
// array of exercises fetched from an ObjectSource.
type jsonCatalogRepository struct {
	source storage.ObjectSource
	key    string

	mu          sync.RWMutex
	loaded      bool
	exercises   []domain.Exercise
	byID        map[string]int
	fingerprint string
}

// NewJSONCatalogRepository creates a catalog backed by the object stored under key.
// Nothing is read until the first call.
func NewJSONCatalogRepository(source storage.ObjectSource, key string) repository.CatalogRepository {
	return &jsonCatalogRepository{
		source: source,
		key:    key,
	}
}

// LoadAll returns every exercise in catalog order.
func (r *jsonCatalogRepository) LoadAll(ctx context.Context) ([]domain.Exercise, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Exercise, len(r.exercises))
	copy(out, r.exercises)
	return out, nil
}

// GetByID retrieves an exercise by its ID.
func (r *jsonCatalogRepository) GetByID(ctx context.Context, id string) (*domain.Exercise, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ex := r.exercises[pos]
	return &ex, nil
}

// GetByName retrieves the first exercise whose name or english_name equals name.
func (r *jsonCatalogRepository) GetByName(ctx context.Context, name string) (*domain.Exercise, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.exercises {
		if r.exercises[i].Name == name || r.exercises[i].EnglishName == name {
			ex := r.exercises[i]
			return &ex, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetByMuscle returns every exercise targeting muscle, in catalog order.
func (r *jsonCatalogRepository) GetByMuscle(ctx context.Context, muscle string) ([]domain.Exercise, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := []domain.Exercise{}
	for i := range r.exercises {
		if r.exercises[i].HasMuscle(muscle) {
			matches = append(matches, r.exercises[i])
		}
	}
	return matches, nil
}

// Fingerprint returns the blake2b-256 digest of the raw dataset.
func (r *jsonCatalogRepository) Fingerprint(ctx context.Context) (string, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingerprint, nil
}

// ensureLoaded reads the dataset once. A failed load is not cached.
func (r *jsonCatalogRepository) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	raw, err := r.source.Fetch(ctx, r.key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", repository.ErrDataUnavailable, r.source.Describe(r.key), err)
	}

	exercises, byID, err := parseCatalog(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", repository.ErrDataUnavailable, r.source.Describe(r.key), err)
	}

	sum := blake2b.Sum256(raw)
	r.exercises = exercises
	r.byID = byID
	r.fingerprint = hex.EncodeToString(sum[:])
	r.loaded = true

	log.WithFields(log.Fields{
		"source":         r.source.Describe(r.key),
		"exercise_count": len(exercises),
	}).Info("Exercise catalog loaded")
	return nil
}

// parseCatalog decodes and validates the whole dataset; any bad record
// rejects the entire load.
func parseCatalog(raw []byte) ([]domain.Exercise, map[string]int, error) {
	var exercises []domain.Exercise
	if err := json.Unmarshal(raw, &exercises); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}
	if exercises == nil {
		return nil, nil, fmt.Errorf("catalog is not a JSON array")
	}

	byID := make(map[string]int, len(exercises))
	for i := range exercises {
		ex := &exercises[i]
		if ex.ID == "" {
			return nil, nil, fmt.Errorf("exercise #%d has no id", i)
		}
		if ex.Name == "" && ex.EnglishName == "" {
			return nil, nil, fmt.Errorf("exercise %q has no name", ex.ID)
		}
		if _, dup := byID[ex.ID]; dup {
			return nil, nil, fmt.Errorf("duplicate exercise id %q", ex.ID)
		}
		byID[ex.ID] = i
	}
	return exercises, byID, nil
}
