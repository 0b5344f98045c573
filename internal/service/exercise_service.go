package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/embedding"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	log "github.com/sirupsen/logrus"
)

// --- Error Definitions ---
var (
	ErrExerciseNotFound    = errors.New("exercise not found")
	ErrValidationFailed    = errors.New("exercise query validation failed")
	ErrRetrievalInitFailed = errors.New("exercise retrieval initialization failed")
)

// Defaults applied when RetrievalOptions leaves a field empty.
const (
	DefaultBrowseLimit      = 20
	defaultBuildBatchSize   = 64
	defaultBuildConcurrency = 4
)

// DefaultFullGymSentinels are equipment values meaning "no equipment restriction".
var DefaultFullGymSentinels = []string{"专业健身房", "full_gym", "gym"}

// DefaultEquipmentAliases map profile equipment values that name no catalog
// equipment tag onto one that does.
var DefaultEquipmentAliases = map[string]string{
	"home":    "bodyweight",
	"minimal": "bodyweight",
}

// --- Service Interface ---

// RetrievalService answers exercise queries against the catalog and its
// vector index. Search and the browse helpers are ranked and bounded;
// GetByMuscle and GetAll are exhaustive scans of the catalog.
type RetrievalService interface {
	Search(ctx context.Context, query string, n int, filter domain.ExerciseFilter) ([]domain.Exercise, error)
	SearchScored(ctx context.Context, query string, n int, filter domain.ExerciseFilter) ([]domain.ScoredExercise, error)
	GetByCategory(ctx context.Context, category string) ([]domain.Exercise, error)
	GetByEquipment(ctx context.Context, equipment string) ([]domain.Exercise, error)
	GetByMuscle(ctx context.Context, muscle string) ([]domain.Exercise, error)
	Recommend(ctx context.Context, goal, equipment, difficulty string, n int) ([]domain.Exercise, error)
	GetAll(ctx context.Context) ([]domain.Exercise, error)
	GetDetails(ctx context.Context, name string) (*domain.Exercise, error)
	// Rebuild drops the index and embeds the whole catalog again.
	Rebuild(ctx context.Context) error
	Stats(ctx context.Context) (IndexStats, error)
}

// IndexStats describes the state of the index for health checks and tools.
type IndexStats struct {
	CatalogSize int    `json:"catalog_size"`
	IndexSize   int    `json:"index_size"`
	Fingerprint string `json:"fingerprint"`
	Model       string `json:"model"`
}

// RetrievalOptions tunes a RetrievalService.
type RetrievalOptions struct {
	BrowseLimit      int
	FullGymSentinels []string
	EquipmentAliases map[string]string
	BuildBatchSize   int
	BuildConcurrency int
	Metrics          *metrics.Metrics
}

func (o RetrievalOptions) withDefaults() RetrievalOptions {
	if o.BrowseLimit <= 0 {
		o.BrowseLimit = DefaultBrowseLimit
	}
	if len(o.FullGymSentinels) == 0 {
		o.FullGymSentinels = DefaultFullGymSentinels
	}
	if o.EquipmentAliases == nil {
		o.EquipmentAliases = DefaultEquipmentAliases
	}
	if o.BuildBatchSize <= 0 {
		o.BuildBatchSize = defaultBuildBatchSize
	}
	if o.BuildConcurrency <= 0 {
		o.BuildConcurrency = defaultBuildConcurrency
	}
	return o
}

// --- Service Implementation ---

// retrievalService implements the RetrievalService interface.
type retrievalService struct {
	catalog  repository.CatalogRepository
	index    repository.VectorIndex
	embedder embedding.Provider
	opts     RetrievalOptions
	metrics  *metrics.Metrics
}

// NewRetrievalService loads the catalog and makes sure the index holds a
// vector for every record, building it when it is empty or stale.
func NewRetrievalService(ctx context.Context, catalog repository.CatalogRepository, index repository.VectorIndex, embedder embedding.Provider, opts RetrievalOptions) (RetrievalService, error) {
	opts = opts.withDefaults()
	s := &retrievalService{
		catalog:  catalog,
		index:    index,
		embedder: embedder,
		opts:     opts,
		metrics:  opts.Metrics,
	}
	if err := s.ensureIndex(ctx, false); err != nil {
		return nil, err
	}
	return s, nil
}

// Search embeds the query, asks the index for the n nearest entries that pass
// the filter and hydrates them from the catalog.
func (s *retrievalService) Search(ctx context.Context, query string, n int, filter domain.ExerciseFilter) (exercises []domain.Exercise, err error) {
	defer func(start time.Time) { s.metrics.ObserveRetrieval("search", start, err) }(time.Now())

	scored, err := s.searchScored(ctx, query, n, filter)
	if err != nil {
		return nil, err
	}
	exercises = make([]domain.Exercise, len(scored))
	for i := range scored {
		exercises[i] = scored[i].Exercise
	}
	return exercises, nil
}

func (s *retrievalService) SearchScored(ctx context.Context, query string, n int, filter domain.ExerciseFilter) (scored []domain.ScoredExercise, err error) {
	defer func(start time.Time) { s.metrics.ObserveRetrieval("search", start, err) }(time.Now())
	return s.searchScored(ctx, query, n, filter)
}

func (s *retrievalService) searchScored(ctx context.Context, query string, n int, filter domain.ExerciseFilter) ([]domain.ScoredExercise, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query text is empty", ErrValidationFailed)
	}
	if strings.IndexFunc(query, isWordRune) < 0 {
		return nil, fmt.Errorf("%w: query %q has no letters or digits", ErrValidationFailed, query)
	}
	if n <= 0 {
		return []domain.ScoredExercise{}, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", embedding.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}

	hits, err := s.index.Query(ctx, vector, n, filter)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	log.WithFields(log.Fields{
		"query":    query,
		"n":        n,
		"filtered": !filter.IsZero(),
		"hits":     len(hits),
	}).Debug("Exercise search")

	results := make([]domain.ScoredExercise, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.ID]; dup {
			continue
		}
		seen[hit.ID] = struct{}{}

		ex, err := s.catalog.GetByID(ctx, hit.ID)
		if errors.Is(err, repository.ErrNotFound) {
			log.WithField("exercise_id", hit.ID).Warn("Index entry has no catalog record, skipping")
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredExercise{Exercise: *ex, Distance: hit.Distance})
	}
	return results, nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// GetByCategory approximates "every exercise in category" with a filtered
// search bounded by the browse limit.
func (s *retrievalService) GetByCategory(ctx context.Context, category string) ([]domain.Exercise, error) {
	return s.Search(ctx, categoryQuery(category), s.opts.BrowseLimit, domain.ExerciseFilter{Category: category})
}

func (s *retrievalService) GetByEquipment(ctx context.Context, equipment string) ([]domain.Exercise, error) {
	return s.Search(ctx, equipmentQuery(equipment), s.opts.BrowseLimit, domain.ExerciseFilter{Equipment: equipment})
}

// GetByMuscle bypasses the index: target muscles are multi-valued and are
// matched exhaustively in the catalog.
func (s *retrievalService) GetByMuscle(ctx context.Context, muscle string) (exercises []domain.Exercise, err error) {
	defer func(start time.Time) { s.metrics.ObserveRetrieval("muscle", start, err) }(time.Now())
	return s.catalog.GetByMuscle(ctx, muscle)
}

// Recommend searches with a phrase built from the goal, equipment and
// difficulty. Equipment is a hard filter unless it is a full-gym sentinel;
// aliased values filter on the catalog tag they map to.
func (s *retrievalService) Recommend(ctx context.Context, goal, equipment, difficulty string, n int) ([]domain.Exercise, error) {
	var filter domain.ExerciseFilter
	if equipment != "" && !s.isFullGym(equipment) {
		filter.Equipment = equipment
		if tag, ok := s.opts.EquipmentAliases[equipment]; ok {
			filter.Equipment = tag
		}
	}
	return s.Search(ctx, recommendQuery(goal, equipment, difficulty), n, filter)
}

func (s *retrievalService) isFullGym(equipment string) bool {
	for _, sentinel := range s.opts.FullGymSentinels {
		if equipment == sentinel {
			return true
		}
	}
	return false
}

func (s *retrievalService) GetAll(ctx context.Context) (exercises []domain.Exercise, err error) {
	defer func(start time.Time) { s.metrics.ObserveRetrieval("all", start, err) }(time.Now())
	return s.catalog.LoadAll(ctx)
}

// GetDetails looks an exercise up by name or english name.
func (s *retrievalService) GetDetails(ctx context.Context, name string) (exercise *domain.Exercise, err error) {
	defer func(start time.Time) { s.metrics.ObserveRetrieval("details", start, err) }(time.Now())

	exercise, err = s.catalog.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return exercise, nil
}

func (s *retrievalService) Rebuild(ctx context.Context) error {
	return s.ensureIndex(ctx, true)
}

func (s *retrievalService) Stats(ctx context.Context) (IndexStats, error) {
	exercises, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return IndexStats{}, err
	}
	count, err := s.index.Count(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("count vector index: %w", err)
	}
	fp, err := s.expectedFingerprint(ctx)
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{
		CatalogSize: len(exercises),
		IndexSize:   count,
		Fingerprint: fp,
		Model:       s.embedder.Model(),
	}, nil
}
