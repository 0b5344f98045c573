package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/embedding"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/repository/catalog"
	"alcyxob/fitness-coach/internal/repository/memory"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureSize = 12

// countingProvider wraps a provider and counts calls.
type countingProvider struct {
	embedding.Provider
	batches atomic.Int32
	queries atomic.Int32
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.queries.Add(1)
	return c.Provider.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	return c.Provider.EmbedBatch(ctx, texts)
}

// failingProvider fails every call, like an unreachable embedding service.
type failingProvider struct {
	failQueries bool
	failBatches bool
	next        embedding.Provider
}

func (f *failingProvider) Model() string { return "failing" }

func (f *failingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failQueries {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingUnavailable, errors.New("connection refused"))
	}
	return f.next.Embed(ctx, text)
}

func (f *failingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failBatches {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingUnavailable, errors.New("connection refused"))
	}
	return f.next.EmbedBatch(ctx, texts)
}

func newCatalog() repository.CatalogRepository {
	return catalog.NewJSONCatalogRepository(storage.NewFileSource("testdata"), "exercises.json")
}

func newProvider() *countingProvider {
	return &countingProvider{Provider: embedding.NewHashingProvider(256)}
}

func newTestService(t *testing.T, opts RetrievalOptions) (RetrievalService, *memory.VectorIndex, *countingProvider) {
	t.Helper()
	index := memory.NewVectorIndex()
	provider := newProvider()
	svc, err := NewRetrievalService(context.Background(), newCatalog(), index, provider, opts)
	require.NoError(t, err)
	return svc, index, provider
}

func ids(exercises []domain.Exercise) []string {
	out := make([]string, len(exercises))
	for i, ex := range exercises {
		out[i] = ex.ID
	}
	return out
}

func TestNewRetrievalService_BuildsIndex(t *testing.T) {
	m := metrics.New()
	_, index, provider := newTestService(t, RetrievalOptions{BuildBatchSize: 5, BuildConcurrency: 2, Metrics: m})

	n, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixtureSize, n)
	assert.Equal(t, int32(3), provider.batches.Load(), "12 documents in batches of 5")

	fp, err := index.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Contains(t, fp, "hashing-256:")

	count, err := testutil.GatherAndCount(m.Registry(), "fitness_coach_index_builds_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewRetrievalService_SkipsFreshIndex(t *testing.T) {
	ctx := context.Background()
	_, index, _ := newTestService(t, RetrievalOptions{})

	provider := newProvider()
	_, err := NewRetrievalService(ctx, newCatalog(), index, provider, RetrievalOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(0), provider.batches.Load(), "index already matches the catalog")
	n, _ := index.Count(ctx)
	assert.Equal(t, fixtureSize, n)
}

func TestNewRetrievalService_RebuildsOnFingerprintChange(t *testing.T) {
	ctx := context.Background()
	_, index, _ := newTestService(t, RetrievalOptions{})
	require.NoError(t, index.SetFingerprint(ctx, "other-model:abc"))

	provider := newProvider()
	_, err := NewRetrievalService(ctx, newCatalog(), index, provider, RetrievalOptions{})
	require.NoError(t, err)

	assert.Positive(t, provider.batches.Load())
	n, _ := index.Count(ctx)
	assert.Equal(t, fixtureSize, n, "rebuild does not duplicate entries")
}

func TestNewRetrievalService_LegacyIndexWithoutFingerprint(t *testing.T) {
	ctx := context.Background()
	_, index, _ := newTestService(t, RetrievalOptions{})
	require.NoError(t, index.SetFingerprint(ctx, ""))

	provider := newProvider()
	_, err := NewRetrievalService(ctx, newCatalog(), index, provider, RetrievalOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(0), provider.batches.Load())
}

func TestNewRetrievalService_PartialIndexIsRebuilt(t *testing.T) {
	ctx := context.Background()
	index := memory.NewVectorIndex()
	require.NoError(t, index.Upsert(ctx, repository.IndexEntry{ID: "stale", Vector: []float32{1, 0}}))

	_, err := NewRetrievalService(ctx, newCatalog(), index, newProvider(), RetrievalOptions{})
	require.NoError(t, err)

	n, _ := index.Count(ctx)
	assert.Equal(t, fixtureSize, n, "stale entries are dropped")
}

func TestNewRetrievalService_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := NewRetrievalService(ctx,
		catalog.NewJSONCatalogRepository(storage.NewFileSource("testdata"), "missing.json"),
		memory.NewVectorIndex(), newProvider(), RetrievalOptions{})
	assert.ErrorIs(t, err, repository.ErrDataUnavailable)

	_, err = NewRetrievalService(ctx, newCatalog(), memory.NewVectorIndex(),
		&failingProvider{failBatches: true}, RetrievalOptions{})
	assert.ErrorIs(t, err, embedding.ErrEmbeddingUnavailable)
}

func TestRebuild_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, index, _ := newTestService(t, RetrievalOptions{})

	require.NoError(t, svc.Rebuild(ctx))
	require.NoError(t, svc.Rebuild(ctx))

	n, _ := index.Count(ctx)
	assert.Equal(t, fixtureSize, n)
}

func TestSearch_BoundedUniqueAndOrdered(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})
	ctx := context.Background()

	for _, k := range []int{1, 3, 5, 12, 20} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			scored, err := svc.SearchScored(ctx, "barbell squat for legs", k, domain.ExerciseFilter{})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(scored), k)

			seen := map[string]bool{}
			for i, s := range scored {
				assert.False(t, seen[s.Exercise.ID], "duplicate id %s", s.Exercise.ID)
				seen[s.Exercise.ID] = true
				if i > 0 {
					assert.LessOrEqual(t, scored[i-1].Distance, s.Distance)
				}
			}
		})
	}
}

func TestSearch_MatchesSearchScored(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})
	ctx := context.Background()

	plain, err := svc.Search(ctx, "core stability plank", 5, domain.ExerciseFilter{})
	require.NoError(t, err)
	scored, err := svc.SearchScored(ctx, "core stability plank", 5, domain.ExerciseFilter{})
	require.NoError(t, err)

	require.Len(t, plain, len(scored))
	for i := range plain {
		assert.Equal(t, scored[i].Exercise.ID, plain[i].ID)
	}
	assert.Equal(t, "plank", plain[0].ID)
}

func TestSearch_Validation(t *testing.T) {
	svc, _, provider := newTestService(t, RetrievalOptions{})
	ctx := context.Background()

	out, err := svc.Search(ctx, "squat", 0, domain.ExerciseFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)

	for _, query := range []string{"   ", "!!!", "？！……", "-- ++"} {
		_, err = svc.Search(ctx, query, 5, domain.ExerciseFilter{})
		assert.ErrorIs(t, err, ErrValidationFailed, query)
		assert.NotErrorIs(t, err, embedding.ErrEmbeddingUnavailable, query)
	}
	assert.Equal(t, int32(0), provider.queries.Load())

	_, err = svc.Search(ctx, "3x10!", 5, domain.ExerciseFilter{})
	assert.NoError(t, err, "punctuation next to letters or digits is fine")
}

func TestSearch_SkipsUnhydratableIDs(t *testing.T) {
	svc, index, provider := newTestService(t, RetrievalOptions{})
	ctx := context.Background()

	query := "ghost exercise"
	vec, err := provider.Embed(ctx, query)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, repository.IndexEntry{ID: "ghost", Vector: vec}))

	out, err := svc.Search(ctx, query, 3, domain.ExerciseFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2, "the ghost hit is dropped, not replaced")
	assert.NotContains(t, ids(out), "ghost")
}

// duplicateIndex returns a fixed hit list, including duplicates.
type duplicateIndex struct {
	hits []repository.IndexHit
}

func (d *duplicateIndex) Upsert(context.Context, ...repository.IndexEntry) error { return nil }
func (d *duplicateIndex) Count(context.Context) (int, error)                     { return fixtureSize, nil }
func (d *duplicateIndex) Reset(context.Context) error                            { return nil }
func (d *duplicateIndex) Query(context.Context, []float32, int, domain.ExerciseFilter) ([]repository.IndexHit, error) {
	return d.hits, nil
}

func TestSearch_DropsDuplicateHits(t *testing.T) {
	index := &duplicateIndex{hits: []repository.IndexHit{
		{ID: "push_up", Distance: 0.1},
		{ID: "push_up", Distance: 0.1},
		{ID: "squat", Distance: 0.2},
	}}
	svc, err := NewRetrievalService(context.Background(), newCatalog(), index, newProvider(), RetrievalOptions{})
	require.NoError(t, err)

	out, err := svc.Search(context.Background(), "anything", 3, domain.ExerciseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"push_up", "squat"}, ids(out))
}

func TestSearch_EmbeddingUnavailable(t *testing.T) {
	ctx := context.Background()
	provider := &failingProvider{failQueries: true, next: embedding.NewHashingProvider(64)}
	svc, err := NewRetrievalService(ctx, newCatalog(), memory.NewVectorIndex(), provider, RetrievalOptions{})
	require.NoError(t, err)

	_, err = svc.Search(ctx, "squat", 5, domain.ExerciseFilter{})
	assert.ErrorIs(t, err, embedding.ErrEmbeddingUnavailable)
}

func TestGetByCategory(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})

	legs, err := svc.GetByCategory(context.Background(), "legs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"squat", "lunge", "goblet_squat", "deadlift"}, ids(legs))
	for _, ex := range legs {
		assert.Equal(t, "legs", ex.Category)
	}

	none, err := svc.GetByCategory(context.Background(), "cardio")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByCategory_BrowseLimit(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{BrowseLimit: 2})

	legs, err := svc.GetByCategory(context.Background(), "legs")
	require.NoError(t, err)
	assert.Len(t, legs, 2)
}

func TestGetByEquipment(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})

	out, err := svc.GetByEquipment(context.Background(), "bodyweight")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"push_up", "inverted_row", "squat", "lunge", "pike_push_up", "plank"}, ids(out))
}

func TestRecommend_EnforcesEquipment(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})

	out, err := svc.Recommend(context.Background(), "muscle_gain", "bodyweight", "beginner", 8)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), 8)
	for _, ex := range out {
		assert.Equal(t, "bodyweight", ex.Equipment)
	}
}

func TestRecommend_FullGymIsUnrestricted(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, RetrievalOptions{})

	for _, sentinel := range DefaultFullGymSentinels {
		out, err := svc.Recommend(ctx, "muscle_gain", sentinel, "intermediate", fixtureSize)
		require.NoError(t, err)
		assert.Len(t, out, fixtureSize, "no equipment filter for %s", sentinel)
	}

	custom, _, _ := newTestService(t, RetrievalOptions{FullGymSentinels: []string{"商业健身房"}})
	out, err := custom.Recommend(ctx, "strength", "商业健身房", "advanced", fixtureSize)
	require.NoError(t, err)
	assert.Len(t, out, fixtureSize)

	out, err = custom.Recommend(ctx, "strength", "gym", "advanced", fixtureSize)
	require.NoError(t, err)
	assert.Empty(t, out, "gym is an ordinary equipment filter once the sentinels are replaced")
}

func TestRecommend_EquipmentAliases(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, RetrievalOptions{})

	bodyweight, err := svc.Recommend(ctx, "fat_loss", "bodyweight", "beginner", fixtureSize)
	require.NoError(t, err)
	require.NotEmpty(t, bodyweight)

	for _, access := range []string{"home", "minimal"} {
		out, err := svc.Recommend(ctx, "fat_loss", access, "beginner", fixtureSize)
		require.NoError(t, err)
		assert.Len(t, out, len(bodyweight), "%s resolves to bodyweight exercises", access)
		for _, ex := range out {
			assert.Equal(t, "bodyweight", ex.Equipment)
		}
	}

	noAliases, _, _ := newTestService(t, RetrievalOptions{EquipmentAliases: map[string]string{}})
	out, err := noAliases.Recommend(ctx, "fat_loss", "home", "beginner", fixtureSize)
	require.NoError(t, err)
	assert.Empty(t, out, "without aliases home matches no equipment tag")
}

func TestGetByMuscle(t *testing.T) {
	svc, _, provider := newTestService(t, RetrievalOptions{})

	out, err := svc.GetByMuscle(context.Background(), "胸大肌")
	require.NoError(t, err)
	assert.Equal(t, []string{"push_up", "bench_press"}, ids(out))
	assert.Equal(t, int32(0), provider.queries.Load(), "muscle lookups bypass the index")
}

func TestGetAll(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})

	out, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, fixtureSize)
}

func TestGetDetails(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})
	ctx := context.Background()

	byEnglish, err := svc.GetDetails(ctx, "Deadlift")
	require.NoError(t, err)
	assert.Equal(t, "deadlift", byEnglish.ID)

	byName, err := svc.GetDetails(ctx, "平板支撑")
	require.NoError(t, err)
	assert.Equal(t, "plank", byName.ID)

	_, err = svc.GetDetails(ctx, "Muscle-up")
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestSearch_StableAcrossBuilds(t *testing.T) {
	ctx := context.Background()
	first, _, _ := newTestService(t, RetrievalOptions{})
	second, _, _ := newTestService(t, RetrievalOptions{BuildBatchSize: 1, BuildConcurrency: 8})

	for _, query := range []string{"胸部训练动作", "dumbbell shoulders", "beginner bodyweight"} {
		a, err := first.Search(ctx, query, 5, domain.ExerciseFilter{})
		require.NoError(t, err)
		b, err := second.Search(ctx, query, 5, domain.ExerciseFilter{})
		require.NoError(t, err)
		assert.Equal(t, ids(a), ids(b), query)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t, RetrievalOptions{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixtureSize, stats.CatalogSize)
	assert.Equal(t, fixtureSize, stats.IndexSize)
	assert.Equal(t, "hashing-256", stats.Model)
	assert.NotEmpty(t, stats.Fingerprint)
}
