package catalog

import (
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory ObjectSource that counts fetches.
type memSource struct {
	data    []byte
	err     error
	fetches atomic.Int32
}

func (s *memSource) Fetch(_ context.Context, _ string) ([]byte, error) {
	s.fetches.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func (s *memSource) Describe(key string) string { return "mem://" + key }

func newTestRepo(t *testing.T) repository.CatalogRepository {
	t.Helper()
	return NewJSONCatalogRepository(storage.NewFileSource("testdata"), "exercises.json")
}

func TestLoadAll(t *testing.T) {
	repo := newTestRepo(t)

	exercises, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, exercises, 12)
	assert.Equal(t, "push_up", exercises[0].ID, "catalog order is preserved")
	assert.Equal(t, []string{"胸大肌", "肱三头肌", "三角肌前束"}, exercises[0].TargetMuscles)

	// Mutating the returned slice must not leak into the store.
	exercises[0].Name = "changed"
	again, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "俯卧撑", again[0].Name)
}

func TestLoadAll_ReadsOnce(t *testing.T) {
	src := &memSource{data: []byte(`[{"id":"a","name":"A"}]`)}
	repo := NewJSONCatalogRepository(src, "x.json")

	for i := 0; i < 3; i++ {
		_, err := repo.LoadAll(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.fetches.Load())
}

func TestLoadAll_FailsAtomically(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"malformed json", `[{"id":"a","name":"A"},`},
		{"not an array", `{"id":"a"}`},
		{"null document", `null`},
		{"missing id", `[{"id":"a","name":"A"},{"name":"B"}]`},
		{"missing names", `[{"id":"a"}]`},
		{"duplicate id", `[{"id":"a","name":"A"},{"id":"a","name":"B"}]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewJSONCatalogRepository(&memSource{data: []byte(tc.data)}, "x.json")
			exercises, err := repo.LoadAll(context.Background())
			assert.ErrorIs(t, err, repository.ErrDataUnavailable)
			assert.Nil(t, exercises)
		})
	}
}

func TestLoadAll_RetriesAfterFailure(t *testing.T) {
	src := &memSource{err: errors.New("bucket offline")}
	repo := NewJSONCatalogRepository(src, "x.json")

	_, err := repo.LoadAll(context.Background())
	require.ErrorIs(t, err, repository.ErrDataUnavailable)

	src.err = nil
	src.data = []byte(`[{"id":"a","name":"A"}]`)
	exercises, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, exercises, 1)
}

func TestLoadAll_MissingFile(t *testing.T) {
	repo := NewJSONCatalogRepository(storage.NewFileSource("testdata"), "missing.json")
	_, err := repo.LoadAll(context.Background())
	assert.ErrorIs(t, err, repository.ErrDataUnavailable)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestGetByID(t *testing.T) {
	repo := newTestRepo(t)

	ex, err := repo.GetByID(context.Background(), "deadlift")
	require.NoError(t, err)
	assert.Equal(t, "Deadlift", ex.EnglishName)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	byName, err := repo.GetByName(ctx, "引体向上")
	require.NoError(t, err)
	assert.Equal(t, "pull_up", byName.ID)

	byEnglish, err := repo.GetByName(ctx, "Pull-up")
	require.NoError(t, err)
	assert.Equal(t, "pull_up", byEnglish.ID)

	_, err = repo.GetByName(ctx, "pull-up")
	assert.ErrorIs(t, err, repository.ErrNotFound, "matching is exact")

	_, err = repo.GetByName(ctx, "Muscle-up")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetByName_FirstMatchWins(t *testing.T) {
	src := &memSource{data: []byte(`[
		{"id":"a","name":"Row","english_name":"Row A"},
		{"id":"b","name":"Row B","english_name":"Row"}
	]`)}
	repo := NewJSONCatalogRepository(src, "x.json")

	ex, err := repo.GetByName(context.Background(), "Row")
	require.NoError(t, err)
	assert.Equal(t, "a", ex.ID)
}

func TestGetByMuscle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chest, err := repo.GetByMuscle(ctx, "胸大肌")
	require.NoError(t, err)
	ids := make([]string, len(chest))
	for i, ex := range chest {
		ids[i] = ex.ID
	}
	assert.Equal(t, []string{"push_up", "bench_press"}, ids)

	glutes, err := repo.GetByMuscle(ctx, "臀大肌")
	require.NoError(t, err)
	assert.Len(t, glutes, 4, "exhaustive, no truncation")

	none, err := repo.GetByMuscle(ctx, "胸")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none, "element match, not substring")
}

func TestFingerprint(t *testing.T) {
	a := NewJSONCatalogRepository(&memSource{data: []byte(`[{"id":"a","name":"A"}]`)}, "x.json")
	b := NewJSONCatalogRepository(&memSource{data: []byte(`[{"id":"a","name":"A"}]`)}, "x.json")
	c := NewJSONCatalogRepository(&memSource{data: []byte(`[{"id":"a","name":"B"}]`)}, "x.json")

	fa, err := a.Fingerprint(context.Background())
	require.NoError(t, err)
	fb, err := b.Fingerprint(context.Background())
	require.NoError(t, err)
	fc, err := c.Fingerprint(context.Background())
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
