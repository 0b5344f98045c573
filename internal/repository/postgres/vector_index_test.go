package postgres

import (
	"alcyxob/fitness-coach/internal/domain"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	ix := NewPostgresVectorIndex(nil, "").(*postgresVectorIndex)
	vec := []float32{0.1, 0.2}

	testCases := []struct {
		name      string
		filter    domain.ExerciseFilter
		wantWhere string
		wantArgs  int
		wantLimit string
	}{
		{"no filter", domain.ExerciseFilter{}, "WHERE 1 = 1\n", 2, "LIMIT $2"},
		{"category", domain.ExerciseFilter{Category: "胸部"}, "WHERE 1 = 1 AND category = $2\n", 3, "LIMIT $3"},
		{
			"all fields",
			domain.ExerciseFilter{Category: "腿部", Equipment: "杠铃", Difficulty: "中级"},
			"WHERE 1 = 1 AND category = $2 AND equipment = $3 AND difficulty = $4\n",
			5,
			"LIMIT $5",
		},
		{"equipment only", domain.ExerciseFilter{Equipment: "徒手"}, "WHERE 1 = 1 AND equipment = $2\n", 3, "LIMIT $3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			query, args := ix.buildQuery(vec, 7, tc.filter)
			assert.Contains(t, query, tc.wantWhere)
			assert.Contains(t, query, tc.wantLimit)
			assert.Contains(t, query, `FROM "exercise_vectors"`)
			assert.Contains(t, query, "ORDER BY distance ASC, seq ASC")
			require.Len(t, args, tc.wantArgs)
			assert.Equal(t, pgvector.NewVector(vec), args[0])
			assert.Equal(t, 7, args[len(args)-1])
		})
	}
}

func TestTableNameIsQuoted(t *testing.T) {
	ix := NewPostgresVectorIndex(nil, `vectors"; DROP TABLE users; --`).(*postgresVectorIndex)
	assert.Equal(t, `"vectors""; DROP TABLE users; --"`, ix.table)
	assert.Contains(t, ix.upsertStatement(), "ON CONFLICT (id)")
	assert.NotContains(t, ix.upsertStatement(), "seq = EXCLUDED.seq")
}
