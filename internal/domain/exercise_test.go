package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExerciseFilter(t *testing.T) {
	testCases := []struct {
		name    string
		filter  ExerciseFilter
		isZero  bool
		matches bool
	}{
		{"empty filter", ExerciseFilter{}, true, true},
		{"matching equipment", ExerciseFilter{Equipment: "bodyweight"}, false, true},
		{"other equipment", ExerciseFilter{Equipment: "barbell"}, false, false},
		{"all fields match", ExerciseFilter{Category: "chest", Equipment: "bodyweight", Difficulty: "beginner"}, false, true},
		{"one field differs", ExerciseFilter{Category: "chest", Difficulty: "advanced"}, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.isZero, tc.filter.IsZero())
			assert.Equal(t, tc.matches, tc.filter.Matches("chest", "bodyweight", "beginner"))
		})
	}
}
