// internal/domain/exercise.go
package domain

// Exercise represents a single exercise definition in the catalog.
// Records are immutable once loaded; the catalog file is the source of truth.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
	Category    string `json:"category"` // e.g., "胸部", "legs"

	// Primary mover first.
	TargetMuscles []string `json:"target_muscles"`

	Equipment  string `json:"equipment"`  // e.g., "徒手", "dumbbell"
	Difficulty string `json:"difficulty"` // e.g., "beginner", "intermediate", "advanced"

	// Display text, also part of the embedding document.
	Description    string   `json:"description"`
	Instructions   []string `json:"instructions"`
	Tips           []string `json:"tips"`
	CommonMistakes []string `json:"common_mistakes"`
	Alternatives   []string `json:"alternatives"`
}

// HasMuscle reports whether muscle appears as an element of TargetMuscles.
// The comparison is exact and case-sensitive.
func (e *Exercise) HasMuscle(muscle string) bool {
	for _, m := range e.TargetMuscles {
		if m == muscle {
			return true
		}
	}
	return false
}

// ScoredExercise pairs a catalog record with its distance from a query vector.
type ScoredExercise struct {
	Exercise Exercise `json:"exercise"`
	Distance float64  `json:"distance"`
}

// ExerciseFilter restricts a similarity query to exact matches on the
// categorical fields mirrored into the vector index. Empty fields are ignored;
// non-empty fields are combined with AND.
type ExerciseFilter struct {
	Category   string `json:"category,omitempty"`
	Equipment  string `json:"equipment,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// IsZero reports whether the filter restricts nothing.
func (f ExerciseFilter) IsZero() bool {
	return f.Category == "" && f.Equipment == "" && f.Difficulty == ""
}

// Matches reports whether the given categorical values satisfy the filter.
func (f ExerciseFilter) Matches(category, equipment, difficulty string) bool {
	if f.Category != "" && f.Category != category {
		return false
	}
	if f.Equipment != "" && f.Equipment != equipment {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != difficulty {
		return false
	}
	return true
}
