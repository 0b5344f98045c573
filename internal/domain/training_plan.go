// internal/domain/training_plan.go
package domain

import (
	"encoding/json"
	"fmt"
)

// WorkoutPlan is the structured weekly plan produced by the workout planner.
type WorkoutPlan struct {
	UserID            string       `json:"user_id,omitempty"`
	PlanName          string       `json:"plan_name"`
	WorkoutType       string       `json:"workout_type"` // e.g., "push_pull_legs", "body_part_split"
	DurationWeeks     int          `json:"duration_weeks"`
	FrequencyPerWeek  int          `json:"frequency_per_week"`
	Rationale         string       `json:"rationale"`
	WeeklySchedule    []WorkoutDay `json:"weekly_schedule"`
	ProgressionAdvice string       `json:"progression_advice"`
	GenerationPrompt  string       `json:"generation_prompt,omitempty"` // Raw model output kept for auditing

	// Exercises retrieved from the catalog to ground the plan.
	// Always present; empty when retrieval was unavailable.
	RecommendedExercises []Exercise `json:"recommended_exercises"`
}

// WorkoutDay is one training day inside a WorkoutPlan.
type WorkoutDay struct {
	Day           int               `json:"day"`
	Name          string            `json:"name"` // e.g., "胸+三头"
	TargetMuscles []string          `json:"target_muscles"`
	Exercises     []PlannedExercise `json:"exercises"`
}

// PlannedExercise is a prescribed exercise with its volume parameters.
type PlannedExercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets"`
	Reps        Reps   `json:"reps"`
	RestSeconds int    `json:"rest_seconds"`
	Notes       string `json:"notes,omitempty"`
}

// Reps is a prescribed repetition count. Models answer with either a number
// (10) or a range or duration string ("8-12", "30秒"), so both are accepted.
type Reps string

func (r *Reps) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Reps(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reps must be a number or a string: %w", err)
	}
	*r = Reps(n.String())
	return nil
}

// WorkoutSplit is a suggested way of distributing training days over a week.
type WorkoutSplit struct {
	RecommendedSplit string   `json:"recommended_split"` // e.g., "推拉腿"
	SplitType        string   `json:"split_type"`        // e.g., "push_pull_legs"
	DaysBreakdown    []string `json:"days_breakdown"`
	Rationale        string   `json:"rationale"`
	Pros             []string `json:"pros"`
	Cons             []string `json:"cons"`
}

// IntensityAdjustment is the model's assessment of a plan against the
// trainee's recorded progress.
type IntensityAdjustment struct {
	AdjustmentNeeded   bool                 `json:"adjustment_needed"`
	ProgressAssessment string               `json:"progress_assessment"`
	Recommendations    []ExerciseAdjustment `json:"recommendations"`
	OverallFeedback    string               `json:"overall_feedback"`
}

// ExerciseAdjustment changes the parameters of one planned exercise.
type ExerciseAdjustment struct {
	Exercise  string `json:"exercise"`
	Current   string `json:"current"` // e.g., "3x10 @ 40kg"
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
}
