package domain

// Default profile values used when the user has not filled them in.
const (
	DefaultFitnessGoal       = "general_fitness"
	DefaultEquipmentAccess   = "bodyweight"
	DefaultExperienceLevel   = "beginner"
	DefaultTrainingFrequency = 3
)

// UserProfile holds the free-text and categorical data a plan is generated from.
type UserProfile struct {
	UserID            string `json:"user_id,omitempty"`
	FitnessGoal       string `json:"fitness_goal"`     // e.g., "muscle_gain", "增肌"
	ExperienceLevel   string `json:"experience_level"` // e.g., "beginner"
	TrainingFrequency int    `json:"training_frequency"`
	EquipmentAccess   string `json:"equipment_access"` // e.g., "bodyweight", "专业健身房"
	Age               int    `json:"age,omitempty"`
	Gender            string `json:"gender,omitempty"`
}

// WithDefaults returns a copy of the profile with empty fields filled in.
func (p UserProfile) WithDefaults() UserProfile {
	if p.FitnessGoal == "" {
		p.FitnessGoal = DefaultFitnessGoal
	}
	if p.EquipmentAccess == "" {
		p.EquipmentAccess = DefaultEquipmentAccess
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = DefaultExperienceLevel
	}
	if p.TrainingFrequency <= 0 {
		p.TrainingFrequency = DefaultTrainingFrequency
	}
	return p
}
