package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PlanHandler serves workout plan generation.
type PlanHandler struct {
	planner service.WorkoutPlanner
}

func NewPlanHandler(planner service.WorkoutPlanner) *PlanHandler {
	return &PlanHandler{planner: planner}
}

// GenerateWorkoutPlanRequest is the user profile a plan is generated for.
type GenerateWorkoutPlanRequest struct {
	UserID            string `json:"user_id"`
	FitnessGoal       string `json:"fitness_goal"`
	ExperienceLevel   string `json:"experience_level"`
	TrainingFrequency int    `json:"training_frequency" binding:"omitempty,min=1,max=7"`
	EquipmentAccess   string `json:"equipment_access"`
	Age               int    `json:"age" binding:"omitempty,min=1,max=120"`
	Gender            string `json:"gender"`
}

func (r GenerateWorkoutPlanRequest) toProfile() domain.UserProfile {
	return domain.UserProfile{
		UserID:            r.UserID,
		FitnessGoal:       r.FitnessGoal,
		ExperienceLevel:   r.ExperienceLevel,
		TrainingFrequency: r.TrainingFrequency,
		EquipmentAccess:   r.EquipmentAccess,
		Age:               r.Age,
		Gender:            r.Gender,
	}
}

// GenerateWorkoutPlan godoc
// @Summary Generate a weekly workout plan
// @Tags Plans
// @Accept json
// @Produce json
// @Param profile body GenerateWorkoutPlanRequest true "User profile"
// @Success 200 {object} domain.WorkoutPlan
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Chat model failed"
// @Router /plans/workout [post]
func (h *PlanHandler) GenerateWorkoutPlan(c *gin.Context) {
	var req GenerateWorkoutPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, err := h.planner.GenerateWorkoutPlan(c.Request.Context(), req.toProfile())
	if err != nil {
		respondError(c, err, "Failed to generate workout plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// SuggestWorkoutSplitRequest holds the parameters a split is suggested for.
type SuggestWorkoutSplitRequest struct {
	Frequency  int    `json:"frequency" binding:"required,min=1,max=7"`
	Goal       string `json:"goal" binding:"required"`
	Experience string `json:"experience"`
}

// SuggestWorkoutSplit godoc
// @Summary Suggest how to divide weekly training sessions
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body SuggestWorkoutSplitRequest true "Split parameters"
// @Success 200 {object} domain.WorkoutSplit
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Chat model failed"
// @Router /plans/split [post]
func (h *PlanHandler) SuggestWorkoutSplit(c *gin.Context) {
	var req SuggestWorkoutSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	split, err := h.planner.SuggestWorkoutSplit(c.Request.Context(), req.Frequency, req.Goal, req.Experience)
	if err != nil {
		respondError(c, err, "Failed to suggest workout split.")
		return
	}
	c.JSON(http.StatusOK, split)
}

// AdjustWorkoutIntensityRequest pairs the plan being followed with the
// trainee's recorded progress.
type AdjustWorkoutIntensityRequest struct {
	CurrentPlan  domain.WorkoutPlan `json:"current_plan"`
	ProgressData map[string]any     `json:"progress_data" binding:"required"`
}

// AdjustWorkoutIntensity godoc
// @Summary Suggest intensity adjustments from recorded progress
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body AdjustWorkoutIntensityRequest true "Plan and progress"
// @Success 200 {object} domain.IntensityAdjustment
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Chat model failed"
// @Router /plans/adjust [post]
func (h *PlanHandler) AdjustWorkoutIntensity(c *gin.Context) {
	var req AdjustWorkoutIntensityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	adjustment, err := h.planner.AdjustWorkoutIntensity(c.Request.Context(), req.CurrentPlan, req.ProgressData)
	if err != nil {
		respondError(c, err, "Failed to adjust workout intensity.")
		return
	}
	c.JSON(http.StatusOK, adjustment)
}
