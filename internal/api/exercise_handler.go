package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	maxResults              = 20
	defaultSearchResults    = 5
	defaultRecommendResults = 8
)

// ExerciseHandler serves the exercise query endpoints.
type ExerciseHandler struct {
	retrieval service.RetrievalSource
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(retrieval service.RetrievalSource) *ExerciseHandler {
	return &ExerciseHandler{retrieval: retrieval}
}

// --- DTOs for API (Data Transfer Objects) ---

// RecommendRequest defines the expected JSON for exercise recommendations.
type RecommendRequest struct {
	Goal       string `json:"goal" binding:"required"`
	Equipment  string `json:"equipment"`
	Difficulty string `json:"difficulty"`
	NResults   *int   `json:"n_results"`
}

// ExerciseListResponse wraps a list of exercises.
type ExerciseListResponse struct {
	Exercises []domain.Exercise `json:"exercises"`
	Count     int               `json:"count"`
}

func newExerciseList(exercises []domain.Exercise) ExerciseListResponse {
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	return ExerciseListResponse{Exercises: exercises, Count: len(exercises)}
}

// parseNResults validates an optional n_results value against [1, maxResults].
func parseNResults(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("n_results must be an integer")
	}
	if n < 1 || n > maxResults {
		return 0, fmt.Errorf("n_results must be between 1 and %d", maxResults)
	}
	return n, nil
}

// service resolves the retrieval service, aborting the request when it is
// not available.
func (h *ExerciseHandler) service(c *gin.Context) (service.RetrievalService, bool) {
	svc, err := h.retrieval.Get(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to initialize exercise retrieval.")
		return nil, false
	}
	return svc, true
}

// --- Handler Methods ---

// SearchExercises godoc
// @Summary Semantic exercise search
// @Tags Exercises
// @Produce json
// @Param query query string true "Free-text query"
// @Param n_results query int false "Number of results (1-20)"
// @Success 200 {object} ExerciseListResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 503 {object} gin.H "Retrieval unavailable"
// @Router /exercises/search [get]
func (h *ExerciseHandler) SearchExercises(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		abortWithError(c, http.StatusBadRequest, "query parameter is required")
		return
	}
	n, err := parseNResults(c.Query("n_results"), defaultSearchResults)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.Search(c.Request.Context(), query, n, domain.ExerciseFilter{})
	if err != nil {
		respondError(c, err, "Failed to search exercises.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}

// GetExercisesByCategory godoc
// @Summary Exercises of a category
// @Tags Exercises
// @Produce json
// @Param category path string true "Category"
// @Success 200 {object} ExerciseListResponse
// @Router /exercises/category/{category} [get]
func (h *ExerciseHandler) GetExercisesByCategory(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.GetByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		respondError(c, err, "Failed to retrieve exercises by category.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}

// GetExercisesByEquipment godoc
// @Summary Exercises using a piece of equipment
// @Tags Exercises
// @Produce json
// @Param equipment path string true "Equipment"
// @Success 200 {object} ExerciseListResponse
// @Router /exercises/equipment/{equipment} [get]
func (h *ExerciseHandler) GetExercisesByEquipment(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.GetByEquipment(c.Request.Context(), c.Param("equipment"))
	if err != nil {
		respondError(c, err, "Failed to retrieve exercises by equipment.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}

// GetExercisesByMuscle godoc
// @Summary Exercises targeting a muscle
// @Tags Exercises
// @Produce json
// @Param muscle path string true "Muscle"
// @Success 200 {object} ExerciseListResponse
// @Router /exercises/muscle/{muscle} [get]
func (h *ExerciseHandler) GetExercisesByMuscle(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.GetByMuscle(c.Request.Context(), c.Param("muscle"))
	if err != nil {
		respondError(c, err, "Failed to retrieve exercises by muscle.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}

// GetAllExercises godoc
// @Summary Full exercise catalog
// @Tags Exercises
// @Produce json
// @Success 200 {object} ExerciseListResponse
// @Router /exercises [get]
func (h *ExerciseHandler) GetAllExercises(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve exercises.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}

// GetExerciseDetails godoc
// @Summary Exercise details by name
// @Tags Exercises
// @Produce json
// @Param name path string true "Exercise name or english name"
// @Success 200 {object} domain.Exercise
// @Failure 404 {object} gin.H "Exercise not found"
// @Router /exercises/{name} [get]
func (h *ExerciseHandler) GetExerciseDetails(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercise, err := svc.GetDetails(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err, "Failed to retrieve exercise.")
		return
	}
	c.JSON(http.StatusOK, exercise)
}

// RecommendExercises godoc
// @Summary Recommend exercises for a goal
// @Tags Exercises
// @Accept json
// @Produce json
// @Param request body RecommendRequest true "Goal, equipment and difficulty"
// @Success 200 {object} ExerciseListResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /exercises/recommend [post]
func (h *ExerciseHandler) RecommendExercises(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	n := defaultRecommendResults
	if req.NResults != nil {
		n = *req.NResults
		if n < 1 || n > maxResults {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("n_results must be between 1 and %d", maxResults))
			return
		}
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.DefaultExperienceLevel
	}

	svc, ok := h.service(c)
	if !ok {
		return
	}
	exercises, err := svc.Recommend(c.Request.Context(), req.Goal, req.Equipment, req.Difficulty, n)
	if err != nil {
		respondError(c, err, "Failed to recommend exercises.")
		return
	}
	c.JSON(http.StatusOK, newExerciseList(exercises))
}
