package api

import (
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RetrievalStatus is the retrieval provider as seen by the HTTP layer.
type RetrievalStatus interface {
	service.RetrievalSource
	State() (service.ProviderState, error)
}

func SetupRoutes(
	router *gin.Engine,
	retrieval RetrievalStatus,
	planner service.WorkoutPlanner,
	m *metrics.Metrics,
) {
	exerciseHandler := NewExerciseHandler(retrieval)
	planHandler := NewPlanHandler(planner)

	router.Use(RequestIDMiddleware(), RequestLoggerMiddleware(m))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/healthz", healthHandler(retrieval))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		// --- Exercise Routes ---
		exerciseGroup := apiV1.Group("/exercises")
		{
			exerciseGroup.GET("", exerciseHandler.GetAllExercises)
			exerciseGroup.GET("/search", exerciseHandler.SearchExercises)
			exerciseGroup.GET("/category/:category", exerciseHandler.GetExercisesByCategory)
			exerciseGroup.GET("/equipment/:equipment", exerciseHandler.GetExercisesByEquipment)
			exerciseGroup.GET("/muscle/:muscle", exerciseHandler.GetExercisesByMuscle)
			exerciseGroup.GET("/:name", exerciseHandler.GetExerciseDetails)
			exerciseGroup.POST("/recommend", exerciseHandler.RecommendExercises)
		}

		// --- Plan Routes ---
		planGroup := apiV1.Group("/plans")
		{
			planGroup.POST("/workout", planHandler.GenerateWorkoutPlan)
			planGroup.POST("/split", planHandler.SuggestWorkoutSplit)
			planGroup.POST("/adjust", planHandler.AdjustWorkoutIntensity)
		}
	}
}

// healthHandler reports the retrieval lifecycle state. It never triggers
// initialization; index stats are included once the service is ready.
func healthHandler(retrieval RetrievalStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, lastErr := retrieval.State()
		body := gin.H{"status": "ok", "retrieval": state.String()}

		switch state {
		case service.StateFailed:
			body["status"] = "degraded"
			if lastErr != nil {
				body["error"] = lastErr.Error()
			}
			c.JSON(http.StatusServiceUnavailable, body)
			return
		case service.StateReady:
			svc, err := retrieval.Get(c.Request.Context())
			if err == nil {
				if stats, err := svc.Stats(c.Request.Context()); err == nil {
					body["index"] = stats
				} else {
					body["index_error"] = err.Error()
				}
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
