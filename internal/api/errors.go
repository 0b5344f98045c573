package api

import (
	"alcyxob/fitness-coach/internal/embedding"
	"alcyxob/fitness-coach/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondError maps service errors to HTTP statuses. Unexpected errors are
// logged and reported with the generic message only.
func respondError(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrValidationFailed):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExerciseNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRetrievalInitFailed), errors.Is(err, embedding.ErrEmbeddingUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, "Exercise retrieval is temporarily unavailable.")
	case errors.Is(err, service.ErrPlanGenerationFailed):
		abortWithError(c, http.StatusBadGateway, "Workout plan generation failed.")
	default:
		log.WithField("request_id", getRequestID(c)).WithError(err).Error(message)
		abortWithError(c, http.StatusInternalServerError, message)
	}
}
