package api

import (
	"errors"
	"fmt"
	"net/http"

	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidState:
		return http.StatusConflict
	case service.KindValidationFailed:
		return http.StatusBadRequest
	case service.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service error with its kind and code.
// Anything else is recorded on the context for the request logger and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		c.AbortWithStatusJSON(statusForKind(se.Kind), gin.H{
			"error": se.Message,
			"kind":  se.Kind,
			"code":  se.Code,
		})
		return
	}
	_ = c.Error(err)
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
}

// bindJSON binds the body and answers 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return false
	}
	return true
}

// objectIDParam parses a hex ObjectID path parameter and answers 400 when it is malformed.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
		return primitive.NilObjectID, false
	}
	return id, true
}
