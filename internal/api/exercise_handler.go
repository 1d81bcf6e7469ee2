package api

import (
	"net/http"
	"time"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler holds the exercise service dependency.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService}
}

// --- DTOs for API (Data Transfer Objects) ---

// ExerciseRequest defines the expected JSON for creating or updating an exercise.
type ExerciseRequest struct {
	Name           string                 `json:"name" binding:"required"`
	Category       domain.Category        `json:"category" binding:"required"`
	CustomCategory string                 `json:"customCategory"`
	RequiredFields []domain.ExerciseField `json:"requiredFields" binding:"required,min=1"`
}

// ExerciseResponse is the DTO for returning exercise details.
type ExerciseResponse struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Category       domain.Category        `json:"category"`
	CustomCategory string                 `json:"customCategory,omitempty"`
	RequiredFields []domain.ExerciseField `json:"requiredFields"`
	HasVideo       bool                   `json:"hasVideo"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type VideoUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

type ConfirmVideoRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type VideoURLResponse struct {
	URL string `json:"url"`
}

// MapExerciseToResponse converts a domain.Exercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.Exercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:             ex.ID.Hex(),
		Name:           ex.Name,
		Category:       ex.Category,
		CustomCategory: ex.CustomCategory,
		RequiredFields: ex.RequiredFields,
		HasVideo:       ex.HasVideo(),
		CreatedAt:      ex.CreatedAt,
		UpdatedAt:      ex.UpdatedAt,
	}
}

func (r ExerciseRequest) toInput() service.ExerciseInput {
	return service.ExerciseInput{
		Name:           r.Name,
		Category:       r.Category,
		CustomCategory: r.CustomCategory,
		RequiredFields: r.RequiredFields,
	}
}

// ListExercises godoc
// @Summary List the exercise catalogue
// @Description Ordered by category, then name.
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ExerciseResponse
// @Router /exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]ExerciseResponse, len(exercises))
	for i := range exercises {
		resp[i] = MapExerciseToResponse(&exercises[i])
	}
	c.JSON(http.StatusOK, resp)
}

// GetExercise godoc
// @Summary Get one exercise
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Success 200 {object} ExerciseResponse
// @Failure 404 {object} gin.H "Exercise not found"
// @Router /exercises/{exerciseId} [get]
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	exercise, err := h.exerciseService.GetExercise(c.Request.Context(), callerFromContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// CreateExercise godoc
// @Summary Create a new exercise
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exercise body ExerciseRequest true "Exercise details"
// @Success 201 {object} ExerciseResponse "Exercise created successfully"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden (user is not an admin)"
// @Router /exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req ExerciseRequest
	if !bindJSON(c, &req) {
		return
	}

	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), callerFromContext(c), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

// UpdateExercise godoc
// @Summary Update an exercise
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param exercise body ExerciseRequest true "Exercise details"
// @Success 200 {object} ExerciseResponse
// @Router /exercises/{exerciseId} [put]
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	var req ExerciseRequest
	if !bindJSON(c, &req) {
		return
	}

	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), callerFromContext(c), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// DeleteExercise godoc
// @Summary Delete an exercise
// @Tags Exercises
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Success 204
// @Failure 412 {object} gin.H "Exercise is used in a session round"
// @Router /exercises/{exerciseId} [delete]
func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteExercise(c.Request.Context(), callerFromContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestVideoUpload godoc
// @Summary Get a presigned URL to upload an exercise video
// @Description The client PUTs the file to uploadUrl, then confirms with the objectKey.
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param body body VideoUploadRequest true "Content type and size of the video"
// @Success 200 {object} service.VideoUploadTicket
// @Failure 400 {object} gin.H "Not a video or too large"
// @Router /exercises/{exerciseId}/video/upload-url [post]
func (h *ExerciseHandler) RequestVideoUpload(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	var req VideoUploadRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.exerciseService.RequestVideoUpload(c.Request.Context(), callerFromContext(c), id, req.ContentType, req.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ConfirmVideoUpload godoc
// @Summary Attach an uploaded video to the exercise
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param body body ConfirmVideoRequest true "Object key from the upload ticket"
// @Success 200 {object} ExerciseResponse
// @Failure 412 {object} gin.H "Video was not uploaded"
// @Router /exercises/{exerciseId}/video [put]
func (h *ExerciseHandler) ConfirmVideoUpload(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	var req ConfirmVideoRequest
	if !bindJSON(c, &req) {
		return
	}

	exercise, err := h.exerciseService.ConfirmVideoUpload(c.Request.Context(), callerFromContext(c), id, req.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// GetVideoURL godoc
// @Summary Get a presigned download URL for the exercise video
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Success 200 {object} VideoURLResponse
// @Failure 404 {object} gin.H "Exercise has no video"
// @Router /exercises/{exerciseId}/video [get]
func (h *ExerciseHandler) GetVideoURL(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	url, err := h.exerciseService.GetVideoURL(c.Request.Context(), callerFromContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VideoURLResponse{URL: url})
}

// DeleteVideo godoc
// @Summary Remove the exercise video
// @Tags Exercises
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Success 204
// @Router /exercises/{exerciseId}/video [delete]
func (h *ExerciseHandler) DeleteVideo(c *gin.Context) {
	id, ok := objectIDParam(c, "exerciseId")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteVideo(c.Request.Context(), callerFromContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
