package api

import (
	"net/http"
	"time"

	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
)

// WeightHandler exposes the body weight log.
type WeightHandler struct {
	weightService service.WeightService
}

func NewWeightHandler(weightService service.WeightService) *WeightHandler {
	return &WeightHandler{weightService: weightService}
}

type AddWeightRequest struct {
	Weight float64 `json:"weight" binding:"required"`
	Note   string  `json:"note"`
	// Date defaults to now when omitted.
	Date *time.Time `json:"date"`
}

// AddEntry godoc
// @Summary Log body weight
// @Tags Weight
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entry body AddWeightRequest true "Weight in kg"
// @Success 201 {object} domain.WeightEntry
// @Failure 400 {object} gin.H "Weight out of range"
// @Router /me/weights [post]
func (h *WeightHandler) AddEntry(c *gin.Context) {
	var req AddWeightRequest
	if !bindJSON(c, &req) {
		return
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}

	entry, err := h.weightService.AddEntry(c.Request.Context(), callerFromContext(c), req.Weight, req.Note, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListOwnEntries godoc
// @Summary The caller's weight log, newest first
// @Tags Weight
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.WeightEntry
// @Router /me/weights [get]
func (h *WeightHandler) ListOwnEntries(c *gin.Context) {
	caller := callerFromContext(c)
	entries, err := h.weightService.ListEntries(c.Request.Context(), caller, caller.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListUserEntries godoc
// @Summary Another user's weight log
// @Description Visible to the athlete's assigned trainer and to admins.
// @Tags Weight
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {array} domain.WeightEntry
// @Failure 404 {object} gin.H "User not found"
// @Router /users/{userId}/weights [get]
func (h *WeightHandler) ListUserEntries(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	entries, err := h.weightService.ListEntries(c.Request.Context(), callerFromContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteEntry godoc
// @Summary Delete one of the caller's weight entries
// @Tags Weight
// @Security BearerAuth
// @Param entryId path string true "Entry ID"
// @Success 204
// @Failure 404 {object} gin.H "Entry not found"
// @Router /me/weights/{entryId} [delete]
func (h *WeightHandler) DeleteEntry(c *gin.Context) {
	entryID, ok := objectIDParam(c, "entryId")
	if !ok {
		return
	}
	if err := h.weightService.DeleteEntry(c.Request.Context(), callerFromContext(c), entryID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
