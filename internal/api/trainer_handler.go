// internal/api/trainer_handler.go
package api

import (
	"net/http"

	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
)

type TrainerHandler struct {
	trainerService service.TrainerService
}

func NewTrainerHandler(trainerService service.TrainerService) *TrainerHandler {
	return &TrainerHandler{trainerService: trainerService}
}

// GetManagedAthletes godoc
// @Summary Get athletes assigned to the trainer
// @Description Retrieves the list of athletes whose assigned trainer is the authenticated trainer.
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse "List of managed athletes"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not a trainer)"
// @Router /trainer/athletes [get]
func (h *TrainerHandler) GetManagedAthletes(c *gin.Context) {
	athletes, err := h.trainerService.GetManagedAthletes(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(athletes))
}

// GetAthleteSessions godoc
// @Summary Session history of one of the trainer's athletes
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param athleteId path string true "Athlete ID"
// @Success 200 {array} domain.TrainingSession
// @Failure 404 {object} gin.H "Athlete not found or not assigned to this trainer"
// @Router /trainer/athletes/{athleteId}/sessions [get]
func (h *TrainerHandler) GetAthleteSessions(c *gin.Context) {
	athleteID, ok := objectIDParam(c, "athleteId")
	if !ok {
		return
	}
	sessions, err := h.trainerService.GetAthleteSessions(c.Request.Context(), callerFromContext(c), athleteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
