package api

import (
	"fmt"
	"net/http"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoundHandler exposes round planning to trainers and round completion to athletes.
type RoundHandler struct {
	roundService    service.RoundService
	feedbackService service.FeedbackService
}

func NewRoundHandler(roundService service.RoundService, feedbackService service.FeedbackService) *RoundHandler {
	return &RoundHandler{roundService: roundService, feedbackService: feedbackService}
}

// --- DTOs ---

type PlannedExerciseRequest struct {
	ExerciseID      string   `json:"exerciseId" binding:"required"`
	Order           int      `json:"order" binding:"min=0"`
	PlannedWeight   *float64 `json:"plannedWeight"`
	PlannedReps     *int     `json:"plannedReps"`
	PlannedDistance *float64 `json:"plannedDistance"`
	PlannedTime     *int     `json:"plannedTime"` // seconds
	PlannedRPE      *int     `json:"plannedRpe"`
	TrainerNotes    string   `json:"trainerNotes"`
}

// SaveRoundRequest carries the full plan; an edit replaces the previous one.
type SaveRoundRequest struct {
	IsFinalRound bool                     `json:"isFinalRound"`
	Exercises    []PlannedExerciseRequest `json:"exercises" binding:"dive"`
}

type SaveRoundResponse struct {
	RoundID string `json:"roundId"`
}

type ExerciseFeedbackRequest struct {
	RoundExerciseID string              `json:"roundExerciseId" binding:"required"`
	Difficulty      domain.Difficulty   `json:"difficulty" binding:"required"`
	HadPain         bool                `json:"hadPain"`
	PainRegions     []domain.BodyRegion `json:"painRegions"`
	AthleteNotes    string              `json:"athleteNotes"`
}

type CompleteRoundRequest struct {
	Feedback []ExerciseFeedbackRequest `json:"feedback" binding:"dive"`
}

func (r SaveRoundRequest) toPlan() ([]service.PlannedExercise, error) {
	planned := make([]service.PlannedExercise, len(r.Exercises))
	for i, ex := range r.Exercises {
		id, err := primitive.ObjectIDFromHex(ex.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("invalid exerciseId at position %d", i)
		}
		planned[i] = service.PlannedExercise{
			ExerciseID:      id,
			Order:           ex.Order,
			PlannedWeight:   ex.PlannedWeight,
			PlannedReps:     ex.PlannedReps,
			PlannedDistance: ex.PlannedDistance,
			PlannedTime:     ex.PlannedTime,
			PlannedRPE:      ex.PlannedRPE,
			TrainerNotes:    ex.TrainerNotes,
		}
	}
	return planned, nil
}

func (r CompleteRoundRequest) toFeedback() ([]service.ExerciseFeedback, error) {
	feedback := make([]service.ExerciseFeedback, len(r.Feedback))
	for i, f := range r.Feedback {
		id, err := primitive.ObjectIDFromHex(f.RoundExerciseID)
		if err != nil {
			return nil, fmt.Errorf("invalid roundExerciseId at position %d", i)
		}
		feedback[i] = service.ExerciseFeedback{
			RoundExerciseID: id,
			Difficulty:      f.Difficulty,
			HadPain:         f.HadPain,
			PainRegions:     f.PainRegions,
			AthleteNotes:    f.AthleteNotes,
		}
	}
	return feedback, nil
}

// --- Trainer ---

// CreateRound godoc
// @Summary Draft a new round
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param round body SaveRoundRequest true "Round plan"
// @Success 201 {object} SaveRoundResponse
// @Failure 400 {object} gin.H "Invalid plan"
// @Failure 409 {object} gin.H "Session not active"
// @Router /trainer/sessions/{sessionId}/rounds [post]
func (h *RoundHandler) CreateRound(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	var req SaveRoundRequest
	if !bindJSON(c, &req) {
		return
	}
	planned, err := req.toPlan()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	roundID, err := h.roundService.SaveRound(c.Request.Context(), callerFromContext(c), service.SaveRoundInput{
		SessionID:    sessionID,
		IsFinalRound: req.IsFinalRound,
		Exercises:    planned,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SaveRoundResponse{RoundID: roundID.Hex()})
}

// UpdateRound godoc
// @Summary Replace a round's plan
// @Description Draft rounds are edited silently, released rounds notify the athlete.
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param roundId path string true "Round ID"
// @Param round body SaveRoundRequest true "Round plan"
// @Success 200 {object} SaveRoundResponse
// @Failure 409 {object} gin.H "Round already completed"
// @Router /trainer/sessions/{sessionId}/rounds/{roundId} [put]
func (h *RoundHandler) UpdateRound(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	roundID, ok := objectIDParam(c, "roundId")
	if !ok {
		return
	}
	var req SaveRoundRequest
	if !bindJSON(c, &req) {
		return
	}
	planned, err := req.toPlan()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	savedID, err := h.roundService.SaveRound(c.Request.Context(), callerFromContext(c), service.SaveRoundInput{
		SessionID:    sessionID,
		RoundID:      &roundID,
		IsFinalRound: req.IsFinalRound,
		Exercises:    planned,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveRoundResponse{RoundID: savedID.Hex()})
}

// ReleaseRound godoc
// @Summary Release a draft round to the athlete
// @Tags Trainer
// @Security BearerAuth
// @Param roundId path string true "Round ID"
// @Success 204
// @Failure 409 {object} gin.H "Round is not a draft"
// @Router /trainer/rounds/{roundId}/release [post]
func (h *RoundHandler) ReleaseRound(c *gin.Context) {
	roundID, ok := objectIDParam(c, "roundId")
	if !ok {
		return
	}
	if err := h.roundService.ReleaseRound(c.Request.Context(), callerFromContext(c), roundID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteRound godoc
// @Summary Delete a draft round
// @Tags Trainer
// @Security BearerAuth
// @Param roundId path string true "Round ID"
// @Success 204
// @Failure 409 {object} gin.H "Round is not a draft"
// @Router /trainer/rounds/{roundId} [delete]
func (h *RoundHandler) DeleteRound(c *gin.Context) {
	roundID, ok := objectIDParam(c, "roundId")
	if !ok {
		return
	}
	if err := h.roundService.DeleteRound(c.Request.Context(), callerFromContext(c), roundID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Athlete ---

// CompleteRound godoc
// @Summary Complete a released round with feedback
// @Description Completing the final round also completes the session.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roundId path string true "Round ID"
// @Param feedback body CompleteRoundRequest true "Per-exercise feedback"
// @Success 200 {object} service.CompletionResult
// @Failure 400 {object} gin.H "Feedback does not match the round"
// @Failure 409 {object} gin.H "Round is not released"
// @Router /rounds/{roundId}/complete [post]
func (h *RoundHandler) CompleteRound(c *gin.Context) {
	roundID, ok := objectIDParam(c, "roundId")
	if !ok {
		return
	}
	var req CompleteRoundRequest
	if !bindJSON(c, &req) {
		return
	}
	feedback, err := req.toFeedback()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.feedbackService.CompleteRound(c.Request.Context(), callerFromContext(c), roundID, feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
