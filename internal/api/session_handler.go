package api

import (
	"net/http"

	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session lifecycle to athletes and trainers.
type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- Athlete ---

// StartSession godoc
// @Summary Start a training session
// @Description Opens a WAITING session for the calling athlete and their assigned trainer.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 201 {object} domain.TrainingSession
// @Failure 412 {object} gin.H "No trainer assigned or a session is already open"
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	session, err := h.sessionService.StartSession(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetCurrentSession godoc
// @Summary The athlete's open session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.TrainingSession
// @Failure 404 {object} gin.H "No open session"
// @Router /sessions/current [get]
func (h *SessionHandler) GetCurrentSession(c *gin.Context) {
	session, err := h.sessionService.GetCurrentSession(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetSessionHistory godoc
// @Summary All of the athlete's sessions, newest first
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.TrainingSession
// @Router /sessions/history [get]
func (h *SessionHandler) GetSessionHistory(c *gin.Context) {
	sessions, err := h.sessionService.GetSessionHistory(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetAthleteSession godoc
// @Summary The athlete's view of a session
// @Description Only released and completed rounds are included.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.SessionDetail
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) GetAthleteSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	detail, err := h.sessionService.GetAthleteSession(c.Request.Context(), callerFromContext(c), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CancelSession godoc
// @Summary Cancel an open session
// @Description Allowed for the session's athlete and its joined trainer.
// @Tags Sessions
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 204
// @Failure 403 {object} gin.H "Not a participant"
// @Failure 409 {object} gin.H "Session already finished"
// @Router /sessions/{sessionId}/cancel [post]
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	if err := h.sessionService.CancelSession(c.Request.Context(), callerFromContext(c), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Trainer ---

// GetTrainerSessions godoc
// @Summary Waiting and active sessions of the trainer's athletes
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.TrainerSessions
// @Router /trainer/sessions [get]
func (h *SessionHandler) GetTrainerSessions(c *gin.Context) {
	sessions, err := h.sessionService.GetActiveSessionsForTrainer(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// JoinSession godoc
// @Summary Join a waiting session
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.TrainingSession
// @Failure 403 {object} gin.H "Athlete is not assigned to this trainer"
// @Failure 409 {object} gin.H "Session is not waiting"
// @Router /trainer/sessions/{sessionId}/join [post]
func (h *SessionHandler) JoinSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	session, err := h.sessionService.JoinSession(c.Request.Context(), callerFromContext(c), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetTrainerSession godoc
// @Summary The joined trainer's view of a session
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.SessionDetail
// @Failure 404 {object} gin.H "Session not found"
// @Router /trainer/sessions/{sessionId} [get]
func (h *SessionHandler) GetTrainerSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	detail, err := h.sessionService.GetTrainerSession(c.Request.Context(), callerFromContext(c), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
