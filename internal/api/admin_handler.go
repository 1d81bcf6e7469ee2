package api

import (
	"net/http"

	"alcyxob/coach-sessions/internal/domain"
	"alcyxob/coach-sessions/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminHandler exposes account management.
type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

type CreateUserRequest struct {
	Name     string        `json:"name" binding:"required"`
	Email    string        `json:"email" binding:"required,email"`
	Password string        `json:"password" binding:"required"`
	Roles    []domain.Role `json:"roles" binding:"required,min=1"`
}

type SetActiveRequest struct {
	// Pointer so that an explicit false passes "required".
	Active *bool `json:"active" binding:"required"`
}

type SetRolesRequest struct {
	Roles []domain.Role `json:"roles" binding:"required,min=1"`
}

// AssignTrainerRequest unassigns when TrainerID is omitted or null.
type AssignTrainerRequest struct {
	TrainerID *string `json:"trainerId"`
}

// CreateUser godoc
// @Summary Create a user account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body CreateUserRequest true "Account details"
// @Success 201 {object} UserResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 412 {object} gin.H "Email already taken"
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.CreateUser(c.Request.Context(), callerFromContext(c), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// ListUsers godoc
// @Summary List all users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context(), callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(users))
}

// SetUserActive godoc
// @Summary Activate or deactivate a user
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param body body SetActiveRequest true "Active flag"
// @Success 204
// @Failure 404 {object} gin.H "User not found"
// @Router /admin/users/{userId}/active [put]
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.adminService.SetUserActive(c.Request.Context(), callerFromContext(c), userID, *req.Active); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetUserRoles godoc
// @Summary Replace a user's role set
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param body body SetRolesRequest true "Roles"
// @Success 204
// @Failure 400 {object} gin.H "Unknown role"
// @Router /admin/users/{userId}/roles [put]
func (h *AdminHandler) SetUserRoles(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	var req SetRolesRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.adminService.SetUserRoles(c.Request.Context(), callerFromContext(c), userID, req.Roles); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignTrainer godoc
// @Summary Assign or unassign an athlete's trainer
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param userId path string true "Athlete ID"
// @Param body body AssignTrainerRequest true "Trainer ID, null to unassign"
// @Success 204
// @Failure 400 {object} gin.H "Target is not a trainer or user is not an athlete"
// @Router /admin/users/{userId}/trainer [put]
func (h *AdminHandler) AssignTrainer(c *gin.Context) {
	athleteID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	var req AssignTrainerRequest
	if !bindJSON(c, &req) {
		return
	}

	var trainerID *primitive.ObjectID
	if req.TrainerID != nil {
		id, err := primitive.ObjectIDFromHex(*req.TrainerID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid trainerId format")
			return
		}
		trainerID = &id
	}

	if err := h.adminService.AssignTrainer(c.Request.Context(), callerFromContext(c), athleteID, trainerID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
