package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/service"
)

// UserHandler serves the authenticated user's own account.
type UserHandler struct {
	users  *service.Users
	logger *zap.Logger
}

func NewUserHandler(users *service.Users, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

type deviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// AddDeviceToken handles POST /v1/users/me/devices
func (h *UserHandler) AddDeviceToken(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.AddDeviceToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveDeviceToken handles DELETE /v1/users/me/devices
func (h *UserHandler) RemoveDeviceToken(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.RemoveDeviceToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /v1/users/me
//
// The account row is removed; authored messages and owned chats are handed
// over to the deleted-user sentinel so chat history stays readable.
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
