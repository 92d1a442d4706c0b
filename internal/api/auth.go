package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/auth"
	"github.com/ProjectPlatform/Server/internal/service"
)

// AuthHandler serves the public endpoints: registration, confirmation and
// login. Everything else requires the token these produce.
type AuthHandler struct {
	users     *service.Users
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(users *service.Users, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type registerRequest struct {
	Nick     string `json:"nick" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Nick     string `json:"nick" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type confirmRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, code, err := h.users.Register(c.Request.Context(), req.Nick, req.Password, req.Email, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// The delivery channel for verification codes (mail, SMS) lives
	// outside this service; the code is surfaced in the log for now.
	if code != "" {
		h.logger.Info("verification code issued", zap.Int64("user_id", user.ID))
	}

	c.JSON(http.StatusCreated, user)
}

// Confirm handles POST /v1/auth/confirm
func (h *AuthHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.Confirm(c.Request.Context(), req.UserID, req.Code); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type reissueRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// Reissue handles POST /v1/auth/reissue
//
// Replaces a lost or expired verification code for an unconfirmed account.
func (h *AuthHandler) Reissue(c *gin.Context) {
	var req reissueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code, err := h.users.ReissueCode(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if code != "" {
		h.logger.Info("verification code reissued", zap.Int64("user_id", req.UserID))
	}

	c.Status(http.StatusNoContent)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Nick, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Nick, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token})
}
