package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/repository"
	"github.com/ProjectPlatform/Server/internal/service"
)

// ChatHandler serves chat lifecycle and membership endpoints.
type ChatHandler struct {
	chats  *service.Chats
	logger *zap.Logger
}

func NewChatHandler(chats *service.Chats, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

type createChatRequest struct {
	Name      string `json:"name" binding:"required"`
	AvatarURI string `json:"avatar_uri"`
	Colour    int64  `json:"colour"`
	Encrypted bool   `json:"encrypted"`
}

// Create handles POST /v1/chats
func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.chats.Create(c.Request.Context(), middleware.GetUserID(c),
		req.Name, req.AvatarURI, req.Colour, req.Encrypted)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

type createPersonalRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreatePersonal handles POST /v1/chats/personal
func (h *ChatHandler) CreatePersonal(c *gin.Context) {
	var req createPersonalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.chats.CreatePersonal(c.Request.Context(), middleware.GetUserID(c), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// List handles GET /v1/chats and returns the caller's chat ids.
func (h *ChatHandler) List(c *gin.Context) {
	ids, err := h.chats.ChatsForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ids)
}

// GetInfo handles GET /v1/chats/:id
func (h *ChatHandler) GetInfo(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	info, err := h.chats.GetInfo(c.Request.Context(), middleware.GetUserID(c), chatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

type memberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type resultResponse struct {
	Result bool `json:"result"`
}

// AddUser handles POST /v1/chats/:id/members
func (h *ChatHandler) AddUser(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.chats.AddUser(c.Request.Context(), middleware.GetUserID(c), chatID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resultResponse{Result: added})
}

// RemoveUser handles DELETE /v1/chats/:id/members/:user_id
func (h *ChatHandler) RemoveUser(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	removed, err := h.chats.RemoveUser(c.Request.Context(), middleware.GetUserID(c), chatID, targetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resultResponse{Result: removed})
}

// MakeAdmin handles POST /v1/chats/:id/admins
func (h *ChatHandler) MakeAdmin(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promoted, err := h.chats.MakeUserAdmin(c.Request.Context(), middleware.GetUserID(c), chatID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resultResponse{Result: promoted})
}

// settableFlags maps the URL segment to a policy column.
var settableFlags = map[string]repository.ChatFlag{
	"user_expandable":         repository.FlagUserExpandable,
	"non_admin":               repository.FlagNonAdmin,
	"non_removable_messages":  repository.FlagNonRemovableMessages,
	"non_modifiable_messages": repository.FlagNonModifiableMessages,
	"auto_remove_messages":    repository.FlagAutoRemoveMessages,
	"digest_messages":         repository.FlagDigestMessages,
}

type setFlagRequest struct {
	Value  bool   `json:"value"`
	Period *int64 `json:"period,omitempty"`
}

// SetFlag handles PUT /v1/chats/:id/flags/:flag
func (h *ChatHandler) SetFlag(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	flag, known := settableFlags[c.Param("flag")]
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown flag"})
		return
	}

	var req setFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.chats.SetFlag(c.Request.Context(), middleware.GetUserID(c), chatID, flag, req.Value, req.Period)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resultResponse{Result: true})
}
