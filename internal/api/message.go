package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/service"
)

// MessageHandler serves message CRUD and queries.
type MessageHandler struct {
	messages *service.Messages
	logger   *zap.Logger
}

func NewMessageHandler(messages *service.Messages, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	Body        string   `json:"body" binding:"required"`
	Tags        []string `json:"tags"`
	Attachments []int64  `json:"attachments"`
}

// Send handles POST /v1/chats/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.GetUserID(c),
		chatID, req.Body, req.Tags, req.Attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// Get handles GET /v1/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), middleware.GetUserID(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Edit handles PUT /v1/messages/:id
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), middleware.GetUserID(c),
		messageID, req.Body, req.Tags, req.Attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	deleted, err := h.messages.Delete(c.Request.Context(), middleware.GetUserID(c), messageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resultResponse{Result: deleted})
}

// Range handles GET /v1/chats/:id/messages?lower_id=&upper_id=&limit=
//
// The bounds are message ids resolved to their sent times; at least one is
// required.
func (h *MessageHandler) Range(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	parseBound := func(name string) (*int64, bool) {
		v := c.Query(name)
		if v == "" {
			return nil, true
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return nil, false
		}
		return &id, true
	}

	lowerID, ok := parseBound("lower_id")
	if !ok {
		return
	}
	upperID, ok := parseBound("upper_id")
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	msgs, err := h.messages.Range(c.Request.Context(), middleware.GetUserID(c),
		chatID, lowerID, upperID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// WithTag handles GET /v1/chats/:id/messages/tagged/:tag
func (h *MessageHandler) WithTag(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	msgs, err := h.messages.WithTag(c.Request.Context(), middleware.GetUserID(c),
		chatID, c.Param("tag"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}
