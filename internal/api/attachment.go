package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/service"
)

const maxUploadBytes = 32 << 20

// AttachmentHandler serves attachment upload, metadata and download.
type AttachmentHandler struct {
	attachments *service.Attachments
	logger      *zap.Logger
}

func NewAttachmentHandler(attachments *service.Attachments, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, logger: logger}
}

// Upload handles POST /v1/attachments (multipart form).
//
// Fields: file (required), description, public, showable.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	public, _ := strconv.ParseBool(c.PostForm("public"))
	showable, _ := strconv.ParseBool(c.PostForm("showable"))

	att, err := h.attachments.Upload(c.Request.Context(), middleware.GetUserID(c),
		data, fileHeader.Filename, c.PostForm("description"), public, showable)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, att)
}

// Get handles GET /v1/attachments/:id
func (h *AttachmentHandler) Get(c *gin.Context) {
	attachmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	att, err := h.attachments.Get(c.Request.Context(), middleware.GetUserID(c), attachmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, att)
}

// Download handles GET /v1/attachments/:id/content
func (h *AttachmentHandler) Download(c *gin.Context) {
	attachmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	path, err := h.attachments.Resolve(c.Request.Context(), middleware.GetUserID(c), attachmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.File(path)
}
