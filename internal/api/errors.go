package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/backend"
)

// respondError translates the service error taxonomy to HTTP statuses.
// This is the only place that mapping lives; nothing store-specific ever
// reaches a client. PermissionDenied (403) and ObjectNotFound (404) stay
// distinct because clients branch on the difference.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, backend.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
	case errors.Is(err, backend.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, backend.ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, backend.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
	case errors.Is(err, backend.ErrNickTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "nick already taken"})
	case errors.Is(err, backend.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already taken"})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
