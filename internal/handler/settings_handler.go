package handler

import (
	"errors"
	"net/http"

	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SettingsHandler interface {
	ListAPIKeys(c *gin.Context)
	SetAPIKey(c *gin.Context)
	DeleteAPIKey(c *gin.Context)
}

type settingsHandler struct {
	settings service.SettingsService
	logger   *zap.Logger
}

func NewSettingsHandler(settings service.SettingsService, logger *zap.Logger) SettingsHandler {
	return &settingsHandler{settings: settings, logger: logger}
}

// ListAPIKeys handles GET /api/v1/settings/keys. Values are masked; the
// decrypted credentials never leave the service layer.
func (h *settingsHandler) ListAPIKeys(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	keys, err := h.settings.ListAPIKeys(userID)
	if err != nil {
		h.logger.Error("Failed to list api keys", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve api keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

type setAPIKeyRequest struct {
	KeyType string `json:"key_type" binding:"required"`
	Value   string `json:"value" binding:"required"`
}

// SetAPIKey handles PUT /api/v1/settings/keys
func (h *settingsHandler) SetAPIKey(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req setAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.settings.SetAPIKey(userID, req.KeyType, req.Value); err != nil {
		if errors.Is(err, service.ErrUnknownKeyType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown key type"})
			return
		}
		h.logger.Error("Failed to set api key", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store api key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteAPIKey handles DELETE /api/v1/settings/keys/:type
func (h *settingsHandler) DeleteAPIKey(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	keyType := c.Param("type")
	if err := h.settings.DeleteAPIKey(userID, keyType); err != nil {
		if errors.Is(err, service.ErrUnknownKeyType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown key type"})
			return
		}
		h.logger.Error("Failed to delete api key", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete api key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
