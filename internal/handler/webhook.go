package handler

import (
	"encoding/json"
	"net/http"

	"backend/internal/service"
	"backend/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler interface {
	HandleUpdate(c *gin.Context)
}

type webhookHandler struct {
	normalizer *webhook.Normalizer
	accounts   service.BusinessAccountService
	logger     *zap.Logger
}

func NewWebhookHandler(normalizer *webhook.Normalizer, accounts service.BusinessAccountService, logger *zap.Logger) WebhookHandler {
	return &webhookHandler{normalizer: normalizer, accounts: accounts, logger: logger}
}

// HandleUpdate handles POST /webhook. Telegram retries any non-200 response,
// so every update is acknowledged with ok even when processing fails; failures
// are logged instead of surfaced.
func (h *webhookHandler) HandleUpdate(c *gin.Context) {
	var update webhook.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		h.logger.Warn("Failed to decode webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	intent := h.normalizer.Normalize(&update)
	if intent == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var err error
	switch i := intent.(type) {
	case webhook.ConnectionIntent:
		err = h.accounts.HandleConnectionUpdate(i)
	case webhook.MessageIntent:
		err = h.accounts.SaveIncomingMessage(i)
	case webhook.DeletedIntent:
		h.accounts.HandleDeletedMessages(i)
	}
	if err != nil {
		h.logger.Error("Failed to process webhook update",
			zap.Int64("update_id", update.UpdateID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
