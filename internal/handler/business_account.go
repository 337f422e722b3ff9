package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BusinessAccountHandler interface {
	GetAccounts(c *gin.Context)
	GetAccountChats(c *gin.Context)
	GetAccountStats(c *gin.Context)
	SearchMessages(c *gin.Context)
	GetChatMessages(c *gin.Context)
	MarkChatRead(c *gin.Context)
	SendMessage(c *gin.Context)
	SendFile(c *gin.Context)
}

type businessAccountHandler struct {
	accounts service.BusinessAccountService
	logger   *zap.Logger
}

func NewBusinessAccountHandler(accounts service.BusinessAccountService, logger *zap.Logger) BusinessAccountHandler {
	return &businessAccountHandler{accounts: accounts, logger: logger}
}

// GetAccounts handles GET /api/v1/business/accounts. Rows sharing one Telegram
// user are already merged into a single virtual account.
func (h *businessAccountHandler) GetAccounts(c *gin.Context) {
	accounts, err := h.accounts.VirtualAccounts()
	if err != nil {
		h.logger.Error("Failed to get business accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve business accounts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// GetAccountChats handles GET /api/v1/business/accounts/:id/chats
func (h *businessAccountHandler) GetAccountChats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	chats, err := h.accounts.ChatsForAccount(id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business account not found"})
			return
		}
		h.logger.Error("Failed to get chats", zap.Int64("account_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetAccountStats handles GET /api/v1/business/accounts/:id/stats
func (h *businessAccountHandler) GetAccountStats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.accounts.AccountStats(id)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business account not found"})
			return
		}
		h.logger.Error("Failed to get account stats", zap.Int64("account_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SearchMessages handles GET /api/v1/business/accounts/:id/messages/search
func (h *businessAccountHandler) SearchMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter q is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.accounts.SearchMessages(id, query, limit)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business account not found"})
			return
		}
		h.logger.Error("Failed to search messages", zap.Int64("account_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetChatMessages handles GET /api/v1/business/chats/:id/messages
func (h *businessAccountHandler) GetChatMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 199 {
		limit = 50
	}

	// Fetch one extra row to tell the client whether more pages exist.
	messages, err := h.accounts.ChatMessages(id, limit+1, offset)
	if err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		h.logger.Error("Failed to get messages", zap.Int64("chat_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "has_more": hasMore})
}

// MarkChatRead handles POST /api/v1/business/chats/:id/read
func (h *businessAccountHandler) MarkChatRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.accounts.MarkChatRead(id); err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		h.logger.Error("Failed to mark chat read", zap.Int64("chat_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark chat read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendMessageRequest struct {
	BusinessAccountID int64  `json:"business_account_id" binding:"required"`
	Text              string `json:"text" binding:"required"`
	ReplyTo           int64  `json:"reply_to_message_id"`
}

// SendMessage handles POST /api/v1/business/chats/:id/send
func (h *businessAccountHandler) SendMessage(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	msg, err := h.accounts.SendTextMessage(c.Request.Context(), userID, req.BusinessAccountID, chatID, req.Text, req.ReplyTo)
	if err != nil {
		h.respondSendError(c, chatID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type sendFileRequest struct {
	BusinessAccountID int64  `json:"business_account_id" binding:"required"`
	Kind              string `json:"kind" binding:"required"`
	FileID            string `json:"file_id" binding:"required"`
	Caption           string `json:"caption"`
}

// SendFile handles POST /api/v1/business/chats/:id/send-file
func (h *businessAccountHandler) SendFile(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	msg, err := h.accounts.SendFileMessage(c.Request.Context(), userID, req.BusinessAccountID, chatID, req.Kind, req.FileID, req.Caption)
	if err != nil {
		h.respondSendError(c, chatID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *businessAccountHandler) respondSendError(c *gin.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Business account not found"})
	case errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
	case errors.Is(err, service.ErrReplyNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Replying is not allowed on this connection"})
	case errors.Is(err, service.ErrKeyNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Telegram bot token is not configured"})
	default:
		h.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
	}
}

// pathID parses the :name path parameter as an int64, responding 400 itself on
// bad input.
func pathID(c *gin.Context, name string) (int64, bool) {
	idStr := c.Param(name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}
