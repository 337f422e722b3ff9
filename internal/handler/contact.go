package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ContactHandler interface {
	ListContacts(c *gin.Context)
	GetContact(c *gin.Context)
	UpdateContact(c *gin.Context)
	DeleteContact(c *gin.Context)
	AddTag(c *gin.Context)
	RemoveTag(c *gin.Context)
	GetInteractions(c *gin.Context)
	UpdateInteractionStatus(c *gin.Context)
	GetStats(c *gin.Context)
	GetRecent(c *gin.Context)
	GetTop(c *gin.Context)
}

type contactHandler struct {
	contacts service.ContactService
	logger   *zap.Logger
}

func NewContactHandler(contacts service.ContactService, logger *zap.Logger) ContactHandler {
	return &contactHandler{contacts: contacts, logger: logger}
}

// ListContacts handles GET /api/v1/contacts
func (h *contactHandler) ListContacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	accountID, _ := strconv.ParseInt(c.Query("business_account_id"), 10, 64)
	rating, _ := strconv.Atoi(c.Query("rating"))

	filter := repository.ContactFilter{
		Query:             c.Query("q"),
		BusinessAccountID: accountID,
		Category:          c.Query("category"),
		Rating:            rating,
		Limit:             limit,
		Offset:            offset,
	}
	if tags := c.Query("tags"); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	contacts, total, err := h.contacts.Search(filter)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRating) || errors.Is(err, service.ErrInvalidCategory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to search contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "total": total, "limit": filter.Limit, "offset": filter.Offset})
}

// GetContact handles GET /api/v1/contacts/:id
func (h *contactHandler) GetContact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	contact, err := h.contacts.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to get contact", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

// UpdateContact handles PUT /api/v1/contacts/:id. Validation is synchronous;
// a request with any invalid field is rejected whole.
func (h *contactHandler) UpdateContact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ContactUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	contact, err := h.contacts.Update(id, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContactNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		case errors.Is(err, service.ErrInvalidRating), errors.Is(err, service.ErrInvalidCategory):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to update contact", zap.Int64("contact_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

// DeleteContact handles DELETE /api/v1/contacts/:id
func (h *contactHandler) DeleteContact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.contacts.Delete(id); err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to delete contact", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type tagRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// AddTag handles POST /api/v1/contacts/:id/tags
func (h *contactHandler) AddTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	contact, err := h.contacts.AddTag(id, req.Tag)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to add tag", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add tag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

// RemoveTag handles DELETE /api/v1/contacts/:id/tags/:tag
func (h *contactHandler) RemoveTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tag := c.Param("tag")
	contact, err := h.contacts.RemoveTag(id, tag)
	if err != nil {
		if errors.Is(err, service.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to remove tag", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove tag"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact": contact})
}

// GetInteractions handles GET /api/v1/contacts/:id/interactions
func (h *contactHandler) GetInteractions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	interactions, err := h.contacts.Interactions(id)
	if err != nil {
		h.logger.Error("Failed to get interactions", zap.Int64("contact_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve interactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": interactions})
}

type interactionStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// UpdateInteractionStatus handles PUT /api/v1/contacts/:id/interactions/:account_id
func (h *contactHandler) UpdateInteractionStatus(c *gin.Context) {
	contactID, ok := pathID(c, "id")
	if !ok {
		return
	}
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	var req interactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	interaction, err := h.contacts.SetInteractionStatus(contactID, accountID, req.Status, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContactNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Interaction not found"})
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to update interaction",
				zap.Int64("contact_id", contactID), zap.Int64("account_id", accountID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update interaction"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"interaction": interaction})
}

// GetStats handles GET /api/v1/contacts/stats
func (h *contactHandler) GetStats(c *gin.Context) {
	accountID, _ := strconv.ParseInt(c.Query("business_account_id"), 10, 64)
	stats, err := h.contacts.Stats(accountID)
	if err != nil {
		h.logger.Error("Failed to get contact stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetRecent handles GET /api/v1/contacts/recent
func (h *contactHandler) GetRecent(c *gin.Context) {
	accountID, _ := strconv.ParseInt(c.Query("business_account_id"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	contacts, err := h.contacts.Recent(accountID, limit)
	if err != nil {
		h.logger.Error("Failed to get recent contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// GetTop handles GET /api/v1/contacts/top
func (h *contactHandler) GetTop(c *gin.Context) {
	accountID, _ := strconv.ParseInt(c.Query("business_account_id"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	contacts, err := h.contacts.TopByMessages(accountID, limit)
	if err != nil {
		h.logger.Error("Failed to get top contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve contacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}
