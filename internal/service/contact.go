package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidCategory = errors.New("unknown contact category")
	ErrInvalidStatus   = errors.New("unknown interaction status")
)

// ContactUpdateRequest carries the CRM fields an operator may change. Nil
// means "leave unchanged".
type ContactUpdateRequest struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Username      *string `json:"username"`
	Rating        *int    `json:"rating"`
	Category      *string `json:"category"`
	Tags          *[]string `json:"tags"`
	Notes         *string `json:"notes"`
	BrandName     *string `json:"brand_name"`
	Position      *string `json:"position"`
	YearsInMarket *int    `json:"years_in_market"`
}

type ContactService interface {
	Get(id int64) (*models.Contact, error)
	GetByTelegramID(telegramUserID int64) (*models.Contact, error)
	Update(id int64, req ContactUpdateRequest) (*models.Contact, error)
	Delete(id int64) error
	AddTag(id int64, tag string) (*models.Contact, error)
	RemoveTag(id int64, tag string) (*models.Contact, error)
	SetInteractionStatus(contactID, businessAccountID int64, status string, notes *string) (*models.ContactInteraction, error)
	Interactions(contactID int64) ([]models.ContactInteraction, error)
	Search(filter repository.ContactFilter) ([]models.Contact, int, error)
	Recent(businessAccountID int64, limit int) ([]models.Contact, error)
	TopByMessages(businessAccountID int64, limit int) ([]models.Contact, error)
	Stats(businessAccountID int64) (*models.ContactStats, error)
}

type contactService struct {
	contactRepo repository.ContactRepository
	logger      *zap.Logger
}

func NewContactService(contactRepo repository.ContactRepository, logger *zap.Logger) ContactService {
	return &contactService{contactRepo: contactRepo, logger: logger}
}

func (s *contactService) Get(id int64) (*models.Contact, error) {
	contact, err := s.contactRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	return contact, nil
}

func (s *contactService) GetByTelegramID(telegramUserID int64) (*models.Contact, error) {
	contact, err := s.contactRepo.GetByTelegramID(telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	return contact, nil
}

// Update validates the request synchronously and rejects it whole on the
// first bad field. Valid fields of a rejected request are not applied.
func (s *contactService) Update(id int64, req ContactUpdateRequest) (*models.Contact, error) {
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, ErrInvalidRating
	}
	if req.Category != nil && !models.ValidCategory(*req.Category) {
		return nil, ErrInvalidCategory
	}

	upd := repository.ContactUpdate{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Username:      req.Username,
		Rating:        req.Rating,
		Category:      req.Category,
		Notes:         req.Notes,
		BrandName:     req.BrandName,
		Position:      req.Position,
		YearsInMarket: req.YearsInMarket,
	}
	if req.Tags != nil {
		tags := models.StringList(*req.Tags)
		upd.Tags = &tags
	}

	contact, err := s.contactRepo.Update(id, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	return contact, nil
}

func (s *contactService) Delete(id int64) error {
	deleted, err := s.contactRepo.Delete(id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if !deleted {
		return ErrContactNotFound
	}
	s.logger.Info("Contact deleted", zap.Int64("contact_id", id))
	return nil
}

func (s *contactService) AddTag(id int64, tag string) (*models.Contact, error) {
	contact, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	for _, t := range contact.Tags {
		if t == tag {
			return contact, nil
		}
	}
	tags := append(models.StringList{}, contact.Tags...)
	tags = append(tags, tag)
	return s.Update(id, ContactUpdateRequest{Tags: (*[]string)(&tags)})
}

func (s *contactService) RemoveTag(id int64, tag string) (*models.Contact, error) {
	contact, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	tags := make(models.StringList, 0, len(contact.Tags))
	for _, t := range contact.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	if len(tags) == len(contact.Tags) {
		return contact, nil
	}
	return s.Update(id, ContactUpdateRequest{Tags: (*[]string)(&tags)})
}

func (s *contactService) SetInteractionStatus(contactID, businessAccountID int64, status string, notes *string) (*models.ContactInteraction, error) {
	switch status {
	case models.InteractionActive, models.InteractionBlocked, models.InteractionArchived:
	default:
		return nil, ErrInvalidStatus
	}
	interaction, err := s.contactRepo.UpdateInteractionStatus(contactID, businessAccountID, status, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to update interaction status: %w", err)
	}
	if interaction == nil {
		return nil, ErrContactNotFound
	}
	return interaction, nil
}

func (s *contactService) Interactions(contactID int64) ([]models.ContactInteraction, error) {
	interactions, err := s.contactRepo.ListInteractions(contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	return interactions, nil
}

func (s *contactService) Search(filter repository.ContactFilter) ([]models.Contact, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Rating != 0 && (filter.Rating < 1 || filter.Rating > 5) {
		return nil, 0, ErrInvalidRating
	}
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return nil, 0, ErrInvalidCategory
	}
	contacts, total, err := s.contactRepo.Search(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search contacts: %w", err)
	}
	return contacts, total, nil
}

func (s *contactService) Recent(businessAccountID int64, limit int) ([]models.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	contacts, err := s.contactRepo.Recent(businessAccountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent contacts: %w", err)
	}
	return contacts, nil
}

func (s *contactService) TopByMessages(businessAccountID int64, limit int) ([]models.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	contacts, err := s.contactRepo.TopByMessages(businessAccountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top contacts: %w", err)
	}
	return contacts, nil
}

func (s *contactService) Stats(businessAccountID int64) (*models.ContactStats, error) {
	stats, err := s.contactRepo.Stats(businessAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact stats: %w", err)
	}
	return stats, nil
}
