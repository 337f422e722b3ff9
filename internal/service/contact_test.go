package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
	"backend/internal/service"
)

// statefulContactRepo holds one contact and applies updates in memory.
type statefulContactRepo struct {
	fakeContactRepo
	contact *models.Contact
	updates []repository.ContactUpdate
}

func (r *statefulContactRepo) GetByID(id int64) (*models.Contact, error) {
	if r.contact == nil || r.contact.ID != id {
		return nil, nil
	}
	copied := *r.contact
	return &copied, nil
}

func (r *statefulContactRepo) Update(id int64, upd repository.ContactUpdate) (*models.Contact, error) {
	if r.contact == nil || r.contact.ID != id {
		return nil, nil
	}
	r.updates = append(r.updates, upd)
	if upd.Rating != nil {
		r.contact.Rating = *upd.Rating
	}
	if upd.Category != nil {
		r.contact.Category = *upd.Category
	}
	if upd.Tags != nil {
		r.contact.Tags = *upd.Tags
	}
	if upd.Notes != nil {
		r.contact.Notes = upd.Notes
	}
	copied := *r.contact
	return &copied, nil
}

func (r *statefulContactRepo) Delete(id int64) (bool, error) {
	if r.contact == nil || r.contact.ID != id {
		return false, nil
	}
	r.contact = nil
	return true, nil
}

func newContactFixture() (service.ContactService, *statefulContactRepo) {
	repo := &statefulContactRepo{
		contact: &models.Contact{
			ID:             1,
			TelegramUserID: 555,
			FirstName:      "Anna",
			Rating:         3,
			Category:       models.CategoryOther,
			Tags:           models.StringList{"vip"},
		},
	}
	return service.NewContactService(repo, zap.NewNop()), repo
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestContactUpdateRejectsBadRating(t *testing.T) {
	svc, repo := newContactFixture()

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := svc.Update(1, service.ContactUpdateRequest{Rating: intPtr(rating)})
		assert.ErrorIs(t, err, service.ErrInvalidRating)
	}
	assert.Empty(t, repo.updates, "rejected requests must not reach the store")

	updated, err := svc.Update(1, service.ContactUpdateRequest{Rating: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
}

func TestContactUpdateRejectsWholeRequestOnBadField(t *testing.T) {
	svc, repo := newContactFixture()

	_, err := svc.Update(1, service.ContactUpdateRequest{
		Notes:  strPtr("good customer"),
		Rating: intPtr(9),
	})
	assert.ErrorIs(t, err, service.ErrInvalidRating)
	assert.Empty(t, repo.updates, "valid fields of a rejected request must not be applied")
}

func TestContactUpdateRejectsUnknownCategory(t *testing.T) {
	svc, _ := newContactFixture()

	_, err := svc.Update(1, service.ContactUpdateRequest{Category: strPtr("whale")})
	assert.ErrorIs(t, err, service.ErrInvalidCategory)

	updated, err := svc.Update(1, service.ContactUpdateRequest{Category: strPtr(models.CategoryClient)})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryClient, updated.Category)
}

func TestContactUpdateNotFound(t *testing.T) {
	svc, _ := newContactFixture()

	_, err := svc.Update(42, service.ContactUpdateRequest{Notes: strPtr("x")})
	assert.ErrorIs(t, err, service.ErrContactNotFound)
}

func TestContactTags(t *testing.T) {
	svc, _ := newContactFixture()

	contact, err := svc.AddTag(1, "lead-q2")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"vip", "lead-q2"}, contact.Tags)

	// Adding the same tag twice is a no-op.
	contact, err = svc.AddTag(1, "vip")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"vip", "lead-q2"}, contact.Tags)

	contact, err = svc.RemoveTag(1, "vip")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"lead-q2"}, contact.Tags)

	// Removing an absent tag changes nothing.
	contact, err = svc.RemoveTag(1, "missing")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"lead-q2"}, contact.Tags)
}

func TestContactDelete(t *testing.T) {
	svc, _ := newContactFixture()

	require.NoError(t, svc.Delete(1))
	assert.ErrorIs(t, svc.Delete(1), service.ErrContactNotFound)
}

func TestSetInteractionStatusValidation(t *testing.T) {
	svc, _ := newContactFixture()

	_, err := svc.SetInteractionStatus(1, 1, "paused", nil)
	assert.ErrorIs(t, err, service.ErrInvalidStatus)
}

func TestSearchValidatesFilter(t *testing.T) {
	svc, _ := newContactFixture()

	_, _, err := svc.Search(repository.ContactFilter{Rating: 7})
	assert.ErrorIs(t, err, service.ErrInvalidRating)

	_, _, err = svc.Search(repository.ContactFilter{Category: "whale"})
	assert.ErrorIs(t, err, service.ErrInvalidCategory)

	_, _, err = svc.Search(repository.ContactFilter{Query: "anna"})
	assert.NoError(t, err)
}
