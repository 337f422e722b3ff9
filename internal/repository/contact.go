package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ContactUpdate carries the mutable CRM fields of a contact. Nil pointers mean
// "leave unchanged".
type ContactUpdate struct {
	FirstName     *string
	LastName      *string
	Username      *string
	Rating        *int
	Category      *string
	Tags          *models.StringList
	Notes         *string
	BrandName     *string
	Position      *string
	YearsInMarket *int
}

// ContactFilter narrows a paginated contact search.
type ContactFilter struct {
	Query             string
	BusinessAccountID int64
	Category          string
	Rating            int
	Tags              []string
	Limit             int
	Offset            int
}

type ContactRepository interface {
	GetByID(id int64) (*models.Contact, error)
	GetByTelegramID(telegramUserID int64) (*models.Contact, error)
	Update(id int64, upd ContactUpdate) (*models.Contact, error)
	Delete(id int64) (bool, error)
	Reconcile(q sqlx.Ext, telegramUserID, businessAccountID int64, firstName string, lastName, username *string, source string, now time.Time) (*models.Contact, error)
	ListInteractions(contactID int64) ([]models.ContactInteraction, error)
	UpdateInteractionStatus(contactID, businessAccountID int64, status string, notes *string) (*models.ContactInteraction, error)
	Search(filter ContactFilter) ([]models.Contact, int, error)
	Recent(businessAccountID int64, limit int) ([]models.Contact, error)
	TopByMessages(businessAccountID int64, limit int) ([]models.Contact, error)
	Stats(businessAccountID int64) (*models.ContactStats, error)
}

type contactRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewContactRepository(db *sqlx.DB, logger *zap.Logger) ContactRepository {
	return &contactRepository{db: db, logger: logger}
}

const contactColumns = `id, telegram_user_id, first_name, last_name, username, username_history, rating, category, source, tags, notes, registration_date, brand_name, position, years_in_market, total_messages, last_contact, created_at, updated_at`

const interactionColumns = `id, contact_id, business_account_id, messages_count, first_interaction, last_interaction, notes, status, created_at, updated_at`

func (r *contactRepository) GetByID(id int64) (*models.Contact, error) {
	var contact models.Contact
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	err := r.db.Get(&contact, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) GetByTelegramID(telegramUserID int64) (*models.Contact, error) {
	var contact models.Contact
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE telegram_user_id = $1`
	err := r.db.Get(&contact, query, telegramUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// Update applies CRM field changes. A username change appends the previous
// username to the history before overwriting; the history is append-only.
func (r *contactRepository) Update(id int64, upd ContactUpdate) (*models.Contact, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var contact models.Contact
	if err := tx.Get(&contact, `SELECT `+contactColumns+` FROM contacts WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if upd.Username != nil {
		contact.UsernameHistory = appendUsernameHistory(contact.UsernameHistory, contact.Username, *upd.Username, time.Now())
		contact.Username = nilIfEmpty(*upd.Username)
	}
	if upd.FirstName != nil {
		contact.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		contact.LastName = nilIfEmpty(*upd.LastName)
	}
	if upd.Rating != nil {
		contact.Rating = *upd.Rating
	}
	if upd.Category != nil {
		contact.Category = *upd.Category
	}
	if upd.Tags != nil {
		contact.Tags = *upd.Tags
	}
	if upd.Notes != nil {
		contact.Notes = upd.Notes
	}
	if upd.BrandName != nil {
		contact.BrandName = upd.BrandName
	}
	if upd.Position != nil {
		contact.Position = upd.Position
	}
	if upd.YearsInMarket != nil {
		contact.YearsInMarket = upd.YearsInMarket
	}

	query := `UPDATE contacts SET first_name = $2, last_name = $3, username = $4, username_history = $5, rating = $6, category = $7, tags = $8, notes = $9, brand_name = $10, position = $11, years_in_market = $12, updated_at = NOW()
	          WHERE id = $1 RETURNING ` + contactColumns
	if err := tx.QueryRowx(query, id, contact.FirstName, contact.LastName, contact.Username, contact.UsernameHistory, contact.Rating, contact.Category, contact.Tags, contact.Notes, contact.BrandName, contact.Position, contact.YearsInMarket).StructScan(&contact); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) Delete(id int64) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Reconcile upserts the contact keyed globally by telegram_user_id and the
// (contact, business account) interaction edge, all on the caller's
// transaction. Display fields from Telegram are authoritative; total_messages
// and the per-edge counter each advance by one.
func (r *contactRepository) Reconcile(q sqlx.Ext, telegramUserID, businessAccountID int64, firstName string, lastName, username *string, source string, now time.Time) (*models.Contact, error) {
	var contact models.Contact
	err := sqlx.Get(q, &contact, `SELECT `+contactColumns+` FROM contacts WHERE telegram_user_id = $1 FOR UPDATE`, telegramUserID)
	switch {
	case err == sql.ErrNoRows:
		insert := `INSERT INTO contacts (telegram_user_id, first_name, last_name, username, source, total_messages, last_contact)
		           VALUES ($1, $2, $3, $4, $5, 1, $6)
		           RETURNING ` + contactColumns
		if err := sqlx.Get(q, &contact, insert, telegramUserID, firstName, lastName, username, source, now); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		incoming := ""
		if username != nil {
			incoming = *username
		}
		history := appendUsernameHistory(contact.UsernameHistory, contact.Username, incoming, now)
		update := `UPDATE contacts SET first_name = $2, last_name = $3, username = $4, username_history = $5, total_messages = total_messages + 1, last_contact = $6, updated_at = NOW()
		           WHERE telegram_user_id = $1 RETURNING ` + contactColumns
		if err := sqlx.Get(q, &contact, update, telegramUserID, firstName, lastName, username, history, now); err != nil {
			return nil, err
		}
	}

	edge := `INSERT INTO contact_business_interactions (contact_id, business_account_id, messages_count, first_interaction, last_interaction)
	         VALUES ($1, $2, 1, $3, $3)
	         ON CONFLICT (contact_id, business_account_id) DO UPDATE SET
	             messages_count = contact_business_interactions.messages_count + 1,
	             last_interaction = EXCLUDED.last_interaction,
	             updated_at = NOW()`
	if _, err := q.Exec(edge, contact.ID, businessAccountID, now); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) ListInteractions(contactID int64) ([]models.ContactInteraction, error) {
	var interactions []models.ContactInteraction
	query := `SELECT ` + interactionColumns + ` FROM contact_business_interactions WHERE contact_id = $1 ORDER BY last_interaction DESC`
	err := r.db.Select(&interactions, query, contactID)
	return interactions, err
}

func (r *contactRepository) UpdateInteractionStatus(contactID, businessAccountID int64, status string, notes *string) (*models.ContactInteraction, error) {
	var interaction models.ContactInteraction
	query := `UPDATE contact_business_interactions
	          SET status = $3, notes = COALESCE($4, notes), updated_at = NOW()
	          WHERE contact_id = $1 AND business_account_id = $2
	          RETURNING ` + interactionColumns
	err := r.db.QueryRowx(query, contactID, businessAccountID, status, notes).StructScan(&interaction)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &interaction, nil
}

func (r *contactRepository) Search(filter ContactFilter) ([]models.Contact, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	join := ""

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.BusinessAccountID != 0 {
		join = ` JOIN contact_business_interactions i ON i.contact_id = c.id`
		where = append(where, "i.business_account_id = "+arg(filter.BusinessAccountID))
	}
	if filter.Query != "" {
		p := arg("%" + filter.Query + "%")
		where = append(where, `(c.first_name ILIKE `+p+` OR c.last_name ILIKE `+p+` OR c.username ILIKE `+p+` OR c.brand_name ILIKE `+p+` OR c.position ILIKE `+p+` OR c.notes ILIKE `+p+`)`)
	}
	if filter.Category != "" {
		where = append(where, "c.category = "+arg(filter.Category))
	}
	if filter.Rating != 0 {
		where = append(where, "c.rating = "+arg(filter.Rating))
	}
	for _, tag := range filter.Tags {
		where = append(where, "c.tags @> "+arg(models.StringList{tag}))
	}

	cond := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(DISTINCT c.id) FROM contacts c` + join + ` WHERE ` + cond
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT DISTINCT c.id, c.telegram_user_id, c.first_name, c.last_name, c.username, c.username_history, c.rating, c.category, c.source, c.tags, c.notes, c.registration_date, c.brand_name, c.position, c.years_in_market, c.total_messages, c.last_contact, c.created_at, c.updated_at
	          FROM contacts c` + join + ` WHERE ` + cond + `
	          ORDER BY c.last_contact DESC NULLS LAST
	          LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)

	var contacts []models.Contact
	if err := r.db.Select(&contacts, query, args...); err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *contactRepository) Recent(businessAccountID int64, limit int) ([]models.Contact, error) {
	var contacts []models.Contact
	if businessAccountID != 0 {
		query := `SELECT c.` + strings.ReplaceAll(contactColumns, ", ", ", c.") + `
		          FROM contacts c JOIN contact_business_interactions i ON i.contact_id = c.id
		          WHERE i.business_account_id = $1 ORDER BY c.created_at DESC LIMIT $2`
		err := r.db.Select(&contacts, query, businessAccountID, limit)
		return contacts, err
	}
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at DESC LIMIT $1`
	err := r.db.Select(&contacts, query, limit)
	return contacts, err
}

func (r *contactRepository) TopByMessages(businessAccountID int64, limit int) ([]models.Contact, error) {
	var contacts []models.Contact
	if businessAccountID != 0 {
		query := `SELECT c.` + strings.ReplaceAll(contactColumns, ", ", ", c.") + `
		          FROM contacts c JOIN contact_business_interactions i ON i.contact_id = c.id
		          WHERE i.business_account_id = $1 ORDER BY c.total_messages DESC LIMIT $2`
		err := r.db.Select(&contacts, query, businessAccountID, limit)
		return contacts, err
	}
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY total_messages DESC LIMIT $1`
	err := r.db.Select(&contacts, query, limit)
	return contacts, err
}

func (r *contactRepository) Stats(businessAccountID int64) (*models.ContactStats, error) {
	stats := &models.ContactStats{
		ContactsByCategory: map[string]int{},
		ContactsByRating:   map[int]int{},
	}

	base := `FROM contacts c`
	args := []interface{}{}
	cond := ``
	if businessAccountID != 0 {
		base += ` JOIN contact_business_interactions i ON i.contact_id = c.id`
		cond = ` WHERE i.business_account_id = $1`
		args = append(args, businessAccountID)
	}

	if err := r.db.Get(&stats.TotalContacts, `SELECT COUNT(DISTINCT c.id) `+base+cond, args...); err != nil {
		return nil, err
	}
	if err := r.db.Get(&stats.NewContactsToday, `SELECT COUNT(DISTINCT c.id) `+base+whereAnd(cond, `c.created_at::date = CURRENT_DATE`), args...); err != nil {
		return nil, err
	}
	if err := r.db.Get(&stats.NewContactsWeek, `SELECT COUNT(DISTINCT c.id) `+base+whereAnd(cond, `c.created_at >= NOW() - INTERVAL '7 days'`), args...); err != nil {
		return nil, err
	}

	type categoryRow struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	var categories []categoryRow
	if err := r.db.Select(&categories, `SELECT c.category, COUNT(DISTINCT c.id) AS count `+base+cond+` GROUP BY c.category`, args...); err != nil {
		return nil, err
	}
	for _, row := range categories {
		stats.ContactsByCategory[row.Category] = row.Count
	}

	type ratingRow struct {
		Rating int `db:"rating"`
		Count  int `db:"count"`
	}
	var ratings []ratingRow
	if err := r.db.Select(&ratings, `SELECT c.rating, COUNT(DISTINCT c.id) AS count `+base+cond+` GROUP BY c.rating`, args...); err != nil {
		return nil, err
	}
	for _, row := range ratings {
		stats.ContactsByRating[row.Rating] = row.Count
	}

	if businessAccountID == 0 {
		type topRow struct {
			ID            int64   `db:"id"`
			FirstName     string  `db:"first_name"`
			LastName      *string `db:"last_name"`
			Username      *string `db:"username"`
			ContactsCount int     `db:"contacts_count"`
		}
		var top []topRow
		query := `SELECT a.id, a.first_name, a.last_name, a.username, COUNT(i.contact_id) AS contacts_count
		          FROM business_accounts a JOIN contact_business_interactions i ON i.business_account_id = a.id
		          GROUP BY a.id, a.first_name, a.last_name, a.username
		          ORDER BY contacts_count DESC LIMIT 5`
		if err := r.db.Select(&top, query); err != nil {
			return nil, err
		}
		for _, row := range top {
			name := row.FirstName
			if row.LastName != nil && *row.LastName != "" {
				name += " " + *row.LastName
			}
			username := ""
			if row.Username != nil {
				username = *row.Username
			}
			stats.TopBusinessAccounts = append(stats.TopBusinessAccounts, models.BusinessAccountRef{
				ID:            row.ID,
				Name:          name,
				Username:      username,
				ContactsCount: row.ContactsCount,
			})
		}
	}

	return stats, nil
}

// appendUsernameHistory records the old username when it differs from the
// incoming one. Same username again adds no entry.
func appendUsernameHistory(history models.UsernameHistory, current *string, incoming string, now time.Time) models.UsernameHistory {
	if current == nil || *current == "" || *current == incoming {
		return history
	}
	return append(history, models.UsernameChange{Username: *current, ChangedAt: now})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func whereAnd(cond, extra string) string {
	if cond == "" {
		return ` WHERE ` + extra
	}
	return cond + ` AND ` + extra
}
