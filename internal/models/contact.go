package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Contact categories.
const (
	CategoryLead    = "lead"
	CategoryClient  = "client"
	CategoryPartner = "partner"
	CategorySpam    = "spam"
	CategoryOther   = "other"
)

// Interaction statuses.
const (
	InteractionActive   = "active"
	InteractionBlocked  = "blocked"
	InteractionArchived = "archived"
)

// Contact sources. Telegram reports more chat kinds than these two; everything
// that is not a direct chat is recorded as a group contact.
const (
	SourcePrivate = "private"
	SourceGroup   = "group"
)

// UsernameChange is one entry of a contact's append-only username history.
type UsernameChange struct {
	Username  string    `json:"username"`
	ChangedAt time.Time `json:"changed_at"`
}

// UsernameHistory is stored as a jsonb column, ordered by change time.
type UsernameHistory []UsernameChange

func (h UsernameHistory) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

func (h *UsernameHistory) Scan(src interface{}) error {
	if src == nil {
		*h = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into UsernameHistory", src)
	}
	return json.Unmarshal(b, h)
}

// StringList is a jsonb-backed list of strings (contact tags).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	return json.Unmarshal(b, l)
}

// Contact is a customer keyed globally by telegram_user_id, independent of which
// business account it talked to.
type Contact struct {
	ID               int64           `db:"id" json:"id"`
	TelegramUserID   int64           `db:"telegram_user_id" json:"telegram_user_id"`
	FirstName        string          `db:"first_name" json:"first_name"`
	LastName         *string         `db:"last_name" json:"last_name,omitempty"`
	Username         *string         `db:"username" json:"username,omitempty"`
	UsernameHistory  UsernameHistory `db:"username_history" json:"username_history,omitempty"`
	Rating           int             `db:"rating" json:"rating"`
	Category         string          `db:"category" json:"category"`
	Source           string          `db:"source" json:"source"` // private, group
	Tags             StringList      `db:"tags" json:"tags,omitempty"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	RegistrationDate *time.Time      `db:"registration_date" json:"registration_date,omitempty"`
	BrandName        *string         `db:"brand_name" json:"brand_name,omitempty"`
	Position         *string         `db:"position" json:"position,omitempty"`
	YearsInMarket    *int            `db:"years_in_market" json:"years_in_market,omitempty"`
	TotalMessages    int             `db:"total_messages" json:"total_messages"`
	LastContact      *time.Time      `db:"last_contact" json:"last_contact,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ContactInteraction is the many-to-many edge between a Contact and a business
// account. At most one row exists per (contact_id, business_account_id).
type ContactInteraction struct {
	ID                int64     `db:"id" json:"id"`
	ContactID         int64     `db:"contact_id" json:"contact_id"`
	BusinessAccountID int64     `db:"business_account_id" json:"business_account_id"`
	MessagesCount     int       `db:"messages_count" json:"messages_count"`
	FirstInteraction  time.Time `db:"first_interaction" json:"first_interaction"`
	LastInteraction   time.Time `db:"last_interaction" json:"last_interaction"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ContactStats is the aggregate returned by the contact stats endpoint.
type ContactStats struct {
	TotalContacts       int                  `json:"total_contacts"`
	NewContactsToday    int                  `json:"new_contacts_today"`
	NewContactsWeek     int                  `json:"new_contacts_week"`
	ContactsByCategory  map[string]int       `json:"contacts_by_category"`
	ContactsByRating    map[int]int          `json:"contacts_by_rating"`
	TopBusinessAccounts []BusinessAccountRef `json:"top_business_accounts"`
}

// BusinessAccountRef is a short reference used inside ContactStats.
type BusinessAccountRef struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	ContactsCount int    `json:"contacts_count"`
}

// ValidCategory reports whether c is one of the fixed contact categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryLead, CategoryClient, CategoryPartner, CategorySpam, CategoryOther:
		return true
	}
	return false
}
