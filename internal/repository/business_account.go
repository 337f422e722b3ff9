package repository

import (
	"database/sql"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type BusinessAccountRepository interface {
	GetByConnectionID(connectionID string) (*models.BusinessAccount, error)
	GetByID(id int64) (*models.BusinessAccount, error)
	GetAll() ([]*models.BusinessAccount, error)
	GetByUserID(userID int64) ([]*models.BusinessAccount, error)
	EnabledUserIDs() ([]int64, error)
	Upsert(connectionID string, userID int64, firstName string, lastName, username *string, isEnabled, canReply bool) (*models.BusinessAccount, error)
}

type businessAccountRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewBusinessAccountRepository(db *sqlx.DB, logger *zap.Logger) BusinessAccountRepository {
	return &businessAccountRepository{db: db, logger: logger}
}

const businessAccountColumns = `id, business_connection_id, user_id, is_enabled, can_reply, first_name, last_name, username, created_at, updated_at`

func (r *businessAccountRepository) GetByConnectionID(connectionID string) (*models.BusinessAccount, error) {
	var account models.BusinessAccount
	query := `SELECT ` + businessAccountColumns + ` FROM business_accounts WHERE business_connection_id = $1`
	err := r.db.Get(&account, query, connectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *businessAccountRepository) GetByID(id int64) (*models.BusinessAccount, error) {
	var account models.BusinessAccount
	query := `SELECT ` + businessAccountColumns + ` FROM business_accounts WHERE id = $1`
	err := r.db.Get(&account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAll returns every connection row, oldest first. The merge view needs the
// full history per user to pick the newest representative.
func (r *businessAccountRepository) GetAll() ([]*models.BusinessAccount, error) {
	var accounts []*models.BusinessAccount
	query := `SELECT ` + businessAccountColumns + ` FROM business_accounts ORDER BY created_at ASC`
	err := r.db.Select(&accounts, query)
	return accounts, err
}

// GetByUserID returns every connection row for one Telegram user, including
// disabled ones. Re-registrations leave multiple rows per user; the merge view
// collapses them.
func (r *businessAccountRepository) GetByUserID(userID int64) ([]*models.BusinessAccount, error) {
	var accounts []*models.BusinessAccount
	query := `SELECT ` + businessAccountColumns + ` FROM business_accounts WHERE user_id = $1 ORDER BY created_at DESC`
	err := r.db.Select(&accounts, query, userID)
	return accounts, err
}

func (r *businessAccountRepository) EnabledUserIDs() ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT user_id FROM business_accounts WHERE is_enabled = TRUE`
	err := r.db.Select(&ids, query)
	return ids, err
}

// Upsert creates or updates an account keyed by business_connection_id.
// Display fields and flags from Telegram are authoritative.
func (r *businessAccountRepository) Upsert(connectionID string, userID int64, firstName string, lastName, username *string, isEnabled, canReply bool) (*models.BusinessAccount, error) {
	var account models.BusinessAccount
	query := `INSERT INTO business_accounts (business_connection_id, user_id, first_name, last_name, username, is_enabled, can_reply)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (business_connection_id) DO UPDATE SET
	              user_id = EXCLUDED.user_id,
	              first_name = EXCLUDED.first_name,
	              last_name = EXCLUDED.last_name,
	              username = EXCLUDED.username,
	              is_enabled = EXCLUDED.is_enabled,
	              can_reply = EXCLUDED.can_reply,
	              updated_at = NOW()
	          RETURNING ` + businessAccountColumns
	err := r.db.QueryRowx(query, connectionID, userID, firstName, lastName, username, isEnabled, canReply).StructScan(&account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
