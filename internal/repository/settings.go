package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// APIKey is one encrypted credential stored for a user. key_type is
// "telegram_bot" or "openrouter".
type APIKey struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	KeyType        string    `db:"key_type"`
	EncryptedValue string    `db:"encrypted_value"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type SettingsRepository interface {
	UpsertAPIKey(userID int64, keyType, encryptedValue string) (*APIKey, error)
	GetAPIKey(userID int64, keyType string) (*APIKey, error)
	ListAPIKeys(userID int64) ([]APIKey, error)
	DeleteAPIKey(userID int64, keyType string) error
}

type settingsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSettingsRepository(db *sqlx.DB, logger *zap.Logger) SettingsRepository {
	return &settingsRepository{db: db, logger: logger}
}

const apiKeyColumns = `id, user_id, key_type, encrypted_value, is_active, created_at, updated_at`

func (r *settingsRepository) UpsertAPIKey(userID int64, keyType, encryptedValue string) (*APIKey, error) {
	var key APIKey
	query := `INSERT INTO api_keys (user_id, key_type, encrypted_value, is_active)
	          VALUES ($1, $2, $3, TRUE)
	          ON CONFLICT (user_id, key_type) DO UPDATE SET
	              encrypted_value = EXCLUDED.encrypted_value,
	              is_active = TRUE,
	              updated_at = NOW()
	          RETURNING ` + apiKeyColumns
	err := r.db.QueryRowx(query, userID, keyType, encryptedValue).StructScan(&key)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *settingsRepository) GetAPIKey(userID int64, keyType string) (*APIKey, error) {
	var key APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 AND key_type = $2 AND is_active = TRUE`
	err := r.db.Get(&key, query, userID, keyType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

func (r *settingsRepository) ListAPIKeys(userID int64) ([]APIKey, error) {
	var keys []APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY key_type`
	err := r.db.Select(&keys, query, userID)
	return keys, err
}

func (r *settingsRepository) DeleteAPIKey(userID int64, keyType string) error {
	query := `DELETE FROM api_keys WHERE user_id = $1 AND key_type = $2`
	_, err := r.db.Exec(query, userID, keyType)
	return err
}
