package repository

import (
	"database/sql"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type AuthRepository interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id int64) (*models.User, error)
	CountUsers() (int, error)
	SetLinkCode(userID int64, code string) error
	LinkTelegramUser(code string, telegramUserID int64) (*models.User, error)
}

type authRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewAuthRepository(db *sqlx.DB, log *logrus.Logger) AuthRepository {
	return &authRepository{db: db, log: log}
}

const userColumns = `id, username, password_hash, dk_encrypted, telegram_user_id, link_code, created_at`

func (r *authRepository) CreateUser(user *models.User) error {
	query := `INSERT INTO users (username, password_hash, dk_encrypted) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRowx(query, user.Username, user.PasswordHash, user.DKEncrypted).StructScan(user)
}

func (r *authRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	err := r.db.Get(&user, query, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *authRepository) GetUserByID(id int64) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.Get(&user, query, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *authRepository) CountUsers() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users`
	err := r.db.Get(&count, query)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *authRepository) SetLinkCode(userID int64, code string) error {
	query := `UPDATE users SET link_code = $1 WHERE id = $2`
	_, err := r.db.Exec(query, code, userID)
	return err
}

// LinkTelegramUser consumes a one-time link code sent to the operator bot via
// /start and stores the caller's Telegram id on the matching user.
func (r *authRepository) LinkTelegramUser(code string, telegramUserID int64) (*models.User, error) {
	var user models.User
	query := `UPDATE users SET telegram_user_id = $2, link_code = NULL WHERE link_code = $1 RETURNING ` + userColumns
	err := r.db.QueryRowx(query, code, telegramUserID).StructScan(&user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
