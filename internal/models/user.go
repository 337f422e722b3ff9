package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID             int64     `db:"id"`
	Username       string    `db:"username"`
	PasswordHash   string    `db:"password_hash"`
	DKEncrypted    string    `db:"dk_encrypted"`
	TelegramUserID *int64    `db:"telegram_user_id"` // Set once the operator bot links the account
	LinkCode       *string   `db:"link_code"`        // One-time code consumed by /start
	CreatedAt      time.Time `db:"created_at"`
}

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
