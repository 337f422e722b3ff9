package repository

import (
	"database/sql"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MessageRepository interface {
	// Insert persists one message. A redelivered (message_id, chat_id) pair is
	// rejected by the store's unique constraint and reported as inserted=false;
	// the caller treats that as a successful no-op.
	Insert(q sqlx.Ext, msg *models.BusinessMessage) (inserted bool, err error)
	ListForChat(chatID int64, limit, offset int) ([]models.BusinessMessage, error)
	LastForChat(chatID int64) (*models.BusinessMessage, error)
	Search(businessAccountID int64, query string, limit int) ([]models.BusinessMessage, error)
	CountForAccount(businessAccountID int64) (int, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const messageColumns = `id, message_id, chat_id, sender_id, sender_first_name, sender_last_name, sender_username, text, message_type, file_id, file_unique_id, file_name, file_size, mime_type, is_outgoing, telegram_date, created_at`

func (r *messageRepository) Insert(q sqlx.Ext, msg *models.BusinessMessage) (bool, error) {
	query := `INSERT INTO business_messages (message_id, chat_id, sender_id, sender_first_name, sender_last_name, sender_username, text, message_type, file_id, file_unique_id, file_name, file_size, mime_type, is_outgoing, telegram_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	          ON CONFLICT (message_id, chat_id) DO NOTHING
	          RETURNING ` + messageColumns
	err := sqlx.Get(q, msg, query,
		msg.MessageID, msg.ChatID, msg.SenderID, msg.SenderFirstName, msg.SenderLastName, msg.SenderUsername,
		msg.Text, msg.MessageType, msg.FileID, msg.FileUniqueID, msg.FileName, msg.FileSize, msg.MimeType,
		msg.IsOutgoing, msg.TelegramDate)
	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict path: the row already exists for this (message_id, chat_id).
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *messageRepository) ListForChat(chatID int64, limit, offset int) ([]models.BusinessMessage, error) {
	var messages []models.BusinessMessage
	query := `SELECT ` + messageColumns + ` FROM business_messages WHERE chat_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	err := r.db.Select(&messages, query, chatID, limit, offset)
	return messages, err
}

func (r *messageRepository) LastForChat(chatID int64) (*models.BusinessMessage, error) {
	var msg models.BusinessMessage
	query := `SELECT ` + messageColumns + ` FROM business_messages WHERE chat_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := r.db.Get(&msg, query, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Search(businessAccountID int64, search string, limit int) ([]models.BusinessMessage, error) {
	var messages []models.BusinessMessage
	query := `SELECT m.id, m.message_id, m.chat_id, m.sender_id, m.sender_first_name, m.sender_last_name, m.sender_username, m.text, m.message_type, m.file_id, m.file_unique_id, m.file_name, m.file_size, m.mime_type, m.is_outgoing, m.telegram_date, m.created_at
	          FROM business_messages m
	          JOIN business_chats c ON m.chat_id = c.id
	          WHERE c.business_account_id = $1 AND m.text ILIKE '%' || $2 || '%'
	          ORDER BY m.created_at DESC LIMIT $3`
	err := r.db.Select(&messages, query, businessAccountID, search, limit)
	return messages, err
}

func (r *messageRepository) CountForAccount(businessAccountID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM business_messages m JOIN business_chats c ON m.chat_id = c.id WHERE c.business_account_id = $1`
	err := r.db.Get(&count, query, businessAccountID)
	return count, err
}
