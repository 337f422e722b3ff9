package repository

import (
	"database/sql"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ChatRepository interface {
	GetByID(id int64) (*models.BusinessChat, error)
	ListForAccounts(businessAccountIDs []int64) ([]models.BusinessChat, error)
	Upsert(q sqlx.Ext, businessAccountID, chatID int64, chatType string, title, firstName, lastName, username *string) (*models.BusinessChat, error)
	BumpCounters(q sqlx.Ext, chatID int64, lastMessageAt sql.NullTime, incrementUnread bool) error
	MarkRead(chatID int64) error
}

type chatRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChatRepository(db *sqlx.DB, logger *zap.Logger) ChatRepository {
	return &chatRepository{db: db, logger: logger}
}

const chatColumns = `id, chat_id, business_account_id, chat_type, title, first_name, last_name, username, unread_count, message_count, created_at, updated_at, last_message_at`

func (r *chatRepository) GetByID(id int64) (*models.BusinessChat, error) {
	var chat models.BusinessChat
	query := `SELECT ` + chatColumns + ` FROM business_chats WHERE id = $1`
	err := r.db.Get(&chat, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) ListForAccounts(businessAccountIDs []int64) ([]models.BusinessChat, error) {
	if len(businessAccountIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+chatColumns+` FROM business_chats WHERE business_account_id IN (?) ORDER BY last_message_at DESC NULLS LAST`, businessAccountIDs)
	if err != nil {
		return nil, err
	}
	var chats []models.BusinessChat
	err = r.db.Select(&chats, r.db.Rebind(query), args...)
	return chats, err
}

// Upsert finds or creates the chat keyed by (chat_id, business_account_id).
// Remote display data always overwrites the local cache; counters are created
// at zero and never reset here.
func (r *chatRepository) Upsert(q sqlx.Ext, businessAccountID, chatID int64, chatType string, title, firstName, lastName, username *string) (*models.BusinessChat, error) {
	var chat models.BusinessChat
	query := `INSERT INTO business_chats (chat_id, business_account_id, chat_type, title, first_name, last_name, username)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (chat_id, business_account_id) DO UPDATE SET
	              chat_type = EXCLUDED.chat_type,
	              title = EXCLUDED.title,
	              first_name = EXCLUDED.first_name,
	              last_name = EXCLUDED.last_name,
	              username = EXCLUDED.username,
	              updated_at = NOW()
	          RETURNING ` + chatColumns
	err := sqlx.Get(q, &chat, query, chatID, businessAccountID, chatType, title, firstName, lastName, username)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// BumpCounters applies the side effects of one inserted message under a row
// lock on the chat, so concurrent workers never lose an increment.
func (r *chatRepository) BumpCounters(q sqlx.Ext, chatID int64, lastMessageAt sql.NullTime, incrementUnread bool) error {
	var locked int64
	if err := sqlx.Get(q, &locked, `SELECT id FROM business_chats WHERE id = $1 FOR UPDATE`, chatID); err != nil {
		return err
	}
	unread := 0
	if incrementUnread {
		unread = 1
	}
	query := `UPDATE business_chats
	          SET message_count = message_count + 1,
	              unread_count = unread_count + $2,
	              last_message_at = $3,
	              updated_at = NOW()
	          WHERE id = $1`
	_, err := q.Exec(query, chatID, unread, lastMessageAt)
	return err
}

// MarkRead resets the unread counter; the only path that ever decreases it.
func (r *chatRepository) MarkRead(chatID int64) error {
	query := `UPDATE business_chats SET unread_count = 0, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(query, chatID)
	return err
}
