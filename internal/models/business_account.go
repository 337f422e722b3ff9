package models

import "time"

// BusinessAccount represents one registered Telegram Business connection.
// The same Telegram user may re-register and produce several rows over time;
// business_connection_id is unique, user_id is not.
type BusinessAccount struct {
	ID                   int64     `db:"id" json:"id"`
	BusinessConnectionID string    `db:"business_connection_id" json:"business_connection_id"`
	UserID               int64     `db:"user_id" json:"user_id"`
	IsEnabled            bool      `db:"is_enabled" json:"is_enabled"`
	CanReply             bool      `db:"can_reply" json:"can_reply"`
	FirstName            string    `db:"first_name" json:"first_name"`
	LastName             *string   `db:"last_name" json:"last_name,omitempty"`
	Username             *string   `db:"username" json:"username,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// BusinessChat is one conversation thread owned by exactly one BusinessAccount.
type BusinessChat struct {
	ID                int64      `db:"id" json:"id"`
	ChatID            int64      `db:"chat_id" json:"chat_id"`
	BusinessAccountID int64      `db:"business_account_id" json:"business_account_id"`
	ChatType          string     `db:"chat_type" json:"chat_type"` // private, group, supergroup, channel
	Title             *string    `db:"title" json:"title,omitempty"`
	FirstName         *string    `db:"first_name" json:"first_name,omitempty"`
	LastName          *string    `db:"last_name" json:"last_name,omitempty"`
	Username          *string    `db:"username" json:"username,omitempty"`
	UnreadCount       int        `db:"unread_count" json:"unread_count"`
	MessageCount      int        `db:"message_count" json:"message_count"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	LastMessageAt     *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}

// ChatWithLastMessage is the chat-list projection: a merged chat row plus a
// preview of its most recent message, if any.
type ChatWithLastMessage struct {
	BusinessChat
	LastMessage *BusinessMessage `json:"last_message,omitempty"`
}

// BusinessMessage is keyed logically by (message_id, chat_id); the store enforces
// uniqueness on that pair so webhook redelivery never produces duplicates.
type BusinessMessage struct {
	ID              int64     `db:"id" json:"id"`
	MessageID       int64     `db:"message_id" json:"message_id"`
	ChatID          int64     `db:"chat_id" json:"chat_id"`
	SenderID        int64     `db:"sender_id" json:"sender_id"`
	SenderFirstName *string   `db:"sender_first_name" json:"sender_first_name,omitempty"`
	SenderLastName  *string   `db:"sender_last_name" json:"sender_last_name,omitempty"`
	SenderUsername  *string   `db:"sender_username" json:"sender_username,omitempty"`
	Text            string    `db:"text" json:"text"`
	MessageType     string    `db:"message_type" json:"message_type"` // text, photo, document, voice, video
	FileID          *string   `db:"file_id" json:"file_id,omitempty"`
	FileUniqueID    *string   `db:"file_unique_id" json:"file_unique_id,omitempty"`
	FileName        *string   `db:"file_name" json:"file_name,omitempty"`
	FileSize        *int64    `db:"file_size" json:"file_size,omitempty"`
	MimeType        *string   `db:"mime_type" json:"mime_type,omitempty"`
	IsOutgoing      bool      `db:"is_outgoing" json:"is_outgoing"`
	TelegramDate    time.Time `db:"telegram_date" json:"telegram_date"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// VirtualAccount is the merged, read-only projection of all BusinessAccount rows
// sharing one Telegram user id. It is built in memory for the read path and is
// never written back to storage.
type VirtualAccount struct {
	ID                   int64          `json:"id"`
	BusinessConnectionID string         `json:"business_connection_id"`
	UserID               int64          `json:"user_id"`
	IsEnabled            bool           `json:"is_enabled"`
	CanReply             bool           `json:"can_reply"`
	FirstName            string         `json:"first_name"`
	LastName             *string        `json:"last_name,omitempty"`
	Username             *string        `json:"username,omitempty"`
	Chats                []BusinessChat `json:"chats"`
}

// BusinessAccountStats is the aggregate returned by the stats endpoint.
type BusinessAccountStats struct {
	ChatsCount       int    `json:"chats_count"`
	MessagesCount    int    `json:"messages_count"`
	UnreadChatsCount int    `json:"unread_chats_count"`
	AccountName      string `json:"account_name"`
	Username         string `json:"username"`
	IsEnabled        bool   `json:"is_enabled"`
}
