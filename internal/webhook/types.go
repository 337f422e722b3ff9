package webhook

// Update is the envelope Telegram delivers to the webhook endpoint. Exactly one
// of the event fields is populated per update.
type Update struct {
	UpdateID                int64             `json:"update_id"`
	BusinessConnection      *Connection       `json:"business_connection,omitempty"`
	BusinessMessage         *Message          `json:"business_message,omitempty"`
	EditedBusinessMessage   *Message          `json:"edited_business_message,omitempty"`
	DeletedBusinessMessages *DeletedMessages  `json:"deleted_business_messages,omitempty"`
	Message                 *Message          `json:"message,omitempty"`
	EditedMessage           *Message          `json:"edited_message,omitempty"`
}

// Connection describes a business connection event.
type Connection struct {
	ID        string `json:"id"`
	User      User   `json:"user"`
	IsEnabled bool   `json:"is_enabled"`
	CanReply  bool   `json:"can_reply"`
	Date      int64  `json:"date"`
}

// User is the Telegram user object as delivered in webhook payloads.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is the Telegram chat object as delivered in webhook payloads.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Message is a business (or regular) message payload.
type Message struct {
	MessageID            int64       `json:"message_id"`
	BusinessConnectionID string      `json:"business_connection_id,omitempty"`
	From                 *User       `json:"from,omitempty"`
	Chat                 *Chat       `json:"chat,omitempty"`
	Date                 int64       `json:"date"`
	Text                 string      `json:"text,omitempty"`
	Caption              string      `json:"caption,omitempty"`
	Photo                []PhotoSize `json:"photo,omitempty"`
	Document             *Document   `json:"document,omitempty"`
	Voice                *Voice      `json:"voice,omitempty"`
	Video                *Video      `json:"video,omitempty"`
}

// PhotoSize is one delivered variant of a photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

type Document struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Duration     int    `json:"duration,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

type Video struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

// DeletedMessages is the deleted-business-messages batch payload.
type DeletedMessages struct {
	BusinessConnectionID string  `json:"business_connection_id"`
	Chat                 Chat    `json:"chat"`
	MessageIDs           []int64 `json:"message_ids"`
}
