package webhook

import (
	"time"

	"go.uber.org/zap"
)

// Message kinds in classification priority order.
const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindDocument = "document"
	KindVoice    = "voice"
	KindVideo    = "video"
)

// Intent is a tagged, validated event produced by the normalizer. Downstream
// resolvers only ever see intents, never raw payloads.
type Intent interface {
	intent()
}

// ConnectionIntent carries a business connection create/update/disable event.
type ConnectionIntent struct {
	ConnectionID string
	UserID       int64
	FirstName    string
	LastName     string
	Username     string
	IsEnabled    bool
	CanReply     bool
}

// FileRef describes the single file attached to a non-text message.
type FileRef struct {
	FileID       string
	FileUniqueID string
	FileName     string
	FileSize     int64
	MimeType     string
}

// MessageIntent carries one inbound business message, already classified.
// Edited messages reuse this intent with Edited set; they flow through the same
// ingest path as new messages.
type MessageIntent struct {
	ConnectionID string
	MessageID    int64
	ChatID       int64
	ChatType     string
	ChatTitle    string
	ChatFirst    string
	ChatLast     string
	ChatUsername string
	SenderID     int64
	SenderFirst  string
	SenderLast   string
	SenderUser   string
	Text         string
	Kind         string
	File         *FileRef
	Date         time.Time
	Edited       bool
}

// DeletedIntent carries a deleted-business-messages batch. It is logged only;
// no rows are mutated.
type DeletedIntent struct {
	ConnectionID string
	ChatID       int64
	MessageIDs   []int64
}

func (ConnectionIntent) intent() {}
func (MessageIntent) intent()    {}
func (DeletedIntent) intent()    {}

// Normalizer turns raw webhook envelopes into typed intents. It has no side
// effects; malformed payloads are dropped with a warning and never surface to
// the transport, which must always acknowledge receipt.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize returns the intent for an update, or nil when the update carries
// nothing this service consumes.
func (n *Normalizer) Normalize(u *Update) Intent {
	switch {
	case u.BusinessConnection != nil:
		return n.normalizeConnection(u)
	case u.BusinessMessage != nil:
		return n.normalizeMessage(u, u.BusinessMessage, false)
	case u.EditedBusinessMessage != nil:
		return n.normalizeMessage(u, u.EditedBusinessMessage, true)
	case u.DeletedBusinessMessages != nil:
		d := u.DeletedBusinessMessages
		if d.BusinessConnectionID == "" {
			n.logger.Warn("Dropping deleted-messages batch without connection id", zap.Int64("update_id", u.UpdateID))
			return nil
		}
		return DeletedIntent{
			ConnectionID: d.BusinessConnectionID,
			ChatID:       d.Chat.ID,
			MessageIDs:   d.MessageIDs,
		}
	case u.Message != nil || u.EditedMessage != nil:
		// Regular bot chats are outside the business scope.
		n.logger.Debug("Ignoring non-business message", zap.Int64("update_id", u.UpdateID))
		return nil
	default:
		n.logger.Debug("Ignoring update with no consumable event", zap.Int64("update_id", u.UpdateID))
		return nil
	}
}

func (n *Normalizer) normalizeConnection(u *Update) Intent {
	c := u.BusinessConnection
	if c.ID == "" || c.User.ID == 0 {
		n.logger.Warn("Dropping business connection event with missing identifiers",
			zap.Int64("update_id", u.UpdateID), zap.String("connection_id", c.ID))
		return nil
	}
	return ConnectionIntent{
		ConnectionID: c.ID,
		UserID:       c.User.ID,
		FirstName:    c.User.FirstName,
		LastName:     c.User.LastName,
		Username:     c.User.Username,
		IsEnabled:    c.IsEnabled,
		CanReply:     c.CanReply,
	}
}

func (n *Normalizer) normalizeMessage(u *Update, m *Message, edited bool) Intent {
	if m.BusinessConnectionID == "" {
		n.logger.Warn("Dropping business message without connection id", zap.Int64("update_id", u.UpdateID))
		return nil
	}
	if m.Chat == nil || m.Chat.ID == 0 {
		n.logger.Warn("Dropping business message without chat",
			zap.Int64("update_id", u.UpdateID), zap.String("connection_id", m.BusinessConnectionID))
		return nil
	}
	if m.From == nil || m.From.ID == 0 {
		n.logger.Warn("Dropping business message without sender",
			zap.Int64("update_id", u.UpdateID), zap.Int64("chat_id", m.Chat.ID))
		return nil
	}

	kind, text, file := Classify(m)

	chatType := m.Chat.Type
	if chatType == "" {
		chatType = "private"
	}

	return MessageIntent{
		ConnectionID: m.BusinessConnectionID,
		MessageID:    m.MessageID,
		ChatID:       m.Chat.ID,
		ChatType:     chatType,
		ChatTitle:    m.Chat.Title,
		ChatFirst:    m.Chat.FirstName,
		ChatLast:     m.Chat.LastName,
		ChatUsername: m.Chat.Username,
		SenderID:     m.From.ID,
		SenderFirst:  m.From.FirstName,
		SenderLast:   m.From.LastName,
		SenderUser:   m.From.Username,
		Text:         text,
		Kind:         kind,
		File:         file,
		Date:         time.Unix(m.Date, 0),
		Edited:       edited,
	}
}

// Classify determines message kind by presence of payload sub-objects, in
// priority order photo > document > voice > video > text. For photos the
// variant with the largest reported size wins; ties keep the first variant
// encountered. The caption becomes the text for non-text kinds.
func Classify(m *Message) (kind, text string, file *FileRef) {
	switch {
	case len(m.Photo) > 0:
		largest := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.FileSize > largest.FileSize {
				largest = p
			}
		}
		return KindPhoto, m.Caption, &FileRef{
			FileID:       largest.FileID,
			FileUniqueID: largest.FileUniqueID,
			FileSize:     largest.FileSize,
		}
	case m.Document != nil:
		return KindDocument, m.Caption, &FileRef{
			FileID:       m.Document.FileID,
			FileUniqueID: m.Document.FileUniqueID,
			FileName:     m.Document.FileName,
			FileSize:     m.Document.FileSize,
			MimeType:     m.Document.MimeType,
		}
	case m.Voice != nil:
		mime := m.Voice.MimeType
		if mime == "" {
			mime = "audio/ogg"
		}
		return KindVoice, m.Caption, &FileRef{
			FileID:       m.Voice.FileID,
			FileUniqueID: m.Voice.FileUniqueID,
			FileSize:     m.Voice.FileSize,
			MimeType:     mime,
		}
	case m.Video != nil:
		return KindVideo, m.Caption, &FileRef{
			FileID:       m.Video.FileID,
			FileUniqueID: m.Video.FileUniqueID,
			FileName:     m.Video.FileName,
			FileSize:     m.Video.FileSize,
			MimeType:     m.Video.MimeType,
		}
	default:
		return KindText, m.Text, nil
	}
}
