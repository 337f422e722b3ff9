package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/webhook"
)

func newNormalizer() *webhook.Normalizer {
	return webhook.NewNormalizer(zap.NewNop())
}

func businessMessage() *webhook.Message {
	return &webhook.Message{
		MessageID:            100,
		BusinessConnectionID: "conn-1",
		From:                 &webhook.User{ID: 555, FirstName: "Anna", Username: "anna"},
		Chat:                 &webhook.Chat{ID: 7, Type: "private", FirstName: "Anna"},
		Date:                 1700000000,
		Text:                 "hello",
	}
}

func TestNormalizeBusinessMessage(t *testing.T) {
	n := newNormalizer()

	intent := n.Normalize(&webhook.Update{UpdateID: 1, BusinessMessage: businessMessage()})
	require.NotNil(t, intent)

	mi, ok := intent.(webhook.MessageIntent)
	require.True(t, ok)
	assert.Equal(t, "conn-1", mi.ConnectionID)
	assert.Equal(t, int64(100), mi.MessageID)
	assert.Equal(t, int64(7), mi.ChatID)
	assert.Equal(t, int64(555), mi.SenderID)
	assert.Equal(t, webhook.KindText, mi.Kind)
	assert.Equal(t, "hello", mi.Text)
	assert.Nil(t, mi.File)
	assert.Equal(t, time.Unix(1700000000, 0), mi.Date)
	assert.False(t, mi.Edited)
}

func TestNormalizeEditedMessageFlowsThroughSamePath(t *testing.T) {
	n := newNormalizer()

	intent := n.Normalize(&webhook.Update{UpdateID: 2, EditedBusinessMessage: businessMessage()})
	require.NotNil(t, intent)

	mi, ok := intent.(webhook.MessageIntent)
	require.True(t, ok)
	assert.True(t, mi.Edited)
	assert.Equal(t, int64(100), mi.MessageID)
}

func TestNormalizeDropsMalformedMessages(t *testing.T) {
	n := newNormalizer()

	noConn := businessMessage()
	noConn.BusinessConnectionID = ""
	assert.Nil(t, n.Normalize(&webhook.Update{BusinessMessage: noConn}))

	noChat := businessMessage()
	noChat.Chat = nil
	assert.Nil(t, n.Normalize(&webhook.Update{BusinessMessage: noChat}))

	noSender := businessMessage()
	noSender.From = nil
	assert.Nil(t, n.Normalize(&webhook.Update{BusinessMessage: noSender}))
}

func TestNormalizeIgnoresNonBusinessTraffic(t *testing.T) {
	n := newNormalizer()

	regular := businessMessage()
	regular.BusinessConnectionID = ""
	assert.Nil(t, n.Normalize(&webhook.Update{Message: regular}))
	assert.Nil(t, n.Normalize(&webhook.Update{EditedMessage: regular}))
	assert.Nil(t, n.Normalize(&webhook.Update{UpdateID: 9}))
}

func TestNormalizeConnection(t *testing.T) {
	n := newNormalizer()

	intent := n.Normalize(&webhook.Update{
		BusinessConnection: &webhook.Connection{
			ID:        "conn-1",
			User:      webhook.User{ID: 999, FirstName: "Boris", Username: "boris"},
			IsEnabled: true,
			CanReply:  true,
		},
	})
	require.NotNil(t, intent)

	ci, ok := intent.(webhook.ConnectionIntent)
	require.True(t, ok)
	assert.Equal(t, "conn-1", ci.ConnectionID)
	assert.Equal(t, int64(999), ci.UserID)
	assert.True(t, ci.IsEnabled)
	assert.True(t, ci.CanReply)
}

func TestNormalizeConnectionMissingIdentifiers(t *testing.T) {
	n := newNormalizer()

	assert.Nil(t, n.Normalize(&webhook.Update{
		BusinessConnection: &webhook.Connection{User: webhook.User{ID: 999}},
	}))
	assert.Nil(t, n.Normalize(&webhook.Update{
		BusinessConnection: &webhook.Connection{ID: "conn-1"},
	}))
}

func TestNormalizeDeletedMessages(t *testing.T) {
	n := newNormalizer()

	intent := n.Normalize(&webhook.Update{
		DeletedBusinessMessages: &webhook.DeletedMessages{
			BusinessConnectionID: "conn-1",
			Chat:                 webhook.Chat{ID: 7},
			MessageIDs:           []int64{1, 2, 3},
		},
	})
	require.NotNil(t, intent)

	di, ok := intent.(webhook.DeletedIntent)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, di.MessageIDs)
	assert.Equal(t, int64(7), di.ChatID)
}

func TestClassifyPhotoPicksLargestVariant(t *testing.T) {
	m := businessMessage()
	m.Text = ""
	m.Caption = "look"
	m.Photo = []webhook.PhotoSize{
		{FileID: "small", FileUniqueID: "u1", FileSize: 100},
		{FileID: "big", FileUniqueID: "u2", FileSize: 9000},
		{FileID: "medium", FileUniqueID: "u3", FileSize: 500},
	}

	kind, text, file := webhook.Classify(m)
	assert.Equal(t, webhook.KindPhoto, kind)
	assert.Equal(t, "look", text)
	require.NotNil(t, file)
	assert.Equal(t, "big", file.FileID)
	assert.Equal(t, int64(9000), file.FileSize)
}

func TestClassifyPhotoSizeTieKeepsFirst(t *testing.T) {
	m := businessMessage()
	m.Photo = []webhook.PhotoSize{
		{FileID: "first", FileSize: 500},
		{FileID: "second", FileSize: 500},
	}

	_, _, file := webhook.Classify(m)
	require.NotNil(t, file)
	assert.Equal(t, "first", file.FileID)
}

func TestClassifyPriorityOrder(t *testing.T) {
	m := businessMessage()
	m.Photo = []webhook.PhotoSize{{FileID: "p", FileSize: 1}}
	m.Document = &webhook.Document{FileID: "d"}
	m.Voice = &webhook.Voice{FileID: "v"}
	m.Video = &webhook.Video{FileID: "vid"}

	kind, _, file := webhook.Classify(m)
	assert.Equal(t, webhook.KindPhoto, kind)
	assert.Equal(t, "p", file.FileID)

	m.Photo = nil
	kind, _, file = webhook.Classify(m)
	assert.Equal(t, webhook.KindDocument, kind)
	assert.Equal(t, "d", file.FileID)

	m.Document = nil
	kind, _, file = webhook.Classify(m)
	assert.Equal(t, webhook.KindVoice, kind)
	assert.Equal(t, "v", file.FileID)

	m.Voice = nil
	kind, _, file = webhook.Classify(m)
	assert.Equal(t, webhook.KindVideo, kind)
	assert.Equal(t, "vid", file.FileID)

	m.Video = nil
	kind, _, file = webhook.Classify(m)
	assert.Equal(t, webhook.KindText, kind)
	assert.Nil(t, file)
}

func TestClassifyVoiceDefaultsMimeType(t *testing.T) {
	m := businessMessage()
	m.Voice = &webhook.Voice{FileID: "v", FileUniqueID: "u"}

	_, _, file := webhook.Classify(m)
	require.NotNil(t, file)
	assert.Equal(t, "audio/ogg", file.MimeType)
}

func TestClassifyDocumentKeepsCaptionAsText(t *testing.T) {
	m := businessMessage()
	m.Text = ""
	m.Caption = "invoice attached"
	m.Document = &webhook.Document{FileID: "d", FileName: "invoice.pdf", MimeType: "application/pdf"}

	kind, text, file := webhook.Classify(m)
	assert.Equal(t, webhook.KindDocument, kind)
	assert.Equal(t, "invoice attached", text)
	assert.Equal(t, "invoice.pdf", file.FileName)
}

func TestNormalizeDefaultsChatType(t *testing.T) {
	n := newNormalizer()

	m := businessMessage()
	m.Chat.Type = ""
	intent := n.Normalize(&webhook.Update{BusinessMessage: m})
	require.NotNil(t, intent)

	mi := intent.(webhook.MessageIntent)
	assert.Equal(t, "private", mi.ChatType)
}
