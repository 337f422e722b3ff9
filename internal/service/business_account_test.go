package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/telegram"
	"backend/internal/webhook"
)

// In-memory fakes. Transaction boundaries are a no-op here; the ingest
// semantics under test do not depend on them.

type fakeTxRunner struct{ calls int }

func (r *fakeTxRunner) InTx(fn func(q sqlx.Ext) error) error {
	r.calls++
	return fn(nil)
}

type fakeAccountRepo struct {
	byConnection map[string]*models.BusinessAccount
	byID         map[int64]*models.BusinessAccount
	enabledUsers []int64
	upserts      int
}

func newFakeAccountRepo(accounts ...*models.BusinessAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{
		byConnection: map[string]*models.BusinessAccount{},
		byID:         map[int64]*models.BusinessAccount{},
	}
	for _, a := range accounts {
		r.byConnection[a.BusinessConnectionID] = a
		r.byID[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) GetByConnectionID(id string) (*models.BusinessAccount, error) {
	return r.byConnection[id], nil
}

func (r *fakeAccountRepo) GetByID(id int64) (*models.BusinessAccount, error) {
	return r.byID[id], nil
}

func (r *fakeAccountRepo) GetAll() ([]*models.BusinessAccount, error) {
	var out []*models.BusinessAccount
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAccountRepo) GetByUserID(userID int64) ([]*models.BusinessAccount, error) {
	var out []*models.BusinessAccount
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) EnabledUserIDs() ([]int64, error) {
	return r.enabledUsers, nil
}

func (r *fakeAccountRepo) Upsert(connectionID string, userID int64, firstName string, lastName, username *string, isEnabled, canReply bool) (*models.BusinessAccount, error) {
	r.upserts++
	a, ok := r.byConnection[connectionID]
	if !ok {
		a = &models.BusinessAccount{ID: int64(len(r.byID) + 1), BusinessConnectionID: connectionID}
		r.byConnection[connectionID] = a
		r.byID[a.ID] = a
	}
	a.UserID = userID
	a.FirstName = firstName
	a.LastName = lastName
	a.Username = username
	a.IsEnabled = isEnabled
	a.CanReply = canReply
	return a, nil
}

type counterBump struct {
	chatID          int64
	lastMessageAt   sql.NullTime
	incrementUnread bool
}

type fakeChatRepo struct {
	chats  map[int64]*models.BusinessChat // keyed by internal id
	nextID int64
	bumps  []counterBump
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[int64]*models.BusinessChat{}, nextID: 1}
}

func (r *fakeChatRepo) GetByID(id int64) (*models.BusinessChat, error) {
	return r.chats[id], nil
}

func (r *fakeChatRepo) findChat(chatID, businessAccountID int64) *models.BusinessChat {
	for _, c := range r.chats {
		if c.ChatID == chatID && c.BusinessAccountID == businessAccountID {
			return c
		}
	}
	return nil
}

func (r *fakeChatRepo) chatsFor(businessAccountID int64) []models.BusinessChat {
	var out []models.BusinessChat
	for _, c := range r.chats {
		if c.BusinessAccountID == businessAccountID {
			out = append(out, *c)
		}
	}
	return out
}

func (r *fakeChatRepo) ListForAccounts(ids []int64) ([]models.BusinessChat, error) {
	var out []models.BusinessChat
	for _, id := range ids {
		out = append(out, r.chatsFor(id)...)
	}
	return out, nil
}

func (r *fakeChatRepo) Upsert(q sqlx.Ext, businessAccountID, chatID int64, chatType string, title, firstName, lastName, username *string) (*models.BusinessChat, error) {
	existing := r.findChat(chatID, businessAccountID)
	if existing != nil {
		existing.ChatType = chatType
		existing.Title = title
		existing.FirstName = firstName
		existing.LastName = lastName
		existing.Username = username
		return existing, nil
	}
	c := &models.BusinessChat{
		ID:                r.nextID,
		ChatID:            chatID,
		BusinessAccountID: businessAccountID,
		ChatType:          chatType,
		Title:             title,
		FirstName:         firstName,
		LastName:          lastName,
		Username:          username,
	}
	r.nextID++
	r.chats[c.ID] = c
	return c, nil
}

func (r *fakeChatRepo) BumpCounters(q sqlx.Ext, chatID int64, lastMessageAt sql.NullTime, incrementUnread bool) error {
	r.bumps = append(r.bumps, counterBump{chatID, lastMessageAt, incrementUnread})
	c := r.chats[chatID]
	c.MessageCount++
	if incrementUnread {
		c.UnreadCount++
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		c.LastMessageAt = &t
	}
	return nil
}

func (r *fakeChatRepo) MarkRead(chatID int64) error {
	if c, ok := r.chats[chatID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

type fakeMessageRepo struct {
	inserted map[[2]int64]*models.BusinessMessage // (message_id, chat_id)
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{inserted: map[[2]int64]*models.BusinessMessage{}}
}

func (r *fakeMessageRepo) Insert(q sqlx.Ext, msg *models.BusinessMessage) (bool, error) {
	key := [2]int64{msg.MessageID, msg.ChatID}
	if _, dup := r.inserted[key]; dup {
		return false, nil
	}
	copied := *msg
	r.inserted[key] = &copied
	return true, nil
}

func (r *fakeMessageRepo) ListForChat(chatID int64, limit, offset int) ([]models.BusinessMessage, error) {
	var out []models.BusinessMessage
	for _, m := range r.inserted {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) LastForChat(chatID int64) (*models.BusinessMessage, error) {
	var last *models.BusinessMessage
	for _, m := range r.inserted {
		if m.ChatID != chatID {
			continue
		}
		if last == nil || m.TelegramDate.After(last.TelegramDate) {
			last = m
		}
	}
	return last, nil
}

func (r *fakeMessageRepo) Search(businessAccountID int64, query string, limit int) ([]models.BusinessMessage, error) {
	return nil, nil
}

func (r *fakeMessageRepo) CountForAccount(businessAccountID int64) (int, error) {
	return len(r.inserted), nil
}

type reconcileCall struct {
	telegramUserID    int64
	businessAccountID int64
	username          *string
	source            string
}

type fakeContactRepo struct {
	reconciles []reconcileCall
}

func (r *fakeContactRepo) GetByID(id int64) (*models.Contact, error)                 { return nil, nil }
func (r *fakeContactRepo) GetByTelegramID(id int64) (*models.Contact, error)         { return nil, nil }
func (r *fakeContactRepo) Update(id int64, upd repository.ContactUpdate) (*models.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) Delete(id int64) (bool, error) { return false, nil }

func (r *fakeContactRepo) Reconcile(q sqlx.Ext, telegramUserID, businessAccountID int64, firstName string, lastName, username *string, source string, now time.Time) (*models.Contact, error) {
	r.reconciles = append(r.reconciles, reconcileCall{telegramUserID, businessAccountID, username, source})
	return &models.Contact{TelegramUserID: telegramUserID}, nil
}
func (r *fakeContactRepo) ListInteractions(contactID int64) ([]models.ContactInteraction, error) {
	return nil, nil
}
func (r *fakeContactRepo) UpdateInteractionStatus(contactID, businessAccountID int64, status string, notes *string) (*models.ContactInteraction, error) {
	return nil, nil
}
func (r *fakeContactRepo) Search(filter repository.ContactFilter) ([]models.Contact, int, error) {
	return nil, 0, nil
}
func (r *fakeContactRepo) Recent(businessAccountID int64, limit int) ([]models.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) TopByMessages(businessAccountID int64, limit int) ([]models.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) Stats(businessAccountID int64) (*models.ContactStats, error) {
	return nil, nil
}

type sendCall struct {
	method               string
	businessConnectionID string
	chatID               int64
	text                 string
}

type fakeBot struct {
	calls []sendCall
	next  telegram.SentMessage
}

func (b *fakeBot) SendMessage(ctx context.Context, botToken, businessConnectionID string, chatID int64, text string, replyTo int64) (*telegram.SentMessage, error) {
	b.calls = append(b.calls, sendCall{"sendMessage", businessConnectionID, chatID, text})
	sent := b.next
	return &sent, nil
}

func (b *fakeBot) SendPhoto(ctx context.Context, botToken, businessConnectionID string, chatID int64, photoFileID, caption string, replyTo int64) (*telegram.SentMessage, error) {
	b.calls = append(b.calls, sendCall{"sendPhoto", businessConnectionID, chatID, caption})
	sent := b.next
	return &sent, nil
}

func (b *fakeBot) SendDocument(ctx context.Context, botToken, businessConnectionID string, chatID int64, documentFileID, caption string, replyTo int64) (*telegram.SentMessage, error) {
	b.calls = append(b.calls, sendCall{"sendDocument", businessConnectionID, chatID, caption})
	sent := b.next
	return &sent, nil
}

type fakeTokens struct{ token string }

func (t *fakeTokens) BotToken(userID int64) (string, error) { return t.token, nil }

type fixture struct {
	svc      service.BusinessAccountService
	accounts *fakeAccountRepo
	chats    *fakeChatRepo
	messages *fakeMessageRepo
	contacts *fakeContactRepo
	tx       *fakeTxRunner
	bot      *fakeBot
}

func newFixture(accounts ...*models.BusinessAccount) *fixture {
	f := &fixture{
		accounts: newFakeAccountRepo(accounts...),
		chats:    newFakeChatRepo(),
		messages: newFakeMessageRepo(),
		contacts: &fakeContactRepo{},
		tx:       &fakeTxRunner{},
		bot:      &fakeBot{next: telegram.SentMessage{MessageID: 500, Date: 1700000500}},
	}
	f.svc = service.NewBusinessAccountService(
		f.accounts, f.chats, f.messages, f.contacts, f.tx, f.bot, &fakeTokens{token: "bot-token"}, zap.NewNop())
	return f
}

func ownerAccount() *models.BusinessAccount {
	return &models.BusinessAccount{
		ID:                   1,
		BusinessConnectionID: "conn-1",
		UserID:               999,
		IsEnabled:            true,
		CanReply:             true,
		FirstName:            "Owner",
	}
}

func incomingIntent() webhook.MessageIntent {
	return webhook.MessageIntent{
		ConnectionID: "conn-1",
		MessageID:    100,
		ChatID:       7,
		ChatType:     "private",
		ChatFirst:    "Anna",
		SenderID:     555,
		SenderFirst:  "Anna",
		SenderUser:   "anna",
		Text:         "hello",
		Kind:         webhook.KindText,
		Date:         time.Unix(1700000000, 0),
	}
}

func TestSaveIncomingMessage(t *testing.T) {
	f := newFixture(ownerAccount())

	err := f.svc.SaveIncomingMessage(incomingIntent())
	require.NoError(t, err)
	assert.Equal(t, 1, f.tx.calls)

	require.Len(t, f.messages.inserted, 1)
	msg := f.messages.inserted[[2]int64{100, 1}]
	require.NotNil(t, msg)
	assert.False(t, msg.IsOutgoing)
	assert.Equal(t, time.Unix(1700000000, 0), msg.TelegramDate)

	require.Len(t, f.chats.bumps, 1)
	assert.True(t, f.chats.bumps[0].incrementUnread, "incoming messages increment unread")
	assert.Equal(t, time.Unix(1700000000, 0), f.chats.bumps[0].lastMessageAt.Time)

	require.Len(t, f.contacts.reconciles, 1)
	assert.Equal(t, int64(555), f.contacts.reconciles[0].telegramUserID)
	assert.Equal(t, int64(1), f.contacts.reconciles[0].businessAccountID)
	assert.Equal(t, models.SourcePrivate, f.contacts.reconciles[0].source)
}

func TestSaveIncomingMessageGroupKindsCollapseToGroupSource(t *testing.T) {
	for _, chatType := range []string{"group", "supergroup", "channel"} {
		t.Run(chatType, func(t *testing.T) {
			f := newFixture(ownerAccount())

			intent := incomingIntent()
			intent.ChatType = chatType
			require.NoError(t, f.svc.SaveIncomingMessage(intent))

			require.Len(t, f.contacts.reconciles, 1)
			assert.Equal(t, models.SourceGroup, f.contacts.reconciles[0].source)
		})
	}
}

func TestSaveIncomingMessageOutgoingDirection(t *testing.T) {
	f := newFixture(ownerAccount())

	intent := incomingIntent()
	intent.SenderID = 999 // the owner
	intent.SenderFirst = "Owner"

	err := f.svc.SaveIncomingMessage(intent)
	require.NoError(t, err)

	msg := f.messages.inserted[[2]int64{100, 1}]
	require.NotNil(t, msg)
	assert.True(t, msg.IsOutgoing, "sender == owner means outgoing")

	require.Len(t, f.chats.bumps, 1)
	assert.False(t, f.chats.bumps[0].incrementUnread, "outgoing messages never increment unread")
	assert.Empty(t, f.contacts.reconciles, "the owner is not a contact")
}

func TestSaveIncomingMessageRedeliveryIsNoOp(t *testing.T) {
	f := newFixture(ownerAccount())

	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))
	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))

	assert.Len(t, f.messages.inserted, 1)
	assert.Len(t, f.chats.bumps, 1, "duplicate delivery must not bump counters again")
	assert.Len(t, f.contacts.reconciles, 1, "duplicate delivery must not touch contacts")
}

func TestSaveIncomingMessageUnknownConnectionDropped(t *testing.T) {
	f := newFixture() // no accounts registered

	err := f.svc.SaveIncomingMessage(incomingIntent())
	require.NoError(t, err, "unknown connection is dropped, not an error")
	assert.Empty(t, f.messages.inserted)
	assert.Equal(t, 0, f.tx.calls)
}

func TestHandleConnectionUpdateUpserts(t *testing.T) {
	f := newFixture()

	err := f.svc.HandleConnectionUpdate(webhook.ConnectionIntent{
		ConnectionID: "conn-9",
		UserID:       321,
		FirstName:    "New",
		IsEnabled:    true,
		CanReply:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.accounts.upserts)

	account, _ := f.accounts.GetByConnectionID("conn-9")
	require.NotNil(t, account)
	assert.True(t, account.IsEnabled)

	// A disable event flows through the same upsert.
	err = f.svc.HandleConnectionUpdate(webhook.ConnectionIntent{
		ConnectionID: "conn-9",
		UserID:       321,
		FirstName:    "New",
		IsEnabled:    false,
	})
	require.NoError(t, err)
	account, _ = f.accounts.GetByConnectionID("conn-9")
	assert.False(t, account.IsEnabled)
}

func TestSendTextMessageRecordsOutgoingRow(t *testing.T) {
	f := newFixture(ownerAccount())

	// Seed the chat through the ingest path.
	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))

	msg, err := f.svc.SendTextMessage(context.Background(), 1, 1, 1, "reply text", 0)
	require.NoError(t, err)

	require.Len(t, f.bot.calls, 1)
	assert.Equal(t, "sendMessage", f.bot.calls[0].method)
	assert.Equal(t, "conn-1", f.bot.calls[0].businessConnectionID)
	assert.Equal(t, int64(7), f.bot.calls[0].chatID, "sends go to the Telegram chat id, not the row id")

	assert.Equal(t, int64(500), msg.MessageID)
	assert.True(t, msg.IsOutgoing)

	stored := f.messages.inserted[[2]int64{500, 1}]
	require.NotNil(t, stored)
	assert.True(t, stored.IsOutgoing)

	// Webhook redelivery of the same outgoing message is a no-op.
	echo := incomingIntent()
	echo.MessageID = 500
	echo.SenderID = 999
	require.NoError(t, f.svc.SaveIncomingMessage(echo))
	assert.Len(t, f.messages.inserted, 2)
}

func TestSendTextMessageRejectedWhenReplyNotAllowed(t *testing.T) {
	acc := ownerAccount()
	acc.CanReply = false
	f := newFixture(acc)
	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))

	_, err := f.svc.SendTextMessage(context.Background(), 1, 1, 1, "reply", 0)
	assert.ErrorIs(t, err, service.ErrReplyNotAllowed)
	assert.Empty(t, f.bot.calls)
}

func TestSendFileMessageUnsupportedKind(t *testing.T) {
	f := newFixture(ownerAccount())
	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))

	_, err := f.svc.SendFileMessage(context.Background(), 1, 1, 1, webhook.KindVoice, "file-1", "")
	assert.Error(t, err)
}

func TestVirtualAccountsEndToEnd(t *testing.T) {
	f := newFixture(ownerAccount())
	f.accounts.enabledUsers = []int64{999}

	intent := incomingIntent()
	require.NoError(t, f.svc.SaveIncomingMessage(intent))

	// A second chat whose counterpart is the enabled owner itself: a business
	// to business conversation that must be filtered.
	b2b := incomingIntent()
	b2b.MessageID = 101
	b2b.ChatID = 999
	require.NoError(t, f.svc.SaveIncomingMessage(b2b))

	virtual, err := f.svc.VirtualAccounts()
	require.NoError(t, err)
	require.Len(t, virtual, 1)
	require.Len(t, virtual[0].Chats, 1)
	assert.Equal(t, int64(7), virtual[0].Chats[0].ChatID)
}

func TestChatsForAccountIncludesLastMessage(t *testing.T) {
	f := newFixture(ownerAccount())

	first := incomingIntent()
	require.NoError(t, f.svc.SaveIncomingMessage(first))

	second := incomingIntent()
	second.MessageID = 101
	second.Text = "goodbye"
	second.Date = time.Unix(1700000100, 0)
	require.NoError(t, f.svc.SaveIncomingMessage(second))

	chats, err := f.svc.ChatsForAccount(1)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "goodbye", chats[0].LastMessage.Text)
	assert.Equal(t, int64(101), chats[0].LastMessage.MessageID)
}

func TestMarkChatRead(t *testing.T) {
	f := newFixture(ownerAccount())
	require.NoError(t, f.svc.SaveIncomingMessage(incomingIntent()))

	chat, _ := f.chats.GetByID(1)
	require.Equal(t, 1, chat.UnreadCount)

	require.NoError(t, f.svc.MarkChatRead(1))
	chat, _ = f.chats.GetByID(1)
	assert.Equal(t, 0, chat.UnreadCount)

	assert.ErrorIs(t, f.svc.MarkChatRead(404), service.ErrChatNotFound)
}
