package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
	"backend/internal/telegram"
	"backend/internal/webhook"
)

var (
	ErrAccountNotFound = errors.New("business account not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrReplyNotAllowed = errors.New("replying is not allowed on this connection")
)

// botAPI is the outbound surface of the Telegram client. Only the methods the
// reply path needs.
type botAPI interface {
	SendMessage(ctx context.Context, botToken, businessConnectionID string, chatID int64, text string, replyToMessageID int64) (*telegram.SentMessage, error)
	SendPhoto(ctx context.Context, botToken, businessConnectionID string, chatID int64, photoFileID, caption string, replyToMessageID int64) (*telegram.SentMessage, error)
	SendDocument(ctx context.Context, botToken, businessConnectionID string, chatID int64, documentFileID, caption string, replyToMessageID int64) (*telegram.SentMessage, error)
}

// BotTokenProvider resolves the operator's bot token for outbound sends.
type BotTokenProvider interface {
	BotToken(userID int64) (string, error)
}

type BusinessAccountService interface {
	HandleConnectionUpdate(intent webhook.ConnectionIntent) error
	SaveIncomingMessage(intent webhook.MessageIntent) error
	HandleDeletedMessages(intent webhook.DeletedIntent)

	VirtualAccounts() ([]models.VirtualAccount, error)
	ChatsForAccount(accountID int64) ([]models.ChatWithLastMessage, error)
	ChatMessages(chatID int64, limit, offset int) ([]models.BusinessMessage, error)
	MarkChatRead(chatID int64) error
	AccountStats(accountID int64) (*models.BusinessAccountStats, error)
	SearchMessages(accountID int64, query string, limit int) ([]models.BusinessMessage, error)

	SendTextMessage(ctx context.Context, userID, accountID, chatID int64, text string, replyTo int64) (*models.BusinessMessage, error)
	SendFileMessage(ctx context.Context, userID, accountID, chatID int64, kind, fileID, caption string) (*models.BusinessMessage, error)
}

type businessAccountService struct {
	accountRepo repository.BusinessAccountRepository
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	txRunner    repository.TxRunner
	bot         botAPI
	tokens      BotTokenProvider
	logger      *zap.Logger
}

func NewBusinessAccountService(
	accountRepo repository.BusinessAccountRepository,
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	txRunner repository.TxRunner,
	bot botAPI,
	tokens BotTokenProvider,
	logger *zap.Logger,
) BusinessAccountService {
	return &businessAccountService{
		accountRepo: accountRepo,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		txRunner:    txRunner,
		bot:         bot,
		tokens:      tokens,
		logger:      logger,
	}
}

// HandleConnectionUpdate creates or refreshes the account row for a
// business_connection event. Telegram is authoritative for every field.
func (s *businessAccountService) HandleConnectionUpdate(intent webhook.ConnectionIntent) error {
	account, err := s.accountRepo.Upsert(
		intent.ConnectionID,
		intent.UserID,
		intent.FirstName,
		optional(intent.LastName),
		optional(intent.Username),
		intent.IsEnabled,
		intent.CanReply,
	)
	if err != nil {
		s.logger.Error("Failed to upsert business account",
			zap.String("connection_id", intent.ConnectionID), zap.Error(err))
		return fmt.Errorf("failed to upsert business account: %w", err)
	}

	if intent.IsEnabled {
		s.logger.Info("Business account connected",
			zap.Int64("account_id", account.ID),
			zap.Int64("user_id", account.UserID),
			zap.String("connection_id", account.BusinessConnectionID))
	} else {
		s.logger.Info("Business account disconnected",
			zap.Int64("account_id", account.ID),
			zap.Int64("user_id", account.UserID),
			zap.String("connection_id", account.BusinessConnectionID))
	}
	return nil
}

// SaveIncomingMessage runs the whole ingest for one business message in a
// single transaction: chat upsert, message insert, counter bump, contact
// reconciliation. A message for an unknown connection is dropped with a
// warning so the webhook can still acknowledge the update.
func (s *businessAccountService) SaveIncomingMessage(intent webhook.MessageIntent) error {
	account, err := s.accountRepo.GetByConnectionID(intent.ConnectionID)
	if err != nil {
		return fmt.Errorf("failed to load business account: %w", err)
	}
	if account == nil {
		s.logger.Warn("Dropping message for unknown business connection",
			zap.String("connection_id", intent.ConnectionID),
			zap.Int64("chat_id", intent.ChatID),
			zap.Int64("message_id", intent.MessageID))
		return nil
	}

	isOutgoing := intent.SenderID == account.UserID

	return s.txRunner.InTx(func(q sqlx.Ext) error {
		chat, err := s.chatRepo.Upsert(q, account.ID, intent.ChatID, intent.ChatType,
			optional(intent.ChatTitle), optional(intent.ChatFirst), optional(intent.ChatLast), optional(intent.ChatUsername))
		if err != nil {
			return fmt.Errorf("failed to upsert chat: %w", err)
		}

		msg := &models.BusinessMessage{
			MessageID:       intent.MessageID,
			ChatID:          chat.ID,
			SenderID:        intent.SenderID,
			SenderFirstName: optional(intent.SenderFirst),
			SenderLastName:  optional(intent.SenderLast),
			SenderUsername:  optional(intent.SenderUser),
			Text:            intent.Text,
			MessageType:     intent.Kind,
			IsOutgoing:      isOutgoing,
			TelegramDate:    intent.Date,
		}
		if f := intent.File; f != nil {
			msg.FileID = optional(f.FileID)
			msg.FileUniqueID = optional(f.FileUniqueID)
			msg.FileName = optional(f.FileName)
			msg.MimeType = optional(f.MimeType)
			if f.FileSize > 0 {
				size := f.FileSize
				msg.FileSize = &size
			}
		}

		inserted, err := s.messageRepo.Insert(q, msg)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		if !inserted {
			// Redelivered or edited message already on file. Counters and
			// contacts were bumped on first delivery.
			s.logger.Debug("Skipping duplicate message",
				zap.Int64("message_id", intent.MessageID),
				zap.Int64("chat_id", chat.ID),
				zap.Bool("edited", intent.Edited))
			return nil
		}

		lastMessageAt := sql.NullTime{Time: intent.Date, Valid: true}
		if err := s.chatRepo.BumpCounters(q, chat.ID, lastMessageAt, !isOutgoing); err != nil {
			return fmt.Errorf("failed to bump chat counters: %w", err)
		}

		if !isOutgoing {
			_, err := s.contactRepo.Reconcile(q, intent.SenderID, account.ID,
				intent.SenderFirst, optional(intent.SenderLast), optional(intent.SenderUser),
				contactSource(intent.ChatType), time.Now())
			if err != nil {
				return fmt.Errorf("failed to reconcile contact: %w", err)
			}
		}
		return nil
	})
}

// HandleDeletedMessages records the deletion for the audit log. History rows
// are kept; Telegram deletions do not propagate to storage.
func (s *businessAccountService) HandleDeletedMessages(intent webhook.DeletedIntent) {
	s.logger.Info("Business messages deleted on Telegram side",
		zap.String("connection_id", intent.ConnectionID),
		zap.Int64("chat_id", intent.ChatID),
		zap.Int("count", len(intent.MessageIDs)))
}

// VirtualAccounts returns the merged per-user view of every connection row,
// with business-to-business chats filtered out.
func (s *businessAccountService) VirtualAccounts() ([]models.VirtualAccount, error) {
	accounts, err := s.accountRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load business accounts: %w", err)
	}
	if len(accounts) == 0 {
		return []models.VirtualAccount{}, nil
	}

	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	chats, err := s.chatRepo.ListForAccounts(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}
	chatsByAccount := make(map[int64][]models.BusinessChat)
	for _, c := range chats {
		chatsByAccount[c.BusinessAccountID] = append(chatsByAccount[c.BusinessAccountID], c)
	}

	enabledOwners, err := s.accountRepo.EnabledUserIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled owner ids: %w", err)
	}

	merged := BuildVirtualAccounts(accounts, chatsByAccount)
	for i := range merged {
		merged[i] = FilterBusinessChats(merged[i], enabledOwners)
	}
	return merged, nil
}

// ChatsForAccount returns the merged chat list for the Telegram user behind
// one connection row. Chats from the user's other connection rows are folded
// in so re-registration never splits a conversation history.
// ChatsForAccount returns the merged chat list with a preview of each chat's
// most recent message.
func (s *businessAccountService) ChatsForAccount(accountID int64) ([]models.ChatWithLastMessage, error) {
	virtual, err := s.virtualForAccount(accountID)
	if err != nil {
		return nil, err
	}
	chats := make([]models.ChatWithLastMessage, 0, len(virtual.Chats))
	for _, chat := range virtual.Chats {
		last, err := s.messageRepo.LastForChat(chat.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		chats = append(chats, models.ChatWithLastMessage{BusinessChat: chat, LastMessage: last})
	}
	return chats, nil
}

func (s *businessAccountService) virtualForAccount(accountID int64) (*models.VirtualAccount, error) {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	rows, err := s.accountRepo.GetByUserID(account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling accounts: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, a := range rows {
		ids = append(ids, a.ID)
	}
	chats, err := s.chatRepo.ListForAccounts(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}
	chatsByAccount := make(map[int64][]models.BusinessChat)
	for _, c := range chats {
		chatsByAccount[c.BusinessAccountID] = append(chatsByAccount[c.BusinessAccountID], c)
	}

	enabledOwners, err := s.accountRepo.EnabledUserIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled owner ids: %w", err)
	}

	merged := BuildVirtualAccounts(rows, chatsByAccount)
	if len(merged) == 0 {
		return nil, ErrAccountNotFound
	}
	filtered := FilterBusinessChats(merged[0], enabledOwners)
	return &filtered, nil
}

func (s *businessAccountService) ChatMessages(chatID int64, limit, offset int) ([]models.BusinessMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	messages, err := s.messageRepo.ListForChat(chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

func (s *businessAccountService) MarkChatRead(chatID int64) error {
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return fmt.Errorf("failed to load chat: %w", err)
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if err := s.chatRepo.MarkRead(chatID); err != nil {
		return fmt.Errorf("failed to mark chat read: %w", err)
	}
	return nil
}

func (s *businessAccountService) AccountStats(accountID int64) (*models.BusinessAccountStats, error) {
	virtual, err := s.virtualForAccount(accountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.accountRepo.GetByUserID(virtual.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling accounts: %w", err)
	}
	messagesCount := 0
	for _, a := range rows {
		n, err := s.messageRepo.CountForAccount(a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		messagesCount += n
	}

	unread := 0
	for _, c := range virtual.Chats {
		if c.UnreadCount > 0 {
			unread++
		}
	}

	name := virtual.FirstName
	if virtual.LastName != nil && *virtual.LastName != "" {
		name = name + " " + *virtual.LastName
	}
	username := ""
	if virtual.Username != nil {
		username = *virtual.Username
	}

	return &models.BusinessAccountStats{
		ChatsCount:       len(virtual.Chats),
		MessagesCount:    messagesCount,
		UnreadChatsCount: unread,
		AccountName:      name,
		Username:         username,
		IsEnabled:        virtual.IsEnabled,
	}, nil
}

// SearchMessages looks for a substring across every connection row of the
// account's owner, newest first.
func (s *businessAccountService) SearchMessages(accountID int64, query string, limit int) ([]models.BusinessMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	rows, err := s.accountRepo.GetByUserID(account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling accounts: %w", err)
	}

	var results []models.BusinessMessage
	for _, a := range rows {
		found, err := s.messageRepo.Search(a.ID, query, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search messages: %w", err)
		}
		results = append(results, found...)
		if len(results) >= limit {
			results = results[:limit]
			break
		}
	}
	return results, nil
}

func (s *businessAccountService) SendTextMessage(ctx context.Context, userID, accountID, chatID int64, text string, replyTo int64) (*models.BusinessMessage, error) {
	account, chat, token, err := s.prepareSend(userID, accountID, chatID)
	if err != nil {
		return nil, err
	}
	sent, err := s.bot.SendMessage(ctx, token, account.BusinessConnectionID, chat.ChatID, text, replyTo)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return s.recordOutgoing(account, chat, sent, webhook.KindText, text, nil)
}

func (s *businessAccountService) SendFileMessage(ctx context.Context, userID, accountID, chatID int64, kind, fileID, caption string) (*models.BusinessMessage, error) {
	account, chat, token, err := s.prepareSend(userID, accountID, chatID)
	if err != nil {
		return nil, err
	}

	var sent *telegram.SentMessage
	switch kind {
	case webhook.KindPhoto:
		sent, err = s.bot.SendPhoto(ctx, token, account.BusinessConnectionID, chat.ChatID, fileID, caption, 0)
	case webhook.KindDocument:
		sent, err = s.bot.SendDocument(ctx, token, account.BusinessConnectionID, chat.ChatID, fileID, caption, 0)
	default:
		return nil, fmt.Errorf("unsupported outgoing file kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", kind, err)
	}

	ref := fileID
	return s.recordOutgoing(account, chat, sent, kind, caption, &ref)
}

func (s *businessAccountService) prepareSend(userID, accountID, chatID int64) (*models.BusinessAccount, *models.BusinessChat, string, error) {
	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load business account: %w", err)
	}
	if account == nil {
		return nil, nil, "", ErrAccountNotFound
	}
	if !account.IsEnabled || !account.CanReply {
		return nil, nil, "", ErrReplyNotAllowed
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load chat: %w", err)
	}
	if chat == nil {
		return nil, nil, "", ErrChatNotFound
	}
	token, err := s.tokens.BotToken(userID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to resolve bot token: %w", err)
	}
	return account, chat, token, nil
}

// recordOutgoing stores the message the operator just sent. The webhook will
// redeliver the same message later; the (message_id, chat_id) constraint makes
// that redelivery a no-op.
func (s *businessAccountService) recordOutgoing(account *models.BusinessAccount, chat *models.BusinessChat, sent *telegram.SentMessage, kind, text string, fileID *string) (*models.BusinessMessage, error) {
	msg := &models.BusinessMessage{
		MessageID:       sent.MessageID,
		ChatID:          chat.ID,
		SenderID:        account.UserID,
		SenderFirstName: optional(account.FirstName),
		SenderLastName:  account.LastName,
		SenderUsername:  account.Username,
		Text:            text,
		MessageType:     kind,
		FileID:          fileID,
		IsOutgoing:      true,
		TelegramDate:    time.Unix(sent.Date, 0),
	}

	err := s.txRunner.InTx(func(q sqlx.Ext) error {
		inserted, err := s.messageRepo.Insert(q, msg)
		if err != nil {
			return fmt.Errorf("failed to insert outgoing message: %w", err)
		}
		if !inserted {
			return nil
		}
		lastMessageAt := sql.NullTime{Time: msg.TelegramDate, Valid: true}
		return s.chatRepo.BumpCounters(q, chat.ID, lastMessageAt, false)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// contactSource collapses Telegram chat kinds to the two the contact ledger
// tracks. Supergroups and channels count as group contacts.
func contactSource(chatType string) string {
	if chatType == models.SourcePrivate {
		return models.SourcePrivate
	}
	return models.SourceGroup
}
