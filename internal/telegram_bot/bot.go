package telegram_bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/repository"
)

// Bot is the operator-facing bot. It binds a CRM user to a Telegram account
// via one-time link codes and answers quick status commands. Business webhook
// traffic does not pass through here.
type Bot struct {
	api         *tgbotapi.BotAPI
	logger      *zap.Logger
	authRepo    repository.AuthRepository
	contactRepo repository.ContactRepository
	cfg         *config.Config
}

// NewBot creates a new Telegram bot instance
func NewBot(cfg *config.Config, authRepo repository.AuthRepository, contactRepo repository.ContactRepository, logger *zap.Logger) (*Bot, error) {
	if !cfg.Telegram.OperatorBotEnabled || cfg.Telegram.OperatorBotToken == "" {
		logger.Info("Telegram operator bot is disabled (telegram.operator_bot_enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.OperatorBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:         botAPI,
		logger:      logger,
		authRepo:    authRepo,
		contactRepo: contactRepo,
		cfg:         cfg,
	}, nil
}

// Start begins listening for updates from Telegram
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(update.Message)
			}
		}
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStartCommand(message)
		case "help":
			b.handleHelpCommand(message)
		case "stats":
			b.handleStatsCommand(message)
		default:
			b.sendMessage(message.Chat.ID, "Неизвестная команда. Используйте /help для помощи.")
		}
	}
}

// handleStartCommand handles /start. With a link code as argument it binds the
// caller's Telegram account to the CRM user that issued the code.
func (b *Bot) handleStartCommand(message *tgbotapi.Message) {
	code := strings.TrimSpace(message.CommandArguments())
	if code == "" {
		welcomeText := fmt.Sprintf(
			"👋 Привет, %s!\n\n"+
				"Я бот CRM для Telegram Business аккаунтов.\n\n"+
				"Чтобы привязать ваш Telegram к аккаунту CRM, сгенерируйте код привязки в настройках и отправьте его мне командой /start <код>.\n\n"+
				"Используйте /help для получения дополнительной информации.",
			message.From.FirstName,
		)
		b.sendMessage(message.Chat.ID, welcomeText)
		return
	}

	user, err := b.authRepo.LinkTelegramUser(code, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to link telegram user", zap.Int64("telegram_user_id", message.From.ID), zap.Error(err))
		b.sendMessage(message.Chat.ID, "❌ Ошибка привязки аккаунта, попробуйте позже")
		return
	}
	if user == nil {
		b.sendMessage(message.Chat.ID, "❌ Код привязки не найден или уже использован")
		return
	}

	b.logger.Info("Telegram account linked",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_user_id", message.From.ID),
	)
	b.sendMessage(message.Chat.ID, fmt.Sprintf("✅ Telegram привязан к аккаунту %s", user.Username))
}

// handleHelpCommand handles the /help command
func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	helpText := "📚 Помощь:\n\n" +
		"/start <код> - Привязать Telegram к аккаунту CRM\n" +
		"/stats - Краткая статистика по контактам\n" +
		"/help - Эта справка\n\n" +
		"Ваш Telegram ID: " + strconv.FormatInt(message.From.ID, 10)
	b.sendMessage(message.Chat.ID, helpText)
}

// handleStatsCommand handles /stats for linked operators.
func (b *Bot) handleStatsCommand(message *tgbotapi.Message) {
	stats, err := b.contactRepo.Stats(0)
	if err != nil {
		b.logger.Error("Failed to load contact stats", zap.Error(err))
		b.sendMessage(message.Chat.ID, "❌ Не удалось получить статистику")
		return
	}

	statsText := fmt.Sprintf(
		"📊 Статистика CRM:\n\n"+
			"👥 Контактов всего: %d\n"+
			"🆕 Новых сегодня: %d\n"+
			"📅 Новых за неделю: %d",
		stats.TotalContacts,
		stats.NewContactsToday,
		stats.NewContactsWeek,
	)
	b.sendMessage(message.Chat.ID, statsText)
}

// sendMessage is a helper to send a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
