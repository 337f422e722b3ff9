package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"backend/internal/crypto"
	"backend/internal/repository"
)

// Credential types stored in settings.
const (
	KeyTypeTelegramBot = "telegram_bot"
	KeyTypeOpenRouter  = "openrouter"
)

var (
	ErrUnknownKeyType = errors.New("unknown api key type")
	ErrKeyNotFound    = errors.New("api key not found")
)

// APIKeyInfo is what the settings endpoints expose. The decrypted value never
// leaves the service; only a masked preview does.
type APIKeyInfo struct {
	KeyType     string `json:"key_type"`
	MaskedValue string `json:"masked_value"`
	IsActive    bool   `json:"is_active"`
}

type SettingsService interface {
	SetAPIKey(userID int64, keyType, value string) error
	ListAPIKeys(userID int64) ([]APIKeyInfo, error)
	DeleteAPIKey(userID int64, keyType string) error
	// BotToken returns the decrypted Telegram bot token for the user.
	BotToken(userID int64) (string, error)
	DecryptedAPIKey(userID int64, keyType string) (string, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	authRepo     repository.AuthRepository
	keyManager   *crypto.KeyManager
	logger       *zap.Logger
}

func NewSettingsService(settingsRepo repository.SettingsRepository, authRepo repository.AuthRepository, keyManager *crypto.KeyManager, logger *zap.Logger) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		authRepo:     authRepo,
		keyManager:   keyManager,
		logger:       logger,
	}
}

func validKeyType(keyType string) bool {
	return keyType == KeyTypeTelegramBot || keyType == KeyTypeOpenRouter
}

// SetAPIKey encrypts the credential with the user's data key and stores it.
func (s *settingsService) SetAPIKey(userID int64, keyType, value string) error {
	if !validKeyType(keyType) {
		return ErrUnknownKeyType
	}
	if value == "" {
		return errors.New("api key value is empty")
	}

	user, err := s.authRepo.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return errors.New("user not found")
	}

	encrypted, err := s.keyManager.EncryptSecret(value, userID, user.DKEncrypted)
	if err != nil {
		s.logger.Error("Failed to encrypt api key", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}

	if _, err := s.settingsRepo.UpsertAPIKey(userID, keyType, encrypted); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	s.logger.Info("API key updated", zap.Int64("user_id", userID), zap.String("key_type", keyType))
	return nil
}

func (s *settingsService) ListAPIKeys(userID int64) ([]APIKeyInfo, error) {
	keys, err := s.settingsRepo.ListAPIKeys(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	infos := make([]APIKeyInfo, 0, len(keys))
	for _, k := range keys {
		masked := "****"
		if value, err := s.decrypt(userID, k.EncryptedValue); err == nil {
			masked = maskValue(value)
		}
		infos = append(infos, APIKeyInfo{
			KeyType:     k.KeyType,
			MaskedValue: masked,
			IsActive:    k.IsActive,
		})
	}
	return infos, nil
}

func (s *settingsService) DeleteAPIKey(userID int64, keyType string) error {
	if !validKeyType(keyType) {
		return ErrUnknownKeyType
	}
	if err := s.settingsRepo.DeleteAPIKey(userID, keyType); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

func (s *settingsService) BotToken(userID int64) (string, error) {
	return s.DecryptedAPIKey(userID, KeyTypeTelegramBot)
}

func (s *settingsService) DecryptedAPIKey(userID int64, keyType string) (string, error) {
	if !validKeyType(keyType) {
		return "", ErrUnknownKeyType
	}
	key, err := s.settingsRepo.GetAPIKey(userID, keyType)
	if err != nil {
		return "", fmt.Errorf("failed to load api key: %w", err)
	}
	if key == nil {
		return "", ErrKeyNotFound
	}
	return s.decrypt(userID, key.EncryptedValue)
}

func (s *settingsService) decrypt(userID int64, encrypted string) (string, error) {
	user, err := s.authRepo.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return "", errors.New("user not found")
	}
	value, err := s.keyManager.DecryptSecret(encrypted, userID, user.DKEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt api key: %w", err)
	}
	return value, nil
}

// maskValue keeps the first and last four characters of a credential visible.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
