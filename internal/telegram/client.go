package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SentMessage is the subset of the Bot API message object this service records
// after a successful send.
type SentMessage struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
}

// Client talks to the Telegram Bot API for business-connection sends. The
// bot token is passed per call because each business owner configures their
// own bot through the settings service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Bot API client. baseURL is overridable for tests;
// pass "" for the production endpoint.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, botToken, method string, params map[string]interface{}) (*SentMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to call Telegram Bot API", zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("failed to call Telegram API: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode Telegram API response: %w", err)
	}
	if !apiResp.OK {
		c.logger.Error("Telegram API error", zap.String("method", method), zap.String("description", apiResp.Description))
		return nil, fmt.Errorf("telegram API error: %s", apiResp.Description)
	}

	var sent SentMessage
	if err := json.Unmarshal(apiResp.Result, &sent); err != nil {
		return nil, fmt.Errorf("failed to decode sent message: %w", err)
	}
	return &sent, nil
}

// SendMessage sends a text message on a business connection.
func (c *Client) SendMessage(ctx context.Context, botToken, businessConnectionID string, chatID int64, text string, replyToMessageID int64) (*SentMessage, error) {
	params := map[string]interface{}{
		"business_connection_id": businessConnectionID,
		"chat_id":                chatID,
		"text":                   text,
	}
	if replyToMessageID != 0 {
		params["reply_to_message_id"] = replyToMessageID
	}
	return c.call(ctx, botToken, "sendMessage", params)
}

// SendPhoto sends a photo by Telegram file id on a business connection.
func (c *Client) SendPhoto(ctx context.Context, botToken, businessConnectionID string, chatID int64, photoFileID, caption string, replyToMessageID int64) (*SentMessage, error) {
	params := map[string]interface{}{
		"business_connection_id": businessConnectionID,
		"chat_id":                chatID,
		"photo":                  photoFileID,
	}
	if caption != "" {
		params["caption"] = caption
	}
	if replyToMessageID != 0 {
		params["reply_to_message_id"] = replyToMessageID
	}
	return c.call(ctx, botToken, "sendPhoto", params)
}

// SendDocument sends a document by Telegram file id on a business connection.
func (c *Client) SendDocument(ctx context.Context, botToken, businessConnectionID string, chatID int64, documentFileID, caption string, replyToMessageID int64) (*SentMessage, error) {
	params := map[string]interface{}{
		"business_connection_id": businessConnectionID,
		"chat_id":                chatID,
		"document":               documentFileID,
	}
	if caption != "" {
		params["caption"] = caption
	}
	if replyToMessageID != 0 {
		params["reply_to_message_id"] = replyToMessageID
	}
	return c.call(ctx, botToken, "sendDocument", params)
}
