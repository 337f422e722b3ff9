package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/handler"
	"backend/internal/models"
	"backend/internal/webhook"
)

type fakeAccountService struct {
	connectionErr error
	messageErr    error
	connections   []webhook.ConnectionIntent
	messages      []webhook.MessageIntent
	deleted       []webhook.DeletedIntent
}

func (s *fakeAccountService) HandleConnectionUpdate(i webhook.ConnectionIntent) error {
	s.connections = append(s.connections, i)
	return s.connectionErr
}

func (s *fakeAccountService) SaveIncomingMessage(i webhook.MessageIntent) error {
	s.messages = append(s.messages, i)
	return s.messageErr
}

func (s *fakeAccountService) HandleDeletedMessages(i webhook.DeletedIntent) {
	s.deleted = append(s.deleted, i)
}

func (s *fakeAccountService) VirtualAccounts() ([]models.VirtualAccount, error) { return nil, nil }
func (s *fakeAccountService) ChatsForAccount(int64) ([]models.ChatWithLastMessage, error) {
	return nil, nil
}
func (s *fakeAccountService) ChatMessages(int64, int, int) ([]models.BusinessMessage, error) {
	return nil, nil
}
func (s *fakeAccountService) MarkChatRead(int64) error { return nil }
func (s *fakeAccountService) AccountStats(int64) (*models.BusinessAccountStats, error) {
	return nil, nil
}
func (s *fakeAccountService) SearchMessages(int64, string, int) ([]models.BusinessMessage, error) {
	return nil, nil
}
func (s *fakeAccountService) SendTextMessage(context.Context, int64, int64, int64, string, int64) (*models.BusinessMessage, error) {
	return nil, nil
}
func (s *fakeAccountService) SendFileMessage(context.Context, int64, int64, int64, string, string, string) (*models.BusinessMessage, error) {
	return nil, nil
}

func newWebhookRouter(svc *fakeAccountService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := handler.NewWebhookHandler(webhook.NewNormalizer(zap.NewNop()), svc, zap.NewNop())
	router.POST("/webhook", h.HandleUpdate)
	return router
}

func postWebhook(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatchesBusinessMessage(t *testing.T) {
	svc := &fakeAccountService{}
	router := newWebhookRouter(svc)

	w := postWebhook(router, `{
		"update_id": 1,
		"business_message": {
			"message_id": 100,
			"business_connection_id": "conn-1",
			"from": {"id": 555, "first_name": "Anna"},
			"chat": {"id": 7, "type": "private"},
			"date": 1700000000,
			"text": "hello"
		}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.messages, 1)
	assert.Equal(t, int64(100), svc.messages[0].MessageID)
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	svc := &fakeAccountService{}
	router := newWebhookRouter(svc)

	w := postWebhook(router, `{not json`)
	assert.Equal(t, http.StatusOK, w.Code, "Telegram retries non-200 responses forever")
	assert.Empty(t, svc.messages)
}

func TestWebhookAcksProcessingFailure(t *testing.T) {
	svc := &fakeAccountService{connectionErr: errors.New("db down")}
	router := newWebhookRouter(svc)

	w := postWebhook(router, `{
		"update_id": 2,
		"business_connection": {
			"id": "conn-1",
			"user": {"id": 999, "first_name": "Boris"},
			"is_enabled": true
		}
	}`)

	assert.Equal(t, http.StatusOK, w.Code, "processing failures must not leak to the transport")
	assert.Len(t, svc.connections, 1)
}

func TestWebhookAcksIrrelevantUpdate(t *testing.T) {
	svc := &fakeAccountService{}
	router := newWebhookRouter(svc)

	w := postWebhook(router, `{"update_id": 3, "message": {"message_id": 5, "chat": {"id": 1}, "date": 1}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.messages)
	assert.Empty(t, svc.connections)
}
