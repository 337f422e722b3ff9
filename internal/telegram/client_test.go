package telegram_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/telegram"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotParams map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": 500, "date": 1700000500},
		})
	}))
	defer srv.Close()

	client := telegram.NewClient(srv.URL, zap.NewNop())
	sent, err := client.SendMessage(context.Background(), "test-token", "conn-1", 42, "hello", 7)
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "conn-1", gotParams["business_connection_id"])
	assert.Equal(t, float64(42), gotParams["chat_id"])
	assert.Equal(t, "hello", gotParams["text"])
	assert.Equal(t, float64(7), gotParams["reply_to_message_id"])

	assert.Equal(t, int64(500), sent.MessageID)
	assert.Equal(t, int64(1700000500), sent.Date)
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"description": "Bad Request: chat not found",
		})
	}))
	defer srv.Close()

	client := telegram.NewClient(srv.URL, zap.NewNop())
	_, err := client.SendMessage(context.Background(), "t", "conn-1", 42, "hello", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendPhotoOmitsEmptyOptionals(t *testing.T) {
	var gotParams map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotParams))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"message_id": 1, "date": 1},
		})
	}))
	defer srv.Close()

	client := telegram.NewClient(srv.URL, zap.NewNop())
	_, err := client.SendPhoto(context.Background(), "t", "conn-1", 42, "file-abc", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "file-abc", gotParams["photo"])
	_, hasCaption := gotParams["caption"]
	assert.False(t, hasCaption)
	_, hasReply := gotParams["reply_to_message_id"]
	assert.False(t, hasReply)
}
