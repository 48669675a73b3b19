// ABOUTME: Tests for the Telegram client
// ABOUTME: Uses an httptest double for the Bot API sendMessage endpoint

package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	var gotPath string
	var gotReq sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(apiResponse{OK: true})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	err := client.SendMessage(context.Background(), "123:abc", 42, "hello chat")
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, int64(42), gotReq.ChatID)
	assert.Equal(t, "hello chat", gotReq.Text)
}

func TestClient_SendMessage_APIRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{OK: false, Description: "chat not found"})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	err := client.SendMessage(context.Background(), "tok", 99, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestClient_SendMessage_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL)
	err := client.SendMessage(context.Background(), "tok", 1, "hi")
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestClient_DefaultAPIBase(t *testing.T) {
	client := NewClient("")
	assert.Equal(t, DefaultAPIBase, client.apiBase)
}

func TestUpdate_Decode(t *testing.T) {
	raw := `{
		"update_id": 7001,
		"message": {
			"message_id": 15,
			"from": {"id": 555, "is_bot": false, "first_name": "Ada", "username": "ada"},
			"chat": {"id": -100200, "type": "group"},
			"date": 1700000000,
			"text": "What are your opening hours?"
		}
	}`

	var update Update
	require.NoError(t, json.Unmarshal([]byte(raw), &update))
	require.NotNil(t, update.Message)
	assert.Equal(t, int64(7001), update.UpdateID)
	assert.Equal(t, int64(555), update.Message.From.ID)
	assert.Equal(t, int64(-100200), update.Message.Chat.ID)
	assert.Equal(t, "What are your opening hours?", update.Message.Text)
}
