// ABOUTME: Test harness for the gateway HTTP surface
// ABOUTME: In-memory store, stubbed generation backend, recording channel client

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/docbot/docbot-gateway/internal/pipeline"
	"github.com/docbot/docbot-gateway/internal/store"
)

// stubBackend returns canned completions and records prompts.
type stubBackend struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubBackend) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

// recordedSend is one captured outbound chunk.
type recordedSend struct {
	token  string
	chatID string
	text   string
}

// recordingChannel captures outbound sends instead of hitting Telegram.
type recordingChannel struct {
	sent []recordedSend
}

func (c *recordingChannel) SendMessage(_ context.Context, token, chatID, text string) error {
	c.sent = append(c.sent, recordedSend{token: token, chatID: chatID, text: text})
	return nil
}

type testGateway struct {
	gw      *Gateway
	store   store.Store
	backend *stubBackend
	channel *recordingChannel
	server  *httptest.Server
}

func setupTestGateway(t *testing.T) *testGateway {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	backend := &stubBackend{reply: "stub reply"}
	channel := &recordingChannel{}

	gw := &Gateway{
		store:    s,
		backend:  backend,
		pipeline: pipeline.New(s, s, s, backend, channel),
		logger:   slog.Default().With("component", "gateway"),
	}

	srv := httptest.NewServer(gw.routes())
	t.Cleanup(srv.Close)

	return &testGateway{gw: gw, store: s, backend: backend, channel: channel, server: srv}
}

// seedBot inserts a bot profile directly into the store.
func (tg *testGateway) seedBot(t *testing.T, apiKey string) *store.BotProfile {
	t.Helper()
	now := time.Now().UTC()
	bot := &store.BotProfile{
		ID:                uuid.NewString(),
		APIKey:            apiKey,
		Name:              "Support Bot",
		PersonalityPrompt: "helpful support agent",
		Persona:           `{"tone":"helpful"}`,
		Greeting:          "Hello!",
		Fallback:          "Sorry, could you rephrase that?",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, tg.store.CreateBot(context.Background(), bot))
	return bot
}

func (tg *testGateway) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(tg.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (tg *testGateway) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(tg.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (tg *testGateway) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, tg.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	tg := setupTestGateway(t)

	resp := tg.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
