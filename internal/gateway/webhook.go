// ABOUTME: Inbound Telegram webhook handler
// ABOUTME: Translates Update envelopes into pipeline runs and {ok} responses

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docbot/docbot-gateway/internal/pipeline"
	"github.com/docbot/docbot-gateway/internal/store"
	"github.com/docbot/docbot-gateway/internal/telegram"
)

// webhookResponse is the JSON envelope returned to the channel. The channel
// only cares about ok; info and response_sent aid debugging.
type webhookResponse struct {
	OK           bool   `json:"ok"`
	Info         string `json:"info,omitempty"`
	ResponseSent string `json:"response_sent,omitempty"`
	Error        string `json:"error,omitempty"`
}

func writeWebhookJSON(w http.ResponseWriter, status int, resp webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleTelegramWebhook handles POST /webhook/telegram?api_key=K.
//
// Any handled outcome, including the empty-text short-circuit, answers
// {ok:true}. Only malformed envelopes and unknown bots answer {ok:false}
// with an error status; the channel retries on its own policy.
func (g *Gateway) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	apiKey := r.URL.Query().Get("api_key")
	if apiKey == "" {
		writeWebhookJSON(w, http.StatusBadRequest, webhookResponse{Error: "missing api_key for bot identification"})
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeWebhookJSON(w, http.StatusBadRequest, webhookResponse{Error: "invalid JSON body"})
		return
	}

	msg := update.Message
	if msg == nil || msg.Text == "" {
		g.logger.Info("no message text to process, skipping")
		writeWebhookJSON(w, http.StatusOK, webhookResponse{OK: true, Info: "no message text to process"})
		return
	}

	if msg.From == nil || msg.From.ID == 0 || msg.Chat == nil || msg.Chat.ID == 0 {
		writeWebhookJSON(w, http.StatusBadRequest, webhookResponse{Error: "missing user or chat ID"})
		return
	}

	inbound := &pipeline.InboundMessage{
		ExternalMessageID: strconv.FormatInt(msg.MessageID, 10),
		SenderID:          strconv.FormatInt(msg.From.ID, 10),
		Username:          displayName(msg.From),
		ChatID:            strconv.FormatInt(msg.Chat.ID, 10),
		Text:              msg.Text,
		Timestamp:         time.Unix(msg.Date, 0).UTC(),
	}

	outcome, err := g.pipeline.Handle(r.Context(), apiKey, inbound)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBotNotFound):
			writeWebhookJSON(w, http.StatusNotFound, webhookResponse{Error: "bot configuration not found"})
		case errors.Is(err, pipeline.ErrMalformedMessage):
			writeWebhookJSON(w, http.StatusBadRequest, webhookResponse{Error: "missing user or chat ID"})
		default:
			g.logger.Error("webhook processing error", "error", err)
			writeWebhookJSON(w, http.StatusInternalServerError, webhookResponse{Error: "webhook processing error"})
		}
		return
	}

	if outcome.State == pipeline.StateShortCircuited {
		writeWebhookJSON(w, http.StatusOK, webhookResponse{OK: true, Info: outcome.Info})
		return
	}
	writeWebhookJSON(w, http.StatusOK, webhookResponse{OK: true, ResponseSent: previewText(outcome.Reply, 100)})
}

// displayName prefers the username, falling back to the full name.
func displayName(u *telegram.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// previewText truncates s to limit runes with a trailing "..." marker.
func previewText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
