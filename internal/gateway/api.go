// ABOUTME: HTTP API handlers for the dashboard: bot CRUD, documents, chats
// ABOUTME: Thin JSON glue over the store plus persona synthesis on bot creation

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docbot/docbot-gateway/internal/genai"
	"github.com/docbot/docbot-gateway/internal/store"
)

// CreateBotRequest is the JSON request body for POST /api/bots.
type CreateBotRequest struct {
	APIKey            string `json:"api_key"`
	Name              string `json:"name"`
	PersonalityPrompt string `json:"personality_prompt"`
}

// UpdateBotRequest is the JSON request body for PUT /api/bots/{id}.
// Empty fields are left unchanged.
type UpdateBotRequest struct {
	APIKey            string `json:"api_key,omitempty"`
	Name              string `json:"name,omitempty"`
	PersonalityPrompt string `json:"personality_prompt,omitempty"`
	Persona           string `json:"persona,omitempty"`
	Greeting          string `json:"greeting,omitempty"`
	Fallback          string `json:"fallback,omitempty"`
}

// BotResponse is the JSON shape of a bot profile.
type BotResponse struct {
	ID                string `json:"id"`
	APIKey            string `json:"api_key"`
	Name              string `json:"name"`
	PersonalityPrompt string `json:"personality_prompt"`
	Persona           string `json:"persona"`
	Greeting          string `json:"greeting"`
	Fallback          string `json:"fallback"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// CreateDocumentRequest is the JSON request body for POST /api/documents.
type CreateDocumentRequest struct {
	BotID    string `json:"bot_id"`
	FileName string `json:"file_name"`
	Body     string `json:"body"`
}

// DocumentResponse is the JSON shape of a knowledge document.
type DocumentResponse struct {
	ID        string `json:"id"`
	BotID     string `json:"bot_id"`
	FileName  string `json:"file_name"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// ChatResponse is the JSON shape of one conversation summary.
type ChatResponse struct {
	ChatID          string `json:"chat_id"`
	SenderID        string `json:"sender_id"`
	Username        string `json:"username,omitempty"`
	LastMessageText string `json:"last_message_text"`
	LastMessageAt   string `json:"last_message_at"`
}

func botResponse(bot *store.BotProfile) BotResponse {
	return BotResponse{
		ID:                bot.ID,
		APIKey:            bot.APIKey,
		Name:              bot.Name,
		PersonalityPrompt: bot.PersonalityPrompt,
		Persona:           bot.Persona,
		Greeting:          bot.Greeting,
		Fallback:          bot.Fallback,
		CreatedAt:         bot.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         bot.UpdatedAt.Format(time.RFC3339),
	}
}

func documentResponse(doc *store.KnowledgeSnippet) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		BotID:     doc.BotID,
		FileName:  doc.FileName,
		Body:      doc.Body,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
	}
}

// sendJSON writes a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

// handleBots handles POST (create) and GET (list) on /api/bots.
func (g *Gateway) handleBots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.handleCreateBot(w, r)
	case http.MethodGet:
		g.handleListBots(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleCreateBot creates a bot profile. The persona, greeting, and fallback
// are synthesized from the personality prompt by the generation backend
// before the profile is stored.
func (g *Gateway) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.APIKey == "" || req.Name == "" || req.PersonalityPrompt == "" {
		g.sendJSONError(w, http.StatusBadRequest, "api_key, name, and personality_prompt are required")
		return
	}

	details, err := genai.GeneratePersona(r.Context(), g.backend, req.PersonalityPrompt)
	if err != nil {
		g.logger.Error("persona synthesis failed", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "failed to generate bot persona")
		return
	}

	now := time.Now().UTC()
	bot := &store.BotProfile{
		ID:                uuid.NewString(),
		APIKey:            req.APIKey,
		Name:              req.Name,
		PersonalityPrompt: req.PersonalityPrompt,
		Persona:           details.Persona,
		Greeting:          details.Greeting,
		Fallback:          details.Fallback,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := g.store.CreateBot(r.Context(), bot); err != nil {
		if errors.Is(err, store.ErrDuplicateAPIKey) {
			g.sendJSONError(w, http.StatusConflict, "api key already registered to another bot")
			return
		}
		g.logger.Error("failed to create bot", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("bot created", "bot_id", bot.ID, "name", bot.Name)
	g.sendJSON(w, http.StatusCreated, botResponse(bot))
}

func (g *Gateway) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := g.store.ListBots(r.Context())
	if err != nil {
		g.logger.Error("failed to list bots", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]BotResponse, 0, len(bots))
	for _, bot := range bots {
		response = append(response, botResponse(bot))
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleBotRoutes dispatches /api/bots/{id} and /api/bots/{id}/chats.
func (g *Gateway) handleBotRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/bots/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}
	botID := parts[0]

	if len(parts) == 2 && parts[1] == "chats" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleBotChats(w, r, botID)
		return
	}
	if len(parts) != 1 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		g.handleGetBot(w, r, botID)
	case http.MethodPut:
		g.handleUpdateBot(w, r, botID)
	case http.MethodDelete:
		g.handleDeleteBot(w, r, botID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleGetBot(w http.ResponseWriter, r *http.Request, botID string) {
	bot, err := g.store.GetBot(r.Context(), botID)
	if err != nil {
		if errors.Is(err, store.ErrBotNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "bot not found")
			return
		}
		g.logger.Error("failed to get bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, botResponse(bot))
}

func (g *Gateway) handleUpdateBot(w http.ResponseWriter, r *http.Request, botID string) {
	var req UpdateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bot, err := g.store.GetBot(r.Context(), botID)
	if err != nil {
		if errors.Is(err, store.ErrBotNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "bot not found")
			return
		}
		g.logger.Error("failed to get bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.APIKey != "" {
		bot.APIKey = req.APIKey
	}
	if req.Name != "" {
		bot.Name = req.Name
	}
	if req.PersonalityPrompt != "" {
		bot.PersonalityPrompt = req.PersonalityPrompt
	}
	if req.Persona != "" {
		bot.Persona = req.Persona
	}
	if req.Greeting != "" {
		bot.Greeting = req.Greeting
	}
	if req.Fallback != "" {
		bot.Fallback = req.Fallback
	}

	if err := g.store.UpdateBot(r.Context(), bot); err != nil {
		if errors.Is(err, store.ErrDuplicateAPIKey) {
			g.sendJSONError(w, http.StatusConflict, "api key already registered to another bot")
			return
		}
		g.logger.Error("failed to update bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := g.store.GetBot(r.Context(), botID)
	if err != nil {
		g.logger.Error("failed to reload bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, botResponse(updated))
}

func (g *Gateway) handleDeleteBot(w http.ResponseWriter, r *http.Request, botID string) {
	if err := g.store.DeleteBot(r.Context(), botID); err != nil {
		if errors.Is(err, store.ErrBotNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "bot not found")
			return
		}
		g.logger.Error("failed to delete bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBotChats returns the conversation summaries for a bot, newest first.
func (g *Gateway) handleBotChats(w http.ResponseWriter, r *http.Request, botID string) {
	if _, err := g.store.GetBot(r.Context(), botID); err != nil {
		if errors.Is(err, store.ErrBotNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "bot not found")
			return
		}
		g.logger.Error("failed to get bot", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	chats, err := g.store.ListChats(r.Context(), botID)
	if err != nil {
		g.logger.Error("failed to list chats", "bot_id", botID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		response = append(response, ChatResponse{
			ChatID:          chat.ChatID,
			SenderID:        chat.SenderID,
			Username:        chat.Username,
			LastMessageText: chat.LastMessageText,
			LastMessageAt:   chat.LastMessageAt.Format(time.RFC3339),
		})
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleDocuments handles POST (create) and GET (list) on /api/documents.
func (g *Gateway) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.handleCreateDocument(w, r)
	case http.MethodGet:
		g.handleListDocuments(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BotID == "" || req.FileName == "" || req.Body == "" {
		g.sendJSONError(w, http.StatusBadRequest, "bot_id, file_name, and body are required")
		return
	}

	if _, err := g.store.GetBot(r.Context(), req.BotID); err != nil {
		if errors.Is(err, store.ErrBotNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "bot not found")
			return
		}
		g.logger.Error("failed to get bot", "bot_id", req.BotID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	doc := &store.KnowledgeSnippet{
		ID:        uuid.NewString(),
		BotID:     req.BotID,
		FileName:  req.FileName,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.AddDocument(r.Context(), doc); err != nil {
		g.logger.Error("failed to add document", "bot_id", req.BotID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("document added", "document_id", doc.ID, "bot_id", doc.BotID, "file_name", doc.FileName)
	g.sendJSON(w, http.StatusCreated, documentResponse(doc))
}

func (g *Gateway) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var docs []*store.KnowledgeSnippet
	var err error

	if botID := r.URL.Query().Get("bot_id"); botID != "" {
		docs, err = g.store.DocumentsForBot(r.Context(), botID)
	} else {
		docs, err = g.store.ListDocuments(r.Context())
	}
	if err != nil {
		g.logger.Error("failed to list documents", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		response = append(response, documentResponse(doc))
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleDocumentRoutes dispatches /api/documents/{id}.
func (g *Gateway) handleDocumentRoutes(w http.ResponseWriter, r *http.Request) {
	docID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if docID == "" || strings.Contains(docID, "/") {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := g.store.GetDocument(r.Context(), docID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.sendJSONError(w, http.StatusNotFound, "document not found")
				return
			}
			g.logger.Error("failed to get document", "document_id", docID, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		g.sendJSON(w, http.StatusOK, documentResponse(doc))
	case http.MethodDelete:
		if err := g.store.DeleteDocument(r.Context(), docID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.sendJSONError(w, http.StatusNotFound, "document not found")
				return
			}
			g.logger.Error("failed to delete document", "document_id", docID, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
