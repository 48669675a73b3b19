// ABOUTME: Gateway orchestrator wiring the store, pipeline, and HTTP server
// ABOUTME: Manages startup, route registration, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/docbot/docbot-gateway/internal/config"
	"github.com/docbot/docbot-gateway/internal/genai"
	"github.com/docbot/docbot-gateway/internal/pipeline"
	"github.com/docbot/docbot-gateway/internal/store"
	"github.com/docbot/docbot-gateway/internal/telegram"
)

// Gateway orchestrates the docbot-gateway server components: the SQLite
// store, the generation backend, the conversation pipeline, and the HTTP
// server exposing the webhook and dashboard API.
type Gateway struct {
	config     *config.Config
	store      store.Store
	backend    genai.Backend
	pipeline   *pipeline.Pipeline
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the store from config, honoring the DOCBOT_DB_PATH
// environment override.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("DOCBOT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	logger.Info("store initialized", "path", dbPath)
	return s, nil
}

// telegramChannel adapts the Telegram client to the pipeline's string-keyed
// ChannelClient contract.
type telegramChannel struct {
	client *telegram.Client
}

func (t *telegramChannel) SendMessage(ctx context.Context, token, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return t.client.SendMessage(ctx, token, id, text)
}

// New creates a Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := genai.New(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("creating generation backend: %w", err)
	}

	channel := &telegramChannel{client: telegram.NewClient(cfg.Telegram.APIBase)}
	pipe := pipeline.New(s, s, s, backend, channel)

	gw := &Gateway{
		config:   cfg,
		store:    s,
		backend:  backend,
		pipeline: pipe,
		logger:   logger.With("component", "gateway"),
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP mux for the webhook, dashboard API, and health
// endpoints.
func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/webhook/telegram", g.handleTelegramWebhook)
	mux.HandleFunc("/api/bots", g.handleBots)
	mux.HandleFunc("/api/bots/", g.handleBotRoutes)
	mux.HandleFunc("/api/documents", g.handleDocuments)
	mux.HandleFunc("/api/documents/", g.handleDocumentRoutes)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Shutdown is graceful with a bounded timeout.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if err := g.httpServer.Shutdown(ctx); err != nil {
		g.logger.Warn("HTTP server shutdown error", "error", err)
	}
	if err := g.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	g.logger.Info("gateway stopped")
	return nil
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
