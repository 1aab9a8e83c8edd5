package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gorillaws "github.com/gorilla/websocket"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/websocket"
)

const maxBodyBytes = 1 << 20

// ScoreService is the score business logic the HTTP surface calls into
type ScoreService interface {
	SubmitScore(ctx context.Context, submission domain.ScoreSubmission) (domain.ScoreRecord, error)
	SubmitScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) (int, error)
	GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// GameServer accepts socket connections and reports live counts
type GameServer interface {
	websocket.Dispatcher
	ActivePlayers() int
	Connections() int
	Players() []domain.PlayerSession
}

// ReadyCheck is one dependency probed by /ready
type ReadyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler provides HTTP handlers for the game server
type Handler struct {
	service   ScoreService
	game      GameServer
	upgrader  *gorillaws.Upgrader
	clientURL string
	checks    []ReadyCheck
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler. clientURL is the single browser
// origin allowed by CORS and the socket upgrade; empty allows any.
func NewHandler(service ScoreService, game GameServer, clientURL string, logger *slog.Logger, checks ...ReadyCheck) *Handler {
	return &Handler{
		service:   service,
		game:      game,
		upgrader:  websocket.NewUpgrader(clientURL),
		clientURL: strings.TrimRight(clientURL, "/"),
		checks:    checks,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// MessageResponse is the error body of the score endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(h.corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/score", func(r chi.Router) {
		r.Post("/scores", h.SubmitScore)
		r.Post("/scores/batch", h.SubmitScoreBatch)
		r.Get("/leaderboard", h.GetLeaderboard)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers for the configured client origin
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	allowed := h.clientURL
	if allowed == "" {
		allowed = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")
		if allowed != "*" {
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeMessage writes a {message} error body
func (h *Handler) writeMessage(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, MessageResponse{Message: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// SubmitScore stores one finished run
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var submission domain.ScoreSubmission
	if err := decodeBody(r, &submission); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.service.SubmitScore(r.Context(), submission)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeMessage(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to submit score", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, rec)
}

// SubmitScoreBatch stores several finished runs
func (h *Handler) SubmitScoreBatch(w http.ResponseWriter, r *http.Request) {
	var batch domain.BatchScoreSubmission
	if err := decodeBody(r, &batch); err != nil {
		h.writeMessage(w, http.StatusBadRequest, err)
		return
	}
	if len(batch.Scores) == 0 {
		h.writeMessage(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stored, err := h.service.SubmitScoreBatch(r.Context(), batch)
	if err != nil {
		h.logger.Error("failed to submit score batch", "error", err, "stored", stored)
		h.writeMessage(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int{
		"received": len(batch.Scores),
		"stored":   stored,
	})
}

// GetLeaderboard returns the top scores. A missing or malformed limit uses
// the default.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}

	entries, err := h.service.GetTopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.game, h.upgrader, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.game.Connections(),
		"active_players":    h.game.ActivePlayers(),
		"players":           h.game.Players(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready only when every dependency answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var errs []error
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	if len(errs) > 0 {
		h.writeError(w, http.StatusServiceUnavailable, errors.Join(errs...))
		return
	}

	h.writeSuccess(w, map[string]string{"status": "ready"})
}
