package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"coursemind/features/session"
	"coursemind/internal/adapter/gemini"
	"coursemind/internal/middleware"
)

// SessionAdmin covers the session housekeeping endpoints the chat surface
// exposes alongside the query endpoint.
type SessionAdmin interface {
	List(ctx context.Context, userID string) ([]session.Session, error)
	History(ctx context.Context, sessionID string, limit int) ([]session.Turn, error)
	Delete(ctx context.Context, sessionID string) error
	ClearHistory(ctx context.Context, sessionID string) error
}

type Handler struct {
	service  *Service
	sessions SessionAdmin
}

func NewHandler(service *Service, sessions SessionAdmin) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	resp, err := h.service.Ask(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyQuery):
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query must not be empty", http.StatusBadRequest)
		case errors.Is(err, session.ErrNotFound):
			h.writeError(r.Context(), w, "NOT_FOUND", "Session not found", http.StatusNotFound)
		case errors.Is(err, gemini.ErrEmbeddingUnavailable), errors.Is(err, gemini.ErrGenerationUnavailable):
			slog.WarnContext(r.Context(), "chat query hit provider outage", "error", err)
			h.writeError(r.Context(), w, "SERVICE_UNAVAILABLE", "An upstream provider is temporarily unavailable, please retry", http.StatusServiceUnavailable)
		default:
			slog.ErrorContext(r.Context(), "chat query failed", "error", err)
			h.writeError(r.Context(), w, "CHAT_FAILED", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, map[string]interface{}{"data": resp})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "default"
	}

	sessions, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": sessions,
		"meta": map[string]int{"count": len(sessions)},
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "session_id is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	turns, err := h.sessions.History(r.Context(), sessionID, limit)
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": turns,
		"meta": map[string]int{"count": len(turns)},
	})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Session not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "session_id is required", http.StatusBadRequest)
		return
	}
	if err := h.sessions.ClearHistory(r.Context(), sessionID); err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
