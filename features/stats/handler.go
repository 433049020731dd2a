package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"coursemind/internal/middleware"
)

type SourceRepo interface {
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	TotalChunks(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type SessionRepo interface {
	CountSessions(ctx context.Context) (int, error)
}

type Handler struct {
	sourceRepo  SourceRepo
	jobRepo     JobRepo
	sessionRepo SessionRepo
}

func NewHandler(s SourceRepo, j JobRepo, sess SessionRepo) *Handler {
	return &Handler{sourceRepo: s, jobRepo: j, sessionRepo: sess}
}

type StatsResponse struct {
	Sources         int            `json:"sources"`
	SourcesByStatus map[string]int `json:"sources_by_status"`
	Chunks          int            `json:"chunks"`
	Sessions        int            `json:"sessions"`
	FailedJobs      int            `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sCount, err := h.sourceRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sources", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sources", http.StatusInternalServerError)
		return
	}

	byStatus, err := h.sourceRepo.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sources by status", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sources by status", http.StatusInternalServerError)
		return
	}

	chunks, err := h.sourceRepo.TotalChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	sessions, err := h.sessionRepo.CountSessions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sessions", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sessions", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Sources:         sCount,
		SourcesByStatus: byStatus,
		Chunks:          chunks,
		Sessions:        sessions,
		FailedJobs:      jCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
