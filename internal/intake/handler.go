package intake

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"coursemind/internal/config"
	"coursemind/internal/middleware"
)

// Publisher pushes a message onto the queue.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// WebhookHandler accepts platform event callbacks and hands them to the
// queue. The platform expects a fast ack; the pipeline runs out of band.
type WebhookHandler struct {
	publisher Publisher
}

func NewWebhookHandler(publisher Publisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		h.writeError(r, w, "VALIDATION_ERROR", "Empty or unreadable body", http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		h.writeError(r, w, "VALIDATION_ERROR", "Body must be JSON", http.StatusBadRequest)
		return
	}

	// Carry the request correlation id into the async pipeline.
	if _, ok := payload["correlation_id"]; !ok {
		payload["correlation_id"] = middleware.GetCorrelationID(r.Context())
		body, _ = json.Marshal(payload)
	}

	if err := h.publisher.Publish(config.TopicIngestEvent, body); err != nil {
		slog.ErrorContext(r.Context(), "failed to publish webhook event", "error", err)
		h.writeError(r, w, "QUEUE_UNAVAILABLE", "Event could not be queued", http.StatusServiceUnavailable)
		return
	}

	ack := map[string]string{"status": "accepted"}
	if videoID, err := ExtractVideoID(payload); err == nil {
		ack["source_id"] = videoID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *WebhookHandler) writeError(r *http.Request, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(r.Context()),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
