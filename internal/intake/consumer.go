package intake

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"coursemind/internal/ingest"
	"coursemind/internal/middleware"
)

// Runner executes the ingestion pipeline for one source.
type Runner interface {
	Run(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Executor schedules a job onto a background pool.
type Executor interface {
	Submit(job func()) error
}

// EventConsumer turns platform webhook events from the message queue into
// fire-and-forget ingestion runs.
type EventConsumer struct {
	runner Runner
	pool   Executor
}

func NewEventConsumer(runner Runner, pool Executor) *EventConsumer {
	return &EventConsumer{runner: runner, pool: pool}
}

func (c *EventConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload map[string]any
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("invalid event payload, dropping", "error", err)
		return nil // Don't retry malformed messages
	}

	correlationID, _ := payload["correlation_id"].(string)
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	videoID, err := ExtractVideoID(payload)
	if err != nil {
		slog.ErrorContext(ctx, "event has no usable video reference, dropping", "error", err)
		return nil
	}

	force, _ := payload["force_reprocess"].(bool)
	req := ingest.Request{
		SourceID:         videoID,
		SourceType:       ingest.SourceTypeVideo,
		ContentReference: videoID,
		ForceReprocess:   force,
	}

	slog.InfoContext(ctx, "queueing ingestion from event", "source_id", videoID)

	if err := c.pool.Submit(func() {
		result, err := c.runner.Run(ctx, req)
		if err != nil {
			slog.ErrorContext(ctx, "background ingestion failed", "source_id", req.SourceID, "error", err)
			return
		}
		slog.InfoContext(ctx, "background ingestion finished",
			"source_id", result.SourceID, "status", result.Status, "chunks", result.ChunkCount)
	}); err != nil {
		slog.ErrorContext(ctx, "failed to schedule ingestion, requeueing", "error", err)
		return err // NSQ retries when the pool is saturated
	}

	return nil
}
