package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coursemind/internal/text"
	"coursemind/internal/transcript"
	"coursemind/internal/vector"
)

// State names the ingestion state machine's stations. FAILED is reachable
// from any non-terminal state; SKIPPED and COMPLETE are the non-error
// terminals.
type State string

const (
	StateReceived              State = "RECEIVED"
	StateDuplicateCheck        State = "DUPLICATE_CHECK"
	StateSkipped               State = "SKIPPED"
	StateMetadataFetch         State = "METADATA_FETCH"
	StateTranscriptAcquisition State = "TRANSCRIPT_ACQUISITION"
	StateChunking              State = "CHUNKING"
	StateEmbedding             State = "EMBEDDING"
	StateStorage               State = "STORAGE"
	StateComplete              State = "COMPLETE"
	StateFailed                State = "FAILED"
)

// Source statuses persisted on the sources row.
const (
	StatusPending          = "pending"
	StatusProcessing       = "processing"
	StatusComplete         = "complete"
	StatusFailed           = "failed"
	StatusSkippedDuplicate = "skipped_duplicate"
)

const (
	SourceTypeVideo = "video"
	SourceTypePDF   = "pdf"
)

var ErrDuplicate = errors.New("source already ingested")

type Request struct {
	SourceID         string `json:"source_id"`
	SourceType       string `json:"source_type"`
	ContentReference string `json:"content_reference"`
	Title            string `json:"title,omitempty"`
	ForceReprocess   bool   `json:"force_reprocess,omitempty"`
	ChunkSize        int    `json:"chunk_size,omitempty"`
	ChunkOverlap     int    `json:"chunk_overlap,omitempty"`
}

type Result struct {
	SourceID            string  `json:"source_id"`
	Title               string  `json:"title"`
	ChunkCount          int     `json:"chunk_count"`
	Status              string  `json:"status"`
	ProcessingTime      float64 `json:"processing_time"`
	TranscriptionMethod string  `json:"transcription_method,omitempty"`
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	InsertBatch(ctx context.Context, chunks []vector.Chunk) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

type MetadataProvider interface {
	GetMetadata(ctx context.Context, ref string) (transcript.Metadata, error)
}

// SourceStore is the slice of the sources repository the orchestrator
// needs. It never reads chunks back; query-time code owns that path.
type SourceStore interface {
	// CurrentStatus returns the source's ingestion status, or "" when the
	// source is unknown.
	CurrentStatus(ctx context.Context, sourceID string) (string, error)
	Create(ctx context.Context, sourceID, sourceType string) error
	UpdateStatus(ctx context.Context, sourceID, status string) error
	Complete(ctx context.Context, sourceID, title string, chunkCount int, transcriptionMethod string) error
}

// FailureRecorder keeps a reviewable record of background failures,
// including the state the job died in.
type FailureRecorder interface {
	Record(ctx context.Context, req Request, state State, reason string) error
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Orchestrator drives one source through duplicate check, metadata fetch,
// transcript acquisition, chunking, embedding and storage. Every stage
// failure is caught here and recorded as a transition to FAILED; nothing
// escapes to the hosting process.
type Orchestrator struct {
	sources        SourceStore
	metadata       MetadataProvider
	videoProviders []transcript.Provider
	pdfProviders   []transcript.Provider
	embedder       Embedder
	store          VectorStore
	failures       FailureRecorder
	cfg            Config
}

func NewOrchestrator(
	sources SourceStore,
	metadata MetadataProvider,
	videoProviders []transcript.Provider,
	pdfProviders []transcript.Provider,
	embedder Embedder,
	store VectorStore,
	failures FailureRecorder,
	cfg Config,
) *Orchestrator {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Orchestrator{
		sources:        sources,
		metadata:       metadata,
		videoProviders: videoProviders,
		pdfProviders:   pdfProviders,
		embedder:       embedder,
		store:          store,
		failures:       failures,
		cfg:            cfg,
	}
}

// SetFailureRecorder attaches the recorder after construction. The recorder
// usually wraps the orchestrator itself for retries, so it cannot be passed
// to NewOrchestrator.
func (o *Orchestrator) SetFailureRecorder(f FailureRecorder) {
	o.failures = f
}

// Run executes the state machine for one request. It works both as a
// blocking call behind an HTTP handler and as a background job; the returned
// error is informational for the blocking caller, the Result's Status is the
// source of truth either way.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	state := StateReceived
	slog.InfoContext(ctx, "ingestion started", "source_id", req.SourceID, "source_type", req.SourceType)

	state = StateDuplicateCheck
	status, err := o.sources.CurrentStatus(ctx, req.SourceID)
	if err != nil {
		return o.fail(ctx, req, state, start, err)
	}
	exists := status != ""

	// Only content that is stored or on its way counts as a duplicate. A
	// failed or pending source is re-ingestible without force_reprocess.
	if (status == StatusComplete || status == StatusProcessing) && !req.ForceReprocess {
		slog.InfoContext(ctx, "source already ingested, skipping", "source_id", req.SourceID, "status", status)
		return Result{
			SourceID:       req.SourceID,
			Title:          req.Title,
			Status:         StatusSkippedDuplicate,
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	if exists && req.ForceReprocess {
		if err := o.store.DeleteBySource(ctx, req.SourceID); err != nil {
			return o.fail(ctx, req, state, start, fmt.Errorf("delete existing vectors: %w", err))
		}
	}
	if !exists {
		if err := o.sources.Create(ctx, req.SourceID, req.SourceType); err != nil {
			return o.fail(ctx, req, state, start, err)
		}
	}
	if err := o.sources.UpdateStatus(ctx, req.SourceID, StatusProcessing); err != nil {
		return o.fail(ctx, req, state, start, err)
	}

	state = StateMetadataFetch
	title := req.Title
	if req.SourceType == SourceTypeVideo {
		meta, err := o.metadata.GetMetadata(ctx, req.ContentReference)
		if err != nil {
			return o.fail(ctx, req, state, start, err)
		}
		title = meta.Title
	}
	if title == "" {
		title = req.SourceID
	}

	state = StateTranscriptAcquisition
	providers := o.videoProviders
	if req.SourceType == SourceTypePDF {
		providers = o.pdfProviders
	}
	segments, method, err := transcript.Acquire(ctx, providers, req.ContentReference)
	if err != nil {
		return o.fail(ctx, req, state, start, err)
	}

	state = StateChunking
	chunkSize, overlap := o.cfg.ChunkSize, o.cfg.ChunkOverlap
	if req.ChunkSize > 0 {
		chunkSize = req.ChunkSize
	}
	if req.ChunkOverlap > 0 {
		overlap = req.ChunkOverlap
	}
	chunks, err := text.Split(segments, chunkSize, overlap)
	if err != nil {
		return o.fail(ctx, req, state, start, err)
	}

	// Embedding and storage run in fixed-size batches to bound peak memory
	// on long transcripts.
	for batchStart := 0; batchStart < len(chunks); batchStart += o.cfg.BatchSize {
		batchEnd := batchStart + o.cfg.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		state = StateEmbedding
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return o.fail(ctx, req, state, start, err)
		}

		state = StateStorage
		stored := make([]vector.Chunk, len(batch))
		for i, c := range batch {
			stored[i] = vector.Chunk{
				Content:       c.Content,
				SourceID:      req.SourceID,
				SourceTitle:   title,
				SourceType:    req.SourceType,
				SequenceIndex: c.SequenceIndex,
				Position:      c.Position,
				Vector:        vectors[i],
			}
		}
		if err := o.store.InsertBatch(ctx, stored); err != nil {
			return o.fail(ctx, req, state, start, err)
		}
	}

	state = StateComplete
	if err := o.sources.Complete(ctx, req.SourceID, title, len(chunks), method); err != nil {
		return o.fail(ctx, req, state, start, err)
	}

	elapsed := time.Since(start)
	slog.InfoContext(ctx, "ingestion complete",
		"source_id", req.SourceID, "chunks", len(chunks), "method", method, "elapsed", elapsed)

	return Result{
		SourceID:            req.SourceID,
		Title:               title,
		ChunkCount:          len(chunks),
		Status:              StatusComplete,
		ProcessingTime:      elapsed.Seconds(),
		TranscriptionMethod: method,
	}, nil
}

func (o *Orchestrator) fail(ctx context.Context, req Request, state State, start time.Time, cause error) (Result, error) {
	slog.ErrorContext(ctx, "ingestion failed",
		"source_id", req.SourceID, "state", string(state), "error", cause)

	if err := o.sources.UpdateStatus(ctx, req.SourceID, StatusFailed); err != nil {
		slog.WarnContext(ctx, "failed to mark source failed", "source_id", req.SourceID, "error", err)
	}
	if o.failures != nil {
		if err := o.failures.Record(ctx, req, state, cause.Error()); err != nil {
			slog.WarnContext(ctx, "failed to record ingestion failure", "source_id", req.SourceID, "error", err)
		}
	}

	return Result{
		SourceID:       req.SourceID,
		Title:          req.Title,
		Status:         StatusFailed,
		ProcessingTime: time.Since(start).Seconds(),
	}, fmt.Errorf("%s: %w", state, cause)
}
