package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"coursemind/internal/ingest"
)

// Source is one ingested material: a video or a PDF. Only the ingestion
// path writes these rows; query-time code reads them.
type Source struct {
	ID                  string     `json:"id"`
	SourceType          string     `json:"source_type"`
	Title               string     `json:"title"`
	Status              string     `json:"status"`
	ChunkCount          int        `json:"chunk_count"`
	TranscriptionMethod string     `json:"transcription_method,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

var (
	ErrInvalidVideoID = errors.New("video id must be a 6-20 digit numeric string")
	ErrValidation     = errors.New("invalid ingestion request")
)

var videoIDPattern = regexp.MustCompile(`^\d{6,20}$`)

type Repository interface {
	Exists(ctx context.Context, sourceID string) (bool, error)
	Create(ctx context.Context, sourceID, sourceType string) error
	UpdateStatus(ctx context.Context, sourceID, status string) error
	Complete(ctx context.Context, sourceID, title string, chunkCount int, transcriptionMethod string) error
	Get(ctx context.Context, sourceID string) (*Source, error)
	List(ctx context.Context) ([]Source, error)
	SoftDelete(ctx context.Context, sourceID string) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	TotalChunks(ctx context.Context) (int, error)
}

type Ingestor interface {
	Run(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type ChunkStore interface {
	DeleteBySource(ctx context.Context, sourceID string) error
	CountBySource(ctx context.Context, sourceID string) (int, error)
}

type Service struct {
	repo       Repository
	ingestor   Ingestor
	chunkStore ChunkStore
}

func NewService(repo Repository, ingestor Ingestor, chunkStore ChunkStore) *Service {
	return &Service{repo: repo, ingestor: ingestor, chunkStore: chunkStore}
}

// IngestVideo runs the ingestion pipeline for one video, blocking until it
// finishes. The video id doubles as the content reference against the media
// platform.
func (s *Service) IngestVideo(ctx context.Context, videoID string, force bool, chunkSize, chunkOverlap int) (ingest.Result, error) {
	if !videoIDPattern.MatchString(videoID) {
		return ingest.Result{}, ErrInvalidVideoID
	}
	result, err := s.ingestor.Run(ctx, ingest.Request{
		SourceID:         videoID,
		SourceType:       ingest.SourceTypeVideo,
		ContentReference: videoID,
		ForceReprocess:   force,
		ChunkSize:        chunkSize,
		ChunkOverlap:     chunkOverlap,
	})
	return result, duplicateAsError(result, err)
}

// IngestDocument runs the ingestion pipeline for one PDF, blocking.
func (s *Service) IngestDocument(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	if req.SourceID == "" {
		return ingest.Result{}, fmt.Errorf("%w: source_id is required", ErrValidation)
	}
	if req.ContentReference == "" {
		return ingest.Result{}, fmt.Errorf("%w: content_reference is required", ErrValidation)
	}
	req.SourceType = ingest.SourceTypePDF
	result, err := s.ingestor.Run(ctx, req)
	return result, duplicateAsError(result, err)
}

// duplicateAsError turns a duplicate skip into ingest.ErrDuplicate on the
// blocking API paths, where the caller asked for this exact source and should
// see a conflict. The event-driven path treats the same skip as a clean ack.
func duplicateAsError(result ingest.Result, err error) error {
	if err == nil && result.Status == ingest.StatusSkippedDuplicate {
		return fmt.Errorf("%w: %s", ingest.ErrDuplicate, result.SourceID)
	}
	return err
}

func (s *Service) List(ctx context.Context) ([]Source, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Source, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes the source's vectors first, then soft-deletes the row. A
// row without vectors is harmless; vectors without a row would be orphaned.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.chunkStore.CountBySource(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to count vectors for source", "source_id", id, "error", err)
	}

	if err := s.chunkStore.DeleteBySource(ctx, id); err != nil {
		slog.Error("failed to delete vectors for source", "source_id", id, "error", err)
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "source deleted", "source_id", id, "vectors_removed", removed)
	return nil
}
