package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"coursemind/internal/ingest"
)

// Runner re-executes the ingestion pipeline for a retried job.
type Runner interface {
	Run(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type Service struct {
	repo   Repository
	runner Runner
}

func NewService(repo Repository, runner Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

// Record implements ingest.FailureRecorder. The original request is stored
// as the payload so a retry replays the exact same run.
func (s *Service) Record(ctx context.Context, req ingest.Request, state ingest.State, reason string) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return s.repo.Save(ctx, &Job{
		SourceID: req.SourceID,
		State:    string(state),
		Payload:  payload,
		Error:    reason,
	})
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Retry replays the stored request. The job row is removed only when the
// rerun succeeds; a failed rerun has already recorded a fresh job, so the
// old one keeps its retry count.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var req ingest.Request
	if err := json.Unmarshal(j.Payload, &req); err != nil {
		return fmt.Errorf("corrupt job payload: %w", err)
	}

	if err := s.repo.MarkRetried(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to bump retry count", "job_id", id, "error", err)
	}

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("retry run: %w", err)
	}
	slog.InfoContext(ctx, "job retried", "job_id", id, "source_id", result.SourceID, "status", result.Status)

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
