package source

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Exists(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM sources WHERE id = $1 AND deleted_at IS NULL)`
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CurrentStatus returns the source's ingestion status, or "" for an unknown
// or deleted source.
func (r *PostgresRepo) CurrentStatus(ctx context.Context, sourceID string) (string, error) {
	var status string
	query := `SELECT status FROM sources WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, sourceID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return status, err
}

func (r *PostgresRepo) Create(ctx context.Context, sourceID, sourceType string) error {
	query := `INSERT INTO sources (id, source_type, status) VALUES ($1, $2, 'pending')
		ON CONFLICT (id) DO UPDATE SET deleted_at = NULL, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, sourceID, sourceType)
	return err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, sourceID, status string) error {
	query := `UPDATE sources SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, sourceID)
	return err
}

func (r *PostgresRepo) Complete(ctx context.Context, sourceID, title string, chunkCount int, transcriptionMethod string) error {
	query := `
		UPDATE sources
		SET status = 'complete', title = $1, chunk_count = $2, transcription_method = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, title, chunkCount, transcriptionMethod, sourceID)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, sourceID string) (*Source, error) {
	s := &Source{}
	query := `
		SELECT id, source_type, COALESCE(title, ''), status, chunk_count, COALESCE(transcription_method, ''), created_at, updated_at
		FROM sources WHERE id = $1 AND deleted_at IS NULL
	`
	err := r.db.QueryRowContext(ctx, query, sourceID).
		Scan(&s.ID, &s.SourceType, &s.Title, &s.Status, &s.ChunkCount, &s.TranscriptionMethod, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Source, error) {
	query := `
		SELECT id, source_type, COALESCE(title, ''), status, chunk_count, COALESCE(transcription_method, ''), created_at, updated_at
		FROM sources WHERE deleted_at IS NULL ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.SourceType, &s.Title, &s.Status, &s.ChunkCount, &s.TranscriptionMethod, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, sourceID string) error {
	query := `UPDATE sources SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, sourceID)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sources WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM sources WHERE deleted_at IS NULL GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *PostgresRepo) TotalChunks(ctx context.Context) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(chunk_count), 0) FROM sources WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&total)
	return total, err
}
