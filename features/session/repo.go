package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Create inserts a new active session. The previous active session for the
// user is deactivated in the same transaction so the partial unique index on
// (user_id) WHERE is_active never sees two active rows.
func (r *PostgresRepo) Create(ctx context.Context, userID, title string) (*Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_active`,
		userID); err != nil {
		return nil, err
	}

	s := &Session{ID: uuid.New().String(), UserID: userID, Title: title, IsActive: true}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.Title).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Activate(ctx context.Context, userID, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET is_active = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_active`,
		userID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET is_active = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
		sessionID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (r *PostgresRepo) GetActive(ctx context.Context, userID string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, is_active, created_at, updated_at
		 FROM chat_sessions
		 WHERE user_id = $1 AND is_active`,
		userID).Scan(&s.ID, &s.UserID, &s.Title, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepo) List(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, is_active, created_at, updated_at
		 FROM chat_sessions
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertTurn appends an exchange and promotes its query to the session title
// when the session still carries the placeholder.
func (r *PostgresRepo) InsertTurn(ctx context.Context, turn *Turn) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO chat_turns (session_id, user_id, query, answer, confidence, matched_source_ids)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		turn.SessionID, turn.UserID, turn.Query, turn.Answer, turn.Confidence, pq.Array(turn.MatchedSourceIDs)).
		Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions
		 SET title = LEFT($2, 80), updated_at = NOW()
		 WHERE id = $1 AND title = 'New conversation'`,
		turn.SessionID, turn.Query); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepo) Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, query, answer, confidence, matched_source_ids, created_at
		 FROM chat_turns
		 WHERE session_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Query, &t.Answer, &t.Confidence, pq.Array(&t.MatchedSourceIDs), &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *PostgresRepo) LastTurn(ctx context.Context, sessionID string) (*Turn, error) {
	var t Turn
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, user_id, query, answer, confidence, matched_source_ids, created_at
		 FROM chat_turns
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		sessionID).Scan(&t.ID, &t.SessionID, &t.UserID, &t.Query, &t.Answer, &t.Confidence, pq.Array(&t.MatchedSourceIDs), &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepo) DeleteTurns(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE session_id = $1`, sessionID)
	return err
}

func (r *PostgresRepo) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_sessions`).Scan(&count)
	return count, err
}
