package settings

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	query := `SELECT id, search_top_k, tier_high, tier_low, tier_minimum, tier_absolute_minimum, context_char_budget FROM settings WHERE id = 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.SearchTopK, &s.TierHigh, &s.TierLow, &s.TierMinimum, &s.TierAbsoluteMinimum, &s.ContextCharBudget)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		UPDATE settings
		SET search_top_k = $1, tier_high = $2, tier_low = $3, tier_minimum = $4, tier_absolute_minimum = $5, context_char_budget = $6, updated_at = NOW()
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query, s.SearchTopK, s.TierHigh, s.TierLow, s.TierMinimum, s.TierAbsoluteMinimum, s.ContextCharBudget)
	return err
}
