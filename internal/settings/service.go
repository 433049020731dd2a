package settings

import (
	"context"
	"fmt"
)

// Settings is the single tunable row controlling retrieval behavior.
// Tier values are similarity cutoffs and must stay strictly descending.
type Settings struct {
	ID                  int     `json:"-"`
	SearchTopK          int     `json:"search_top_k"`
	TierHigh            float32 `json:"tier_high"`
	TierLow             float32 `json:"tier_low"`
	TierMinimum         float32 `json:"tier_minimum"`
	TierAbsoluteMinimum float32 `json:"tier_absolute_minimum"`
	ContextCharBudget   int     `json:"context_char_budget"`
}

func Defaults() *Settings {
	return &Settings{
		SearchTopK:          10,
		TierHigh:            0.5,
		TierLow:             0.4,
		TierMinimum:         0.2,
		TierAbsoluteMinimum: 0.15,
		ContextCharBudget:   8000,
	}
}

func (s *Settings) Validate() error {
	if s.SearchTopK <= 0 {
		return fmt.Errorf("search_top_k must be positive")
	}
	if s.ContextCharBudget <= 0 {
		return fmt.Errorf("context_char_budget must be positive")
	}
	if !(s.TierHigh > s.TierLow && s.TierLow > s.TierMinimum && s.TierMinimum > s.TierAbsoluteMinimum) {
		return fmt.Errorf("tiers must be strictly descending: %.2f > %.2f > %.2f > %.2f",
			s.TierHigh, s.TierLow, s.TierMinimum, s.TierAbsoluteMinimum)
	}
	if s.TierAbsoluteMinimum <= 0 || s.TierHigh >= 1 {
		return fmt.Errorf("tiers must lie inside (0,1)")
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}
