package session

import (
	"context"
	"errors"
	"time"
)

// Session is one conversation thread for a user. At most one session per
// user is active at a time; the active one receives new chat turns.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Turn is one question and answer exchange within a session.
type Turn struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	Query            string    `json:"query"`
	Answer           string    `json:"answer"`
	Confidence       string    `json:"confidence"`
	MatchedSourceIDs []string  `json:"matchedSourceIds"`
	CreatedAt        time.Time `json:"createdAt"`
}

var ErrNotFound = errors.New("session not found")

type Repository interface {
	Create(ctx context.Context, userID, title string) (*Session, error)
	Activate(ctx context.Context, userID, sessionID string) error
	GetActive(ctx context.Context, userID string) (*Session, error)
	List(ctx context.Context, userID string) ([]Session, error)
	Delete(ctx context.Context, sessionID string) error
	InsertTurn(ctx context.Context, turn *Turn) error
	Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	LastTurn(ctx context.Context, sessionID string) (*Turn, error)
	DeleteTurns(ctx context.Context, sessionID string) error
	CountSessions(ctx context.Context) (int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate returns the user's active session, creating one when none
// exists.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	active, err := s.repo.GetActive(ctx, userID)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.repo.Create(ctx, userID, "New conversation")
}

// Switch makes the given session the user's active one. Deactivation of the
// previous session and activation of the new one happen atomically.
func (s *Service) Switch(ctx context.Context, userID, sessionID string) error {
	return s.repo.Activate(ctx, userID, sessionID)
}

func (s *Service) List(ctx context.Context, userID string) ([]Session, error) {
	return s.repo.List(ctx, userID)
}

// RecordTurn appends an exchange to the session and uses the first query as
// the session title.
func (s *Service) RecordTurn(ctx context.Context, turn *Turn) error {
	return s.repo.InsertTurn(ctx, turn)
}

func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Turns(ctx, sessionID, limit)
}

// LastTurn returns the most recent exchange, or nil when the session has no
// history yet.
func (s *Service) LastTurn(ctx context.Context, sessionID string) (*Turn, error) {
	turn, err := s.repo.LastTurn(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return turn, err
}

func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	return s.repo.DeleteTurns(ctx, sessionID)
}
