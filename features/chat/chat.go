package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"coursemind/features/session"
	"coursemind/internal/retrieval"
	"coursemind/internal/settings"
)

// AnswerState tells the client how the answer was produced.
const (
	AnswerGrounded     = "grounded"
	AnswerGreeting     = "greeting"
	AnswerInsufficient = "insufficient_context"
)

const insufficientAnswer = "I don't have enough information in the course materials to answer that. " +
	"Try rephrasing the question or asking about a topic covered in the course."

const greetingAnswer = "Hello! Ask me anything about the course materials and I'll answer from them."

var ErrEmptyQuery = errors.New("query must not be empty")

type AskRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
	// TopK overrides the configured retrieval depth for this request only.
	TopK *int `json:"top_k,omitempty"`
	// IncludeSources defaults to true; false strips attributions from the
	// response while the turn record still keeps the matched source ids.
	IncludeSources *bool `json:"include_sources,omitempty"`
}

type AskResponse struct {
	SessionID      string                  `json:"sessionId"`
	Answer         string                  `json:"answer"`
	AnswerState    string                  `json:"answerState"`
	Confidence     retrieval.Confidence    `json:"confidence"`
	Attributions   []retrieval.Attribution `json:"attributions"`
	ProcessingTime float64                 `json:"processingTime"`
}

type Retriever interface {
	Search(ctx context.Context, query string, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, retrieval.Confidence, error)
}

type ContextAssembler interface {
	Assemble(ctx context.Context, selected []retrieval.SearchResult, opts retrieval.AssembleOptions) (retrieval.Assembled, error)
}

type Generator interface {
	GenerateAnswer(ctx context.Context, query, materials string) (string, error)
}

type SessionManager interface {
	GetOrCreate(ctx context.Context, userID string) (*session.Session, error)
	Switch(ctx context.Context, userID, sessionID string) error
	RecordTurn(ctx context.Context, turn *session.Turn) error
	LastTurn(ctx context.Context, sessionID string) (*session.Turn, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Service struct {
	retriever Retriever
	assembler ContextAssembler
	generator Generator
	sessions  SessionManager
	settings  SettingsProvider
}

func NewService(retriever Retriever, assembler ContextAssembler, generator Generator, sessions SessionManager, settings SettingsProvider) *Service {
	return &Service{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		sessions:  sessions,
		settings:  settings,
	}
}

// Ask answers one question against the ingested materials and records the
// exchange in the user's active session.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	sess, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if isGreeting(query) {
		resp := &AskResponse{
			SessionID:    sess.ID,
			Answer:       greetingAnswer,
			AnswerState:  AnswerGreeting,
			Confidence:   retrieval.ConfidenceNone,
			Attributions: []retrieval.Attribution{},
		}
		s.record(ctx, sess, query, resp)
		return s.finish(req, resp, start), nil
	}

	searchText := query
	var priority []string
	if last, err := s.sessions.LastTurn(ctx, sess.ID); err != nil {
		slog.WarnContext(ctx, "failed to load last turn", "error", err)
	} else if last != nil && isFollowUp(query) {
		// Follow-ups lean on the previous question for retrieval while the
		// LLM still answers the literal query.
		searchText = last.Query + " | " + query
		priority = last.MatchedSourceIDs
	}

	var searchOpts *retrieval.SearchOptions
	if req.TopK != nil {
		searchOpts = &retrieval.SearchOptions{TopK: req.TopK}
	}

	results, confidence, err := s.retriever.Search(ctx, searchText, searchOpts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if confidence == retrieval.ConfidenceNone {
		resp := &AskResponse{
			SessionID:    sess.ID,
			Answer:       insufficientAnswer,
			AnswerState:  AnswerInsufficient,
			Confidence:   confidence,
			Attributions: []retrieval.Attribution{},
		}
		s.record(ctx, sess, query, resp)
		return s.finish(req, resp, start), nil
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load settings, using defaults", "error", err)
		cfg = settings.Defaults()
	}

	assembled, err := s.assembler.Assemble(ctx, results, retrieval.AssembleOptions{
		CharBudget:      cfg.ContextCharBudget,
		PrioritySources: priority,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	if strings.TrimSpace(assembled.Context) == "" {
		resp := &AskResponse{
			SessionID:    sess.ID,
			Answer:       insufficientAnswer,
			AnswerState:  AnswerInsufficient,
			Confidence:   confidence,
			Attributions: assembled.Attributions,
		}
		s.record(ctx, sess, query, resp)
		return s.finish(req, resp, start), nil
	}

	answer, err := s.generator.GenerateAnswer(ctx, query, assembled.Context)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	resp := &AskResponse{
		SessionID:    sess.ID,
		Answer:       answer,
		AnswerState:  AnswerGrounded,
		Confidence:   confidence,
		Attributions: assembled.Attributions,
	}
	s.record(ctx, sess, query, resp)
	return s.finish(req, resp, start), nil
}

// finish stamps the elapsed time and honors include_sources=false after the
// turn has been recorded, so the session history still knows which sources
// matched.
func (s *Service) finish(req AskRequest, resp *AskResponse, start time.Time) *AskResponse {
	resp.ProcessingTime = time.Since(start).Seconds()
	if req.IncludeSources != nil && !*req.IncludeSources {
		resp.Attributions = []retrieval.Attribution{}
	}
	return resp
}

func (s *Service) resolveSession(ctx context.Context, req AskRequest) (*session.Session, error) {
	if req.SessionID != "" {
		if err := s.sessions.Switch(ctx, req.UserID, req.SessionID); err != nil {
			return nil, err
		}
		return &session.Session{ID: req.SessionID, UserID: req.UserID, IsActive: true}, nil
	}
	return s.sessions.GetOrCreate(ctx, req.UserID)
}

// record persists the turn. A storage failure here must not lose the answer
// the user already paid for, so it only logs.
func (s *Service) record(ctx context.Context, sess *session.Session, query string, resp *AskResponse) {
	ids := make([]string, 0, len(resp.Attributions))
	seen := make(map[string]bool)
	for _, a := range resp.Attributions {
		if !seen[a.SourceID] {
			seen[a.SourceID] = true
			ids = append(ids, a.SourceID)
		}
	}

	turn := &session.Turn{
		SessionID:        sess.ID,
		UserID:           sess.UserID,
		Query:            query,
		Answer:           resp.Answer,
		Confidence:       string(resp.Confidence),
		MatchedSourceIDs: ids,
	}
	if err := s.sessions.RecordTurn(ctx, turn); err != nil {
		slog.ErrorContext(ctx, "failed to record chat turn", "session_id", sess.ID, "error", err)
	}
}

var greetingPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|yo|good (morning|afternoon|evening)|thanks|thank you|ok|okay)[!. ]*$`)

func isGreeting(query string) bool {
	return len(query) <= 40 && greetingPattern.MatchString(query)
}

var followUpLead = regexp.MustCompile(`(?i)^(it|that|this|these|those|they|he|she|and|also|what about|how about|why|more)\b`)

// isFollowUp flags queries that only make sense with the previous turn's
// context: short, or opening with a back-reference.
func isFollowUp(query string) bool {
	if len(query) < 20 {
		return true
	}
	return followUpLead.MatchString(query)
}
