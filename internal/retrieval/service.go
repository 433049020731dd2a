package retrieval

import (
	"context"
	"time"

	"coursemind/internal/middleware"
	"coursemind/internal/settings"
	"coursemind/internal/text"
)

// SearchResult is one ranked chunk coming back from the vector store.
type SearchResult struct {
	Content       string        `json:"content"`
	Score         float32       `json:"score"`
	SourceID      string        `json:"sourceId"`
	SourceTitle   string        `json:"sourceTitle"`
	SourceType    string        `json:"sourceType"`
	SequenceIndex int           `json:"sequenceIndex"`
	Position      text.Position `json:"position"`
}

type SearchOptions struct {
	TopK       *int
	SourceType string
}

// maxCandidates bounds the over-fetch regardless of the configured top-k.
const maxCandidates = 200

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, vector []float32, topK int, sourceType string) ([]SearchResult, error)
	ChunksBySource(ctx context.Context, sourceID string, fromSeq, toSeq int) ([]SearchResult, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	settings *settings.Service
	logger   *QueryLogger
}

func NewService(e Embedder, vs VectorStore, set *settings.Service, l *QueryLogger) *Service {
	return &Service{embedder: e, store: vs, settings: set, logger: l}
}

// Search embeds the query, runs the similarity search and applies the tier
// policy. The selected results are what the caller may build context from;
// ConfidenceNone with an empty slice means nothing cleared the floor.
func (s *Service) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, Confidence, error) {
	start := time.Now()

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		cfg = settings.Defaults()
	}

	topK := cfg.SearchTopK
	sourceType := ""
	if opts != nil {
		if opts.TopK != nil && *opts.TopK > 0 {
			topK = *opts.TopK
		}
		sourceType = opts.SourceType
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, ConfidenceNone, err
	}

	// The tier filter may discard most of the head, so fetch more than the
	// caller asked for and trim back after selection.
	fetch := topK * 3
	if fetch > maxCandidates {
		fetch = maxCandidates
	}

	ranked, err := s.store.Search(ctx, vec, fetch, sourceType)
	if err != nil {
		return nil, ConfidenceNone, err
	}

	tiers := Tiers{High: cfg.TierHigh, Low: cfg.TierLow, Minimum: cfg.TierMinimum, AbsoluteMinimum: cfg.TierAbsoluteMinimum}
	selected, confidence := SelectByConfidence(ranked, tiers)
	if len(selected) > topK {
		selected = selected[:topK]
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			NumCandidates: len(ranked),
			NumSelected:   len(selected),
			Confidence:    string(confidence),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return selected, confidence, nil
}
