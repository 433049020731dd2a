package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmbeddingUnavailable is returned once the retry budget against the
// embedding provider is exhausted. Fatal to the calling ingestion or query
// step, never to the process.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

const (
	embeddingModel = "gemini-embedding-001"
	maxRetries     = 3
)

// Embedder is constructed once at startup and injected into the services that
// need it; it owns the provider client for its whole lifecycle.
type Embedder struct {
	client     *genai.Client
	model      string
	batchLimit int
	timeout    time.Duration
}

func NewEmbedder(ctx context.Context, apiKey string, batchLimit int, timeout time.Duration, opts ...option.ClientOption) (*Embedder, error) {
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Embedder{client: client, model: embeddingModel, batchLimit: batchLimit, timeout: timeout}, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

// Embed produces the vector for a single text (query-time path).
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts order-preserving and 1:1, splitting into
// provider-sized batches. Each provider call is retried with exponential
// backoff up to the retry budget and runs under the configured timeout.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.batchLimit {
		end := start + e.batchLimit
		if end > len(texts) {
			end = len(texts)
		}

		part, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		vectors = append(vectors, part...)
	}
	return vectors, nil
}

func (e *Embedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)

	var vectors [][]float32
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		batch := em.NewBatch()
		for _, t := range texts {
			batch = batch.AddContent(genai.Text(t))
		}

		res, err := em.BatchEmbedContents(callCtx, batch)
		if err != nil {
			slog.WarnContext(ctx, "embedding call failed", "error", err, "batch_size", len(texts))
			return err
		}
		if len(res.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("provider returned %d embeddings for %d texts", len(res.Embeddings), len(texts)))
		}

		vectors = vectors[:0]
		for _, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return backoff.Permanent(errors.New("provider returned an empty embedding"))
			}
			vectors = append(vectors, emb.Values)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return nil, err
	}
	return vectors, nil
}
