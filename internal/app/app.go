package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"coursemind/features/chat"
	"coursemind/features/job"
	"coursemind/features/session"
	"coursemind/features/source"
	"coursemind/features/stats"
	"coursemind/internal/config"
	"coursemind/internal/ingest"
	"coursemind/internal/intake"
	"coursemind/internal/middleware"
	"coursemind/internal/retrieval"
	"coursemind/internal/settings"
	"coursemind/internal/transcript"
)

// VectorStore is the full surface the app needs from the vector database.
type VectorStore interface {
	retrieval.VectorStore
	ingest.VectorStore
	CountBySource(ctx context.Context, sourceID string) (int, error)
}

// Embedder covers both single-query and batch embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Generator interface {
	GenerateAnswer(ctx context.Context, query, materials string) (string, error)
}

type Publisher interface {
	Publish(topic string, body []byte) error
}

type Executor interface {
	Submit(job func()) error
}

type App struct {
	Handler       http.Handler
	EventConsumer *intake.EventConsumer
	Orchestrator  *ingest.Orchestrator
	port          int
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	embedder Embedder,
	generator Generator,
	taskPub Publisher,
	pool Executor,
) (*App, error) {
	providerTimeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	settingsHandler := settings.NewHandler(settingsService)

	// Transcript providers, ordered by preference. Captions are cheap and
	// exact; audio transcription is the fallback.
	metadataClient := transcript.NewMetadataClient(cfg.MediaAPIBaseURL, cfg.MediaAPIToken, providerTimeout)
	videoProviders := []transcript.Provider{
		transcript.NewCaptionProvider(cfg.MediaAPIBaseURL, cfg.MediaAPIToken, providerTimeout),
		transcript.NewAudioTranscriptionProvider(cfg.TranscriberURL, providerTimeout),
	}
	pdfProviders := []transcript.Provider{
		transcript.NewDocumentExtractor(cfg.ExtractorURL, providerTimeout),
	}

	// Feature: Source + ingestion pipeline
	sourceRepo := source.NewPostgresRepo(db)

	jobRepo := job.NewPostgresRepo(db)

	orchestrator := ingest.NewOrchestrator(
		sourceRepo,
		metadataClient,
		videoProviders,
		pdfProviders,
		embedder,
		vecStore,
		nil, // failure recorder is attached below, it needs the orchestrator for retries
		ingest.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			BatchSize:    cfg.StorageBatchSize,
		},
	)

	jobService := job.NewService(jobRepo, orchestrator)
	orchestrator.SetFailureRecorder(jobService)
	jobHandler := job.NewHandler(jobService)

	sourceService := source.NewService(sourceRepo, orchestrator, vecStore)
	sourceHandler := source.NewHandler(sourceService)

	// Feature: Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, settingsService, queryLogger)
	assembler := retrieval.NewAssembler(vecStore, 1)

	// Feature: Session + Chat
	sessionRepo := session.NewPostgresRepo(db)
	sessionService := session.NewService(sessionRepo)

	chatService := chat.NewService(retrievalService, assembler, generator, sessionService, settingsService)
	chatHandler := chat.NewHandler(chatService, sessionService)

	// Feature: Stats
	statsHandler := stats.NewHandler(sourceRepo, jobRepo, sessionRepo)

	// Intake: webhook ack + queue consumer
	webhookHandler := intake.NewWebhookHandler(taskPub)
	eventConsumer := intake.NewEventConsumer(orchestrator, pool)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /ingest/video/{id}", middleware.CorrelationID(enableCORS(sourceHandler.IngestVideo)))
	mux.Handle("POST /ingest/document", middleware.CorrelationID(enableCORS(sourceHandler.IngestDocument)))
	mux.Handle("GET /sources", middleware.CorrelationID(enableCORS(sourceHandler.List)))
	mux.Handle("GET /sources/{id}", middleware.CorrelationID(enableCORS(sourceHandler.Get)))
	mux.Handle("DELETE /sources/{id}", middleware.CorrelationID(enableCORS(sourceHandler.Delete)))

	mux.Handle("POST /webhooks/events", middleware.CorrelationID(enableCORS(webhookHandler.HandleEvent)))

	mux.Handle("POST /chat/query", middleware.CorrelationID(enableCORS(chatHandler.Ask)))
	mux.Handle("GET /chat/sessions", middleware.CorrelationID(enableCORS(chatHandler.ListSessions)))
	mux.Handle("GET /chat/history", middleware.CorrelationID(enableCORS(chatHandler.History)))
	mux.Handle("DELETE /chat/sessions/{id}", middleware.CorrelationID(enableCORS(chatHandler.DeleteSession)))
	mux.Handle("DELETE /chat/history", middleware.CorrelationID(enableCORS(chatHandler.ClearHistory)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:       mux,
		EventConsumer: eventConsumer,
		Orchestrator:  orchestrator,
		port:          cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
