// Package app builds the object graph shared by the server and refctl.
package app

import (
	"context"
	"fmt"

	"volleyref-backend/config"
	"volleyref-backend/embedding"
	"volleyref-backend/grounding"
	"volleyref-backend/ingest"
	"volleyref-backend/llm"
	"volleyref-backend/metrics"
	"volleyref-backend/repository"
	"volleyref-backend/retrieval"
	"volleyref-backend/service"
	"volleyref-backend/storage"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

const embeddingCacheNamespace = "volleyref:emb"

// App holds the services and the clients they share
type App struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	Metrics *metrics.Metrics

	Retriever   *retrieval.Retriever
	Engine      *grounding.Engine
	Evaluations *service.EvaluationService
	Questions   *service.QuestionService
	Tutor       *service.TutorService
	Rules       *service.RuleService
	Practice    *service.PracticeService

	closers []func()
}

// New connects to Postgres, the model vendors and optionally Redis, then
// wires the services. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.Default()}

	db, err := initPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	var gemini *genai.Client
	if cfg.LLMProvider == config.ProviderGemini || cfg.EmbeddingProvider == config.ProviderGemini {
		gemini, err = initGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize gemini: %w", err)
		}
		a.closers = append(a.closers, func() { _ = gemini.Close() })
	}

	var embedder embedding.Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		embedder = embedding.NewGeminiEmbedder(gemini, cfg.EmbeddingModel)
	default:
		embedder = embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	}
	if cfg.RedisURL != "" {
		rdb, err := initRedis(ctx, cfg.RedisURL)
		if err != nil {
			// the cache is optional; fall back to uncached embeddings
			logger.Warnw("embedding cache disabled", "error", err.Error())
		} else {
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			embedder = embedding.NewCachedEmbedder(embedder, rdb, embeddingCacheNamespace+":"+cfg.EmbeddingModel, cfg.EmbeddingCacheTTL)
			logger.Infow("embedding cache enabled", "ttl", cfg.EmbeddingCacheTTL.String())
		}
	}

	var generator llm.Generator
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		generator = llm.NewGeminiClient(gemini, cfg.EvaluationModel)
	default:
		generator = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EvaluationModel)
	}

	fileStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	chunks := repository.NewRuleChunkRepository(db, cfg.EmbeddingDimensions)
	ch, err := cfg.Chunker()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Retriever = retrieval.New(embedder, chunks, retrieval.WithMetrics(a.Metrics))
	a.Engine = grounding.NewEngine(a.Retriever, generator,
		grounding.WithRetryPolicy(cfg.Retry),
		grounding.WithMetrics(a.Metrics),
	)

	a.Evaluations = service.NewEvaluationService(a.Engine,
		service.EvalWithModel(cfg.EvaluationModel),
		service.EvalWithMetrics(a.Metrics),
	)
	a.Questions = service.NewQuestionService(a.Engine,
		service.QuestionWithModel(cfg.QuestionModel),
		service.QuestionWithMismatchPolicy(cfg.MismatchPolicy),
	)
	a.Tutor = service.NewTutorService(a.Engine, cfg.TutorModel)
	a.Rules = service.NewRuleService(
		service.RuleWithRulebookStore(repository.NewRulebookRepository(db)),
		service.RuleWithJobStore(repository.NewIngestionJobRepository(db)),
		service.RuleWithStorage(fileStorage),
		service.RuleWithPipeline(ingest.NewPipeline(ch, embedder, chunks, ingest.WithMetrics(a.Metrics))),
		service.RuleWithSearcher(a.Retriever),
	)
	a.Practice = service.NewPracticeService(
		repository.NewVideoRepository(db),
		repository.NewQuizAttemptRepository(db),
		a.Evaluations,
	)

	logger.Infow("services initialized",
		"llm_provider", string(cfg.LLMProvider),
		"embedding_provider", string(cfg.EmbeddingProvider),
		"storage", string(cfg.Storage.Type),
	)
	return a, nil
}

// Close releases the clients in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Infow("postgres connection established")
	return pool, nil
}

func initGemini(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		logger.Warnw("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	logger.Infow("gemini client initialized")
	return client, nil
}

func initRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
