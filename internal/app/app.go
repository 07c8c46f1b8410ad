// Package app wires the frontend side of ragchat: store, embedder, model
// client and the services built on them.
package app

import (
	"context"
	"fmt"

	"github.com/liliang-cn/ragchat/internal/config"
	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/embedding"
	"github.com/liliang-cn/ragchat/internal/llm"
	"github.com/liliang-cn/ragchat/internal/loader"
	"github.com/liliang-cn/ragchat/internal/repository"
	"github.com/liliang-cn/ragchat/internal/service"
	"go.uber.org/zap"
)

// App holds every long-lived component. It is created once per process and
// passed to whatever handles messages; nothing here is global.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *repository.DB
	Collection *domain.Collection

	Collections *repository.CollectionRepository
	Records     *repository.RecordRepository
	Runs        *repository.RunRepository

	Embedder embedding.Embedder
	LLM      *llm.Client

	Ingest *service.IngestService
	Engine *service.QueryEngine
	Chat   *service.ChatService
	Info   *service.InfoService
}

// New opens the store, gets or creates the configured collection and builds
// the services. The query engine is not built yet; call BuildIndex.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := repository.NewDB(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	collections := repository.NewCollectionRepository(db)
	collection, err := collections.GetOrCreate(ctx, cfg.Store.Collection)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.Store.Collection, err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, err
	}

	records := repository.NewRecordRepository(db, collection.ID)
	runs := repository.NewRunRepository(db)

	llmClient := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.RequestTimeout,
	})

	ingest := service.NewIngestService(
		collection,
		records,
		runs,
		embedder,
		loader.New(cfg.Ingest.Includes, cfg.Ingest.Excludes, logger.Named("loader")),
		logger.Named("ingest"),
	)
	ingest.AtomicUpsert = cfg.Ingest.AtomicUpsert

	engine := service.NewQueryEngine(collection, records, embedder, llmClient, cfg.Query, logger.Named("engine"))

	return &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Collection:  collection,
		Collections: collections,
		Records:     records,
		Runs:        runs,
		Embedder:    embedder,
		LLM:         llmClient,
		Ingest:      ingest,
		Engine:      engine,
		Chat:        service.NewChatService(engine, logger.Named("chat")),
		Info:        service.NewInfoService(collections, runs),
	}, nil
}

// BuildIndex prepares the query engine. An empty collection is logged and
// leaves the engine unready; the chat handler then answers with the
// index-not-loaded message.
func (a *App) BuildIndex(ctx context.Context) (*domain.CollectionReport, error) {
	report, err := a.Engine.Build(ctx)
	if err != nil {
		a.Logger.Warn("index not loaded", zap.Error(err))
	}
	return report, err
}

// Close releases the store
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
