package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/course-rag/internal/core/catalog"
	"github.com/jinford/course-rag/internal/core/embedding"
	"github.com/jinford/course-rag/internal/infra/openai"
	"github.com/jinford/course-rag/internal/infra/postgres"
	"github.com/jinford/course-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/course-rag/internal/infra/tei"
	"github.com/jinford/course-rag/internal/infra/tokenizer"
	"github.com/jinford/course-rag/internal/platform/config"
	"github.com/jinford/course-rag/internal/platform/database"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Database      *database.Database
	Embedders     *embedding.Registry
	TxProvider    *database.TransactionProvider
	Repository    *postgres.Repository
	IngestService *catalog.IngestService
	QueryService  *catalog.QueryService
}

type containerOptions struct {
	embedderFactory embedding.Factory
	progress        catalog.ProgressFunc
	trimmer         catalog.TokenTrimmer
	ingestOpts      []catalog.IngestServiceOption
}

// Option は Container 構築時のオプション
type Option func(*containerOptions)

// WithEmbedderFactory は Embedder の生成処理を差し替える
func WithEmbedderFactory(factory embedding.Factory) Option {
	return func(o *containerOptions) {
		o.embedderFactory = factory
	}
}

// WithIngestProgress は取り込みの進捗コールバックを設定する
func WithIngestProgress(fn catalog.ProgressFunc) Option {
	return func(o *containerOptions) {
		o.progress = fn
	}
}

// WithIngestOptions は設定から組み立てた IngestService のオプションを上書きする
func WithIngestOptions(opts ...catalog.IngestServiceOption) Option {
	return func(o *containerOptions) {
		o.ingestOpts = append(o.ingestOpts, opts...)
	}
}

// WithTokenTrimmer はトークン切り詰め処理を差し替える
func WithTokenTrimmer(trimmer catalog.TokenTrimmer) Option {
	return func(o *containerOptions) {
		o.trimmer = trimmer
	}
}

// New は設定からコンテナを生成する。Embedder は初回利用時に接続される。
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...Option) (*Container, error) {
	db, err := database.New(ctx, cfg.Database.URL,
		database.WithMaxConns(cfg.Database.MaxConns),
		database.WithVectorTypes(),
		database.WithPoolLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	return NewWithDB(logger, cfg, db, opts...), nil
}

// NewWithDB は既存の Database を受け取りコンテナを生成する
func NewWithDB(logger *slog.Logger, cfg *config.Config, db *database.Database, opts ...Option) *Container {
	if logger == nil {
		logger = slog.Default()
	}

	options := containerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	factory := options.embedderFactory
	if factory == nil {
		factory = NewEmbedderFactory(cfg.Embedding, logger)
	}
	registry := embedding.NewRegistry(factory)

	txProvider := database.NewTransactionProvider(db.Pool)
	repo := postgres.NewRepository(sqlc.New(db.Pool))

	ingestOpts := []catalog.IngestServiceOption{
		catalog.WithIngestLogger(logger),
		catalog.WithBatchEmbedding(cfg.Ingest.BatchEmbedding),
		catalog.WithProgress(options.progress),
	}
	if trimmer := resolveTrimmer(options.trimmer, cfg.Ingest.MaxTokens, logger); trimmer != nil {
		ingestOpts = append(ingestOpts, catalog.WithTokenLimit(trimmer, cfg.Ingest.MaxTokens))
	}
	ingestOpts = append(ingestOpts, options.ingestOpts...)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Database:      db,
		Embedders:     registry,
		TxProvider:    txProvider,
		Repository:    repo,
		IngestService: catalog.NewIngestService(txProvider, registry, ingestOpts...),
		QueryService:  catalog.NewQueryService(repo, registry),
	}
}

// NewEmbedderFactory は設定に従って接続確認済みの Embedder を生成する Factory を返す
func NewEmbedderFactory(cfg config.EmbeddingConfig, logger *slog.Logger) embedding.Factory {
	return func(ctx context.Context) (embedding.Embedder, error) {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			opts := []openai.EmbedderOption{
				openai.WithEmbeddingDimension(cfg.Dimension),
				openai.WithTimeouts(cfg.ProbeTimeout, cfg.RequestTimeout),
				openai.WithLogger(logger),
			}
			if cfg.RequestDimensions != nil {
				opts = append(opts, openai.WithRequestDimensions(*cfg.RequestDimensions))
			}
			if cfg.URL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.URL))
			}
			if cfg.Model != "" {
				opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
			}
			return openai.Connect(ctx, cfg.APIKey, opts...)

		case config.ProviderTEI, "":
			model := cfg.Model
			if model == "" {
				model = tei.DefaultModelName
			}
			return tei.Connect(ctx,
				tei.WithBaseURL(cfg.URL),
				tei.WithModel(model, cfg.Dimension),
				tei.WithProbeTimeout(cfg.ProbeTimeout),
				tei.WithRequestTimeout(cfg.RequestTimeout),
				tei.WithLogger(logger),
			)

		default:
			return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
		}
	}
}

// resolveTrimmer はトークン上限が有効な場合に Trimmer を返す。
// エンコーディングを取得できない場合は切り詰めを無効にする。
func resolveTrimmer(trimmer catalog.TokenTrimmer, maxTokens int, logger *slog.Logger) catalog.TokenTrimmer {
	if maxTokens <= 0 {
		return nil
	}
	if trimmer != nil {
		return trimmer
	}

	counter, err := tokenizer.NewCounter()
	if err != nil {
		logger.Warn("トークン上限による切り詰めを無効化します", "error", err)
		return nil
	}
	return counter
}

// InitSchema はスキーマを適用する。vector 拡張を作成するため型登録なしで接続する。
func InitSchema(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := database.New(ctx, cfg.Database.URL, database.WithPoolLogger(logger))
	if err != nil {
		return fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}
	defer db.Close()

	if err := postgres.ApplySchema(ctx, db.Pool); err != nil {
		return err
	}

	logger.Info("スキーマを適用しました")
	return nil
}

// Close は内部リソースを解放する
func (c *Container) Close() {
	if c != nil && c.Database != nil {
		c.Database.Close()
	}
}
