package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/course-rag/internal/core/embedding"
)

// Embedder は OpenAI 互換の /v1/embeddings を使用してテキストをベクトルに変換する。
// TEI の OpenAI 互換ルートにも接続できる。
type Embedder struct {
	client            openai.Client
	baseURL           string
	model             string
	dimension         int
	requestDimensions bool
	requestTimeout    time.Duration
	logger            *slog.Logger
}

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension は courses.embedding 列に合わせた次元
	DefaultEmbeddingDimension = 384
	// DefaultRequestTimeout は単一テキストのタイムアウト
	DefaultRequestTimeout = 10 * time.Second
	// DefaultProbeTimeout は接続確認のタイムアウト
	DefaultProbeTimeout = 5 * time.Second

	maxBatchSize = 100
	probeText    = "connection test"

	// dimensions パラメータに対応するモデルの接頭辞
	shortenableModelPrefix = "text-embedding-3"
)

type embedderOptions struct {
	baseURL           string
	model             string
	dimension         int
	requestDimensions *bool
	requestTimeout    time.Duration
	probeTimeout      time.Duration
	extra             []option.RequestOption
	logger            *slog.Logger
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithBaseURL は接続先を上書きする（例: http://localhost:7860/v1/）
func WithBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithRequestDimensions は dimensions パラメータの送信有無を指定する。
// 未指定時は text-embedding-3 系のモデルでのみ送信する。
func WithRequestDimensions(enabled bool) EmbedderOption {
	return func(o *embedderOptions) {
		o.requestDimensions = &enabled
	}
}

// WithTimeouts はプローブと単一リクエストのタイムアウトを上書きする
func WithTimeouts(probe, request time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		o.probeTimeout = probe
		o.requestTimeout = request
	}
}

// WithRequestOptions は SDK のリクエストオプションを追加する
func WithRequestOptions(opts ...option.RequestOption) EmbedderOption {
	return func(o *embedderOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) EmbedderOption {
	return func(o *embedderOptions) {
		o.logger = logger
	}
}

// NewEmbedder は接続確認を行わずに Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:          DefaultEmbeddingModel,
		dimension:      DefaultEmbeddingDimension,
		requestTimeout: DefaultRequestTimeout,
		probeTimeout:   DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// リトライは行わず、失敗はそのまま呼び出し元へ返す
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(options.baseURL))
	}
	reqOpts = append(reqOpts, options.extra...)

	requestDimensions := strings.HasPrefix(options.model, shortenableModelPrefix)
	if options.requestDimensions != nil {
		requestDimensions = *options.requestDimensions
	}

	return &Embedder{
		client:            openai.NewClient(reqOpts...),
		baseURL:           options.baseURL,
		model:             options.model,
		dimension:         options.dimension,
		requestDimensions: requestDimensions,
		requestTimeout:    options.requestTimeout,
		logger:            options.logger,
	}
}

// Connect は Embedder を作成し、プローブ成功時のみ返す
func Connect(ctx context.Context, apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	options := embedderOptions{probeTimeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	e := NewEmbedder(apiKey, opts...)

	probeCtx, cancel := context.WithTimeout(ctx, options.probeTimeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(probeCtx, e.params([]string{probeText}))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &embedding.ConnectivityError{
				Kind:       embedding.ConnectivityBadStatus,
				Endpoint:   e.endpoint(),
				StatusCode: apiErr.StatusCode,
				Body:       apiErr.Error(),
				Err:        err,
			}
		}
		return nil, embedding.NewConnectivityError(e.endpoint(), err)
	}
	if len(resp.Data) == 0 {
		return nil, embedding.NewConnectivityError(e.endpoint(), errors.New("no embeddings in probe response"))
	}
	if err := embedding.CheckProbeDimension(e.endpoint(), toFloat32(resp.Data[0].Embedding), e.dimension); err != nil {
		return nil, err
	}

	e.logger.Info("connected to embedding service",
		"url", e.endpoint(),
		"model", e.model,
		"dimension", e.dimension,
	)
	return e, nil
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateText(text); err != nil {
		return nil, err
	}

	embeddings, err := e.create(ctx, []string{text}, e.requestTimeout)
	if err != nil {
		return nil, &embedding.RequestError{Op: "embed", Err: err}
	}

	return embeddings[0], nil
}

// BatchEmbed はバッチで Embedding を生成する（最大100件）
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedding.ValidateTexts(texts); err != nil {
		return nil, err
	}

	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("%w: batch size exceeds maximum of %d", embedding.ErrInvalidInput, maxBatchSize)
	}

	embeddings, err := e.create(ctx, texts, e.requestTimeout*3)
	if err != nil {
		return nil, &embedding.RequestError{Op: "batch embed", Err: err}
	}

	return embeddings, nil
}

func (e *Embedder) params(texts []string) openai.EmbeddingNewParams {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.requestDimensions && e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	return params
}

func (e *Embedder) create(ctx context.Context, texts []string, timeout time.Duration) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(ctx, e.params(texts))
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// index 順に並べ直して入力順を保証する
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Index < data[j].Index
	})

	embeddings := make([][]float32, 0, len(data))
	for _, d := range data {
		vector := toFloat32(d.Embedding)
		if err := embedding.CheckDimension(vector, e.dimension); err != nil {
			return nil, err
		}
		embeddings = append(embeddings, vector)
	}

	return embeddings, nil
}

func toFloat32(values []float64) []float32 {
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector
}

func (e *Embedder) endpoint() string {
	if e.baseURL == "" {
		return "https://api.openai.com/v1/"
	}
	return e.baseURL
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す
func (e *Embedder) MaxBatchSize() int {
	return maxBatchSize
}

// Metadata はモデル情報を返す
func (e *Embedder) Metadata() embedding.Metadata {
	return embedding.Metadata{
		ModelName: e.model,
		Dimension: e.dimension,
	}
}

// インターフェース実装の確認
var _ embedding.Embedder = (*Embedder)(nil)
