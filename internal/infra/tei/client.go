// Package tei は HuggingFace Text Embeddings Inference (TEI) の /embed エンドポイントを扱うクライアントです。
package tei

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jinford/course-rag/internal/core/embedding"
)

const (
	// EnvBaseURL はエンドポイント未指定時に参照する環境変数
	EnvBaseURL = "EMBEDDING_SERVICE_URL"
	// DefaultBaseURL は環境変数も未設定の場合の接続先
	DefaultBaseURL = "http://localhost:7860"
	// DefaultModelName は TEI コンテナで稼働させているモデル
	DefaultModelName = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultDimension は all-MiniLM-L6-v2 の次元数
	DefaultDimension = 384

	// DefaultProbeTimeout は接続確認のタイムアウト
	DefaultProbeTimeout = 5 * time.Second
	// DefaultRequestTimeout は単一テキストのタイムアウト。バッチはこの3倍。
	DefaultRequestTimeout = 10 * time.Second

	batchTimeoutFactor = 3
	probeText          = "connection test"
	maxErrorBodyBytes  = 4 << 10
)

// Client は TEI の /embed を呼び出す Embedder 実装
type Client struct {
	baseURL        string
	httpClient     *retryablehttp.Client
	model          string
	dimension      int
	probeTimeout   time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

type clientOptions struct {
	baseURL        string
	httpClient     *http.Client
	model          string
	dimension      int
	probeTimeout   time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithBaseURL は接続先を指定する
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithModel はモデル名と宣言次元を上書きする
func WithModel(name string, dimension int) ClientOption {
	return func(o *clientOptions) {
		o.model = name
		o.dimension = dimension
	}
}

// WithProbeTimeout は接続確認のタイムアウトを上書きする
func WithProbeTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.probeTimeout = d
	}
}

// WithRequestTimeout は単一テキストのタイムアウトを上書きする
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.requestTimeout = d
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// Connect はクライアントを作成し、接続確認のプローブが成功した場合のみ返す。
// 失敗時は *embedding.ConnectivityError を返す。
func Connect(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := newClient(opts...)

	if err := c.probe(ctx); err != nil {
		return nil, err
	}

	c.logger.Info("connected to embedding service",
		"url", c.baseURL,
		"model", c.model,
		"dimension", c.dimension,
	)
	return c, nil
}

func newClient(opts ...ClientOption) *Client {
	options := clientOptions{
		model:          DefaultModelName,
		dimension:      DefaultDimension,
		probeTimeout:   DefaultProbeTimeout,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	baseURL := options.baseURL
	if baseURL == "" {
		baseURL = os.Getenv(EnvBaseURL)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// 1回の呼び出しにつき1リクエストのみ送信し、失敗はそのまま返す
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.CheckRetry = noRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = options.logger
	if options.httpClient != nil {
		retryClient.HTTPClient = options.httpClient
	}

	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     retryClient,
		model:          options.model,
		dimension:      options.dimension,
		probeTimeout:   options.probeTimeout,
		requestTimeout: options.requestTimeout,
		logger:         options.logger,
	}
}

func noRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return false, nil
}

type embedRequest struct {
	Inputs any `json:"inputs"`
}

func (c *Client) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	vectors, err := c.embed(ctx, probeText)
	if err != nil {
		var statusErr *embedding.StatusError
		if errors.As(err, &statusErr) {
			return &embedding.ConnectivityError{
				Kind:       embedding.ConnectivityBadStatus,
				Endpoint:   c.baseURL,
				StatusCode: statusErr.StatusCode,
				Body:       statusErr.Body,
				Err:        err,
			}
		}
		return embedding.NewConnectivityError(c.baseURL, err)
	}
	if len(vectors) == 0 {
		return embedding.NewConnectivityError(c.baseURL, errors.New("no embeddings in probe response"))
	}

	return embedding.CheckProbeDimension(c.baseURL, vectors[0], c.dimension)
}

// Embed は単一テキストの Embedding を生成する
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateText(text); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	vectors, err := c.embed(ctx, text)
	if err != nil {
		return nil, &embedding.RequestError{Op: "embed", Err: err}
	}
	if len(vectors) == 0 {
		return nil, &embedding.RequestError{Op: "embed", Err: errors.New("no embeddings in response")}
	}
	if err := embedding.CheckDimension(vectors[0], c.dimension); err != nil {
		return nil, &embedding.RequestError{Op: "embed", Err: err}
	}

	return vectors[0], nil
}

// BatchEmbed は全テキストを1リクエストで送信し、入力順のベクトルを返す
func (c *Client) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedding.ValidateTexts(texts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout*batchTimeoutFactor)
	defer cancel()

	vectors, err := c.embed(ctx, texts)
	if err != nil {
		return nil, &embedding.RequestError{Op: "batch embed", Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &embedding.RequestError{
			Op:  "batch embed",
			Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors)),
		}
	}
	for i, vec := range vectors {
		if err := embedding.CheckDimension(vec, c.dimension); err != nil {
			return nil, &embedding.RequestError{Op: "batch embed", Err: fmt.Errorf("index %d: %w", i, err)}
		}
	}

	return vectors, nil
}

func (c *Client) embed(ctx context.Context, inputs any) ([][]float32, error) {
	body, err := c.post(ctx, inputs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	var vectors [][]float32
	if err := json.NewDecoder(body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return vectors, nil
}

// post は /embed に JSON を送信し、2xx の場合のみレスポンスボディを返す
func (c *Client) post(ctx context.Context, inputs any) (io.ReadCloser, error) {
	payload, err := json.Marshal(embedRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &embedding.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	return resp.Body, nil
}

// BaseURL は接続先を返す
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Dimension は宣言された次元数を返す。レスポンスからは推定しない。
func (c *Client) Dimension() int {
	return c.dimension
}

// Metadata はモデル情報を返す
func (c *Client) Metadata() embedding.Metadata {
	return embedding.Metadata{
		ModelName: c.model,
		Dimension: c.dimension,
	}
}

// インターフェース実装の確認
var _ embedding.Embedder = (*Client)(nil)
