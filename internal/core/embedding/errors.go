package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrConnectionFailed は接続確認（プローブ）に失敗した場合のエラー
	ErrConnectionFailed = errors.New("embedding service connection failed")

	// ErrInvalidInput はネットワーク呼び出し前に検出される入力エラー
	ErrInvalidInput = errors.New("invalid embedding input")

	// ErrEmbeddingFailed は Embedding 生成リクエストが失敗した場合のエラー
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch はベクトル長が宣言次元と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ConnectivityKind は接続失敗の種別
type ConnectivityKind int

const (
	ConnectivityUnexpected ConnectivityKind = iota
	ConnectivityTimeout
	ConnectivityRefused
	ConnectivityBadStatus
	ConnectivityDimensionMismatch
)

func (k ConnectivityKind) String() string {
	switch k {
	case ConnectivityTimeout:
		return "timeout"
	case ConnectivityRefused:
		return "refused"
	case ConnectivityBadStatus:
		return "bad_status"
	case ConnectivityDimensionMismatch:
		return "dimension_mismatch"
	default:
		return "unexpected"
	}
}

// ConnectivityError は接続確認時のエラー。Kind ごとに対処方法の異なるメッセージを返す。
type ConnectivityError struct {
	Kind       ConnectivityKind
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ConnectivityError) Error() string {
	switch e.Kind {
	case ConnectivityTimeout:
		return fmt.Sprintf("timeout connecting to embedding service at %s: service may be starting up or not responding", e.Endpoint)
	case ConnectivityRefused:
		return fmt.Sprintf("cannot connect to embedding service at %s: make sure the embeddings container is running (docker compose up -d embeddings)", e.Endpoint)
	case ConnectivityBadStatus:
		return fmt.Sprintf("embedding service returned error: %d - %s", e.StatusCode, e.Body)
	case ConnectivityDimensionMismatch:
		return fmt.Sprintf("embedding service at %s does not match the configured dimension: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("unexpected error connecting to embedding service at %s: %v", e.Endpoint, e.Err)
	}
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrConnectionFailed) を満たす
func (e *ConnectivityError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// NewConnectivityError はトランスポート層のエラーを timeout / refused / unexpected に分類する。
// HTTP ステータスエラーは呼び出し側で ConnectivityBadStatus として組み立てる。
func NewConnectivityError(endpoint string, err error) *ConnectivityError {
	return &ConnectivityError{
		Kind:     classify(err),
		Endpoint: endpoint,
		Err:      err,
	}
}

// CheckProbeDimension はプローブ応答のベクトル長を検証する。不一致は接続失敗として扱う。
func CheckProbeDimension(endpoint string, vector []float32, dimension int) error {
	if err := CheckDimension(vector, dimension); err != nil {
		return &ConnectivityError{
			Kind:     ConnectivityDimensionMismatch,
			Endpoint: endpoint,
			Err:      err,
		}
	}
	return nil
}

func classify(err error) ConnectivityKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectivityTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ConnectivityTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectivityRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectivityRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectivityRefused
	}
	return ConnectivityUnexpected
}

// RequestError は Embed / BatchEmbed 実行時の失敗をラップする。リトライはしない。
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("failed to generate embedding (%s): %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is は errors.Is(err, ErrEmbeddingFailed) を満たす
func (e *RequestError) Is(target error) bool {
	return target == ErrEmbeddingFailed
}

// StatusError は埋め込みサービスが 2xx 以外を返したことを表す
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding service returned status %d: %s", e.StatusCode, e.Body)
}
