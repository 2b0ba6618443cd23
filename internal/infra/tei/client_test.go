package tei

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/course-rag/internal/core/embedding"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTEI は /embed を模倣するテスト用サーバ
type fakeTEI struct {
	requests atomic.Int32

	mu     sync.Mutex
	inputs []any
	status int
	delay  time.Duration
	dim    int
}

func (f *fakeTEI) set(status int, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.delay = delay
}

func (f *fakeTEI) recorded() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.inputs...)
}

func newFakeTEI(t *testing.T, f *fakeTEI) *httptest.Server {
	t.Helper()
	if f.dim == 0 {
		f.dim = DefaultDimension
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		f.mu.Lock()
		status, delay, dim := f.status, f.delay, f.dim
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("model is loading"))
			return
		}

		var req struct {
			Inputs any `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		f.mu.Lock()
		f.inputs = append(f.inputs, req.Inputs)
		f.mu.Unlock()

		var texts []string
		switch v := req.Inputs.(type) {
		case string:
			texts = []string{v}
		case []any:
			for _, item := range v {
				texts = append(texts, item.(string))
			}
		}

		out := make([][]float32, len(texts))
		for i, text := range texts {
			vec := make([]float32, dim)
			vec[0] = float32(len(text))
			out[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(server.Close)
	return server
}

func connect(t *testing.T, url string, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithBaseURL(url), WithLogger(discardLogger)}, opts...)
	c, err := Connect(context.Background(), opts...)
	require.NoError(t, err)
	return c
}

func TestConnect_ProbesEmbedEndpoint(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)

	c := connect(t, server.URL+"/")

	assert.Equal(t, int32(1), f.requests.Load())
	assert.Equal(t, []any{probeText}, f.recorded())
	assert.Equal(t, server.URL, c.BaseURL())
	assert.Equal(t, DefaultDimension, c.Dimension())
	assert.Equal(t, DefaultModelName, c.ModelName())
}

func TestConnect_ResolvesBaseURLFromEnv(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	t.Setenv(EnvBaseURL, server.URL)

	c, err := Connect(context.Background(), WithLogger(discardLogger))
	require.NoError(t, err)
	assert.Equal(t, server.URL, c.BaseURL())
}

func TestConnect_DefaultBaseURL(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	c := newClient()
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestConnect_Refused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := Connect(context.Background(), WithBaseURL(url), WithLogger(discardLogger))
	require.Error(t, err)

	var connErr *embedding.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, embedding.ConnectivityRefused, connErr.Kind)
	assert.ErrorIs(t, err, embedding.ErrConnectionFailed)
	assert.Contains(t, err.Error(), url)
}

func TestConnect_Timeout(t *testing.T) {
	f := &fakeTEI{delay: 2 * time.Second}
	server := newFakeTEI(t, f)

	start := time.Now()
	_, err := Connect(context.Background(),
		WithBaseURL(server.URL),
		WithProbeTimeout(50*time.Millisecond),
		WithLogger(discardLogger),
	)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var connErr *embedding.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, embedding.ConnectivityTimeout, connErr.Kind)
}

func TestConnect_BadStatus(t *testing.T) {
	f := &fakeTEI{status: http.StatusServiceUnavailable}
	server := newFakeTEI(t, f)

	_, err := Connect(context.Background(), WithBaseURL(server.URL), WithLogger(discardLogger))
	require.Error(t, err)

	var connErr *embedding.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, embedding.ConnectivityBadStatus, connErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, connErr.StatusCode)
	assert.Equal(t, "model is loading", connErr.Body)
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestClient_Embed(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)

	for _, text := range []string{"intro programming", "a", "  padded  "} {
		vec, err := c.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, c.Dimension())
		assert.Equal(t, float32(len(text)), vec[0])
	}
	assert.Equal(t, "intro programming", f.recorded()[1])
}

func TestClient_Embed_RejectsBlankTextWithoutNetworkCall(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)
	before := f.requests.Load()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Embed(context.Background(), text)
		assert.ErrorIs(t, err, embedding.ErrInvalidInput)
	}
	assert.Equal(t, before, f.requests.Load())
}

func TestClient_Embed_FailureIsWrappedAndNotRetried(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)

	f.set(http.StatusInternalServerError, 0)
	before := f.requests.Load()

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	assert.NotErrorIs(t, err, embedding.ErrConnectionFailed)

	var statusErr *embedding.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, before+1, f.requests.Load())
}

func TestClient_Embed_Timeout(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL, WithRequestTimeout(50*time.Millisecond))

	f.set(0, 2*time.Second)
	_, err := c.Embed(context.Background(), "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_BatchEmbed_TimeoutIsTripleRequestTimeout(t *testing.T) {
	const requestTimeout = 200 * time.Millisecond

	tests := []struct {
		name    string
		delay   time.Duration
		wantErr bool
	}{
		{name: "単一の上限を超えてもバッチの上限内なら成功", delay: 350 * time.Millisecond},
		{name: "バッチの上限を超えると失敗", delay: 1500 * time.Millisecond, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeTEI{}
			server := newFakeTEI(t, f)
			c := connect(t, server.URL, WithRequestTimeout(requestTimeout))

			f.set(0, tt.delay)
			vectors, err := c.BatchEmbed(context.Background(), []string{"a", "bb"})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, vectors, 2)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestClient_Embed_SameDelayExceedsSingleTimeout(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL, WithRequestTimeout(200*time.Millisecond))

	f.set(0, 350*time.Millisecond)
	_, err := c.Embed(context.Background(), "slow")
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
}

func TestWithHTTPClient_IsUsedForRequests(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)

	var used atomic.Bool
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})}

	connect(t, server.URL, WithHTTPClient(httpClient))
	assert.True(t, used.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestConnect_DimensionMismatch(t *testing.T) {
	f := &fakeTEI{dim: 768}
	server := newFakeTEI(t, f)

	_, err := Connect(context.Background(), WithBaseURL(server.URL), WithLogger(discardLogger))
	require.Error(t, err)

	var connErr *embedding.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, embedding.ConnectivityDimensionMismatch, connErr.Kind)
	assert.ErrorIs(t, err, embedding.ErrConnectionFailed)
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestClient_Embed_DimensionMismatch(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)

	f.mu.Lock()
	f.dim = 8
	f.mu.Unlock()

	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestClient_BatchEmbed_SingleRequestInOrder(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)
	before := f.requests.Load()

	texts := []string{"a", "bbb", "cc", "dddd"}
	vectors, err := c.BatchEmbed(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, before+1, f.requests.Load())
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Len(t, vectors[i], c.Dimension())
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
	inputs := f.recorded()
	assert.Equal(t, []any{"a", "bbb", "cc", "dddd"}, inputs[len(inputs)-1])
}

func TestClient_BatchEmbed_RejectsEmptyListWithoutNetworkCall(t *testing.T) {
	f := &fakeTEI{}
	server := newFakeTEI(t, f)
	c := connect(t, server.URL)
	before := f.requests.Load()

	_, err := c.BatchEmbed(context.Background(), nil)
	assert.ErrorIs(t, err, embedding.ErrInvalidInput)

	_, err = c.BatchEmbed(context.Background(), []string{})
	assert.ErrorIs(t, err, embedding.ErrInvalidInput)

	assert.Equal(t, before, f.requests.Load())
}

func TestClient_BatchEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{make([]float32, DefaultDimension)})
	}))
	defer server.Close()

	c := connect(t, server.URL)
	_, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
}
