package embed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string, metrics *observability.Metrics) *OllamaClient {
	return NewOllamaClient(url, "all-minilm", 2*time.Second, 1000, metrics, discardLogger())
}

func TestOllamaClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "huge waves near coast", req.Input)

		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3}}})
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	vec, err := newTestClient(srv.URL, m).Embed(context.Background(), "huge waves near coast")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedRequests.WithLabelValues("success")))
}

func TestOllamaClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
			want: "status 500",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"embeddings": [`))
			},
			want: "parse response",
		},
		{
			name: "no embeddings",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"embeddings": []}`))
			},
			want: "no embeddings returned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			m := observability.NewMetricsForTesting()
			_, err := newTestClient(srv.URL, m).Embed(context.Background(), "text")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedRequests.WithLabelValues("error")))
		})
	}
}

func TestOllamaClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL, observability.NewMetricsForTesting()).Embed(ctx, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- cached decorator ---

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func TestCachedEmbedder_Hit(t *testing.T) {
	inner := &countingEmbedder{}
	m := observability.NewMetricsForTesting()
	cached := NewCachedEmbedder(inner, 10, m)

	v1, err := cached.Embed(context.Background(), "storm approaching shoreline")
	require.NoError(t, err)
	v2, err := cached.Embed(context.Background(), "storm approaching shoreline")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedCache.WithLabelValues("miss")))
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("connection refused")}
	cached := NewCachedEmbedder(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = cached.Embed(context.Background(), "x")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}
