package app

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-alert-service/internal/config"
	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

func testConfig(visionURL, embedURL string) *config.Config {
	return &config.Config{
		VisionURL:           visionURL,
		VisionTimeout:       2 * time.Second,
		EmbedURL:            embedURL,
		EmbedModel:          "all-minilm",
		EmbedTimeout:        2 * time.Second,
		EmbedRatePerSec:     1000,
		EmbedCacheSize:      16,
		VideoQualitySamples: 3,
		VideoFrameRate:      1,
		FrameConcurrency:    2,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvaluator_BadCorpus(t *testing.T) {
	cfg := testConfig("http://localhost:1", "http://localhost:1")
	cfg.SocialCorpusPath = "/nonexistent/posts.csv"

	_, err := NewEvaluator(cfg, discardLogger(), observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestNewEvaluator_EndToEndOverHTTP(t *testing.T) {
	visionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"event_type":"rough_sea","average_clip_score":0.66,"vision_confidence":0.5,"detected_objects":[]}`))
	}))
	defer visionSrv.Close()

	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0, 0}}})
	}))
	defer embedSrv.Close()

	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 64, 48))))
	require.NoError(t, f.Close())

	e, err := NewEvaluator(testConfig(visionSrv.URL, embedSrv.URL), discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	a, err := e.Evaluate(context.Background(), domain.Report{
		ID:        "rpt-http",
		Text:      "choppy water at the jetty",
		MediaPath: path,
		MediaType: domain.MediaImage,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.EventRoughSea, a.Vision.EventType)
	assert.Equal(t, domain.ScoreAverageClip, a.Vision.ScoreSource)
	assert.Equal(t, 0.66, a.Vision.Score)
	require.NotNil(t, a.Social)
	assert.Equal(t, 1.0, a.Social.Confidence)
	assert.Nil(t, a.Place)
}
