//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/coastal-alert-service/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("coastal-alert-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fakeModels serves the vision scorer and embedding APIs. Every image is a
// rough sea; every text embeds to the same vector.
func fakeModels(t *testing.T) (visionURL, embedURL string) {
	t.Helper()
	vision := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"event_type":"rough_sea","clip_score":0.72,"vision_confidence":0.6,"detected_objects":["boat"]}`))
	}))
	t.Cleanup(vision.Close)

	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.2, 0.4, 0.4}}})
	}))
	t.Cleanup(embed.Close)

	return vision.URL, embed.URL
}

// writeImage stores a small PNG upload and returns its path.
func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 64, 48))))
	return path
}

func testConfig(broker, groupID, visionURL, embedURL string) *config.Config {
	return &config.Config{
		KafkaBrokers:        []string{broker},
		KafkaSourceTopic:    testSourceTopic,
		KafkaSinkTopic:      testSinkTopic,
		KafkaGroupID:        groupID,
		BatchFlushInterval:  5 * time.Second,
		VisionURL:           visionURL,
		VisionTimeout:       5 * time.Second,
		EmbedURL:            embedURL,
		EmbedModel:          "all-minilm",
		EmbedTimeout:        5 * time.Second,
		EmbedRatePerSec:     100,
		EmbedCacheSize:      64,
		VideoQualitySamples: 3,
		VideoFrameRate:      1,
		FrameConcurrency:    2,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
	}
}
