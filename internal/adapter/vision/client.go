// Package vision is the HTTP client for the external vision scorer, which
// classifies one image into the closed event vocabulary and lists the
// objects it detected.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

const jpegQuality = 90

// Client implements domain.VisionScorer over POST {baseURL}/score.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a vision scorer client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// scoreResponse is the scorer's wire format. Deployments report confidence
// under one of three field names.
type scoreResponse struct {
	EventType        string   `json:"event_type"`
	ClipScore        *float64 `json:"clip_score"`
	AverageClipScore *float64 `json:"average_clip_score"`
	MarineScore      *float64 `json:"marine_score"`
	VisionConfidence float64  `json:"vision_confidence"`
	DetectedObjects  []string `json:"detected_objects"`
	PredictedLabel   string   `json:"predicted_label"`
}

// Score JPEG-encodes img and asks the scorer to classify it.
func (c *Client) Score(ctx context.Context, img image.Image) (domain.VisionResult, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return domain.VisionResult{}, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", &buf)
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.VisionRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.VisionResult{}, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.VisionResult{}, fmt.Errorf("vision scorer error: status %d: %s", resp.StatusCode, body)
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return domain.VisionResult{}, fmt.Errorf("decode vision response: %w", err)
	}

	result := normalize(sr)
	c.logger.Debug("vision scored",
		"event_type", result.EventType,
		"score", result.Score,
		"score_source", result.ScoreSource,
	)
	return result, nil
}

// normalize picks the confidence field by priority clip_score,
// average_clip_score, marine_score and defaults to zero when none is set.
func normalize(sr scoreResponse) domain.VisionResult {
	r := domain.VisionResult{
		EventType:          domain.ParseEventType(sr.EventType),
		ScoreSource:        domain.ScoreNone,
		DetectorConfidence: domain.Score(sr.VisionConfidence),
		DetectedObjects:    sr.DetectedObjects,
		PredictedLabel:     sr.PredictedLabel,
	}
	if r.DetectedObjects == nil {
		r.DetectedObjects = []string{}
	}

	switch {
	case sr.ClipScore != nil:
		r.Score, r.ScoreSource = *sr.ClipScore, domain.ScoreClip
	case sr.AverageClipScore != nil:
		r.Score, r.ScoreSource = *sr.AverageClipScore, domain.ScoreAverageClip
	case sr.MarineScore != nil:
		r.Score, r.ScoreSource = *sr.MarineScore, domain.ScoreMarine
	}
	r.Score = domain.Score(r.Score)
	return r
}
