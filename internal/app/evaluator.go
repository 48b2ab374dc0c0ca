// Package app assembles the evaluator from configuration. The service and the
// offline CLI share it so both evaluate reports with the same adapters.
package app

import (
	"log/slog"

	"github.com/couchcryptid/coastal-alert-service/internal/adapter/corpus"
	"github.com/couchcryptid/coastal-alert-service/internal/adapter/embed"
	"github.com/couchcryptid/coastal-alert-service/internal/adapter/mapbox"
	"github.com/couchcryptid/coastal-alert-service/internal/adapter/vision"
	"github.com/couchcryptid/coastal-alert-service/internal/config"
	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/media"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
	"github.com/couchcryptid/coastal-alert-service/internal/pipeline"
	"github.com/couchcryptid/coastal-alert-service/internal/quality"
	"github.com/couchcryptid/coastal-alert-service/internal/satellite"
	"github.com/couchcryptid/coastal-alert-service/internal/social"
)

// NewEvaluator wires the evidence sources described by cfg.
func NewEvaluator(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Evaluator, error) {
	posts, err := corpus.Load(cfg.SocialCorpusPath)
	if err != nil {
		return nil, err
	}

	ollama := embed.NewOllamaClient(cfg.EmbedURL, cfg.EmbedModel, cfg.EmbedTimeout, cfg.EmbedRatePerSec, metrics, logger)
	embedder := embed.NewCachedEmbedder(ollama, cfg.EmbedCacheSize, metrics)

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	logger.Info("evaluator configured",
		"vision_url", cfg.VisionURL,
		"embed_model", cfg.EmbedModel,
		"social_posts", len(posts),
		"video_frame_rate", cfg.VideoFrameRate,
	)

	return pipeline.NewEvaluator(pipeline.EvaluatorConfig{
		Quality:          quality.NewAssessor(logger),
		Vision:           vision.NewClient(cfg.VisionURL, cfg.VisionTimeout, metrics, logger),
		Frames:           pipeline.FFmpegFrames(media.NewExtractor(cfg.FFmpegPath, cfg.FFprobePath, cfg.VideoFrameRate, logger)),
		Satellite:        satellite.NewSimulator(nil, nil),
		Social:           social.NewScorer(embedder, posts),
		Reconciler:       domain.NewReconciler(embedder, logger),
		Geocoder:         geocoder,
		QualitySamples:   cfg.VideoQualitySamples,
		FrameConcurrency: cfg.FrameConcurrency,
	}, logger, metrics), nil
}
