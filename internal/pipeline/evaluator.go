package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/media"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
	"github.com/couchcryptid/coastal-alert-service/internal/quality"
	"github.com/couchcryptid/coastal-alert-service/internal/satellite"
	"github.com/couchcryptid/coastal-alert-service/internal/social"
)

// VideoFrames is a sampled frame set owned by one evaluation.
type VideoFrames interface {
	quality.FrameSource
	Release()
}

// FrameExtractor samples the frames of a video file. Extract yields frames at
// a fixed rate for vision scoring; Sample yields n frames spread over the
// video's native frames for quality assessment.
type FrameExtractor interface {
	Extract(ctx context.Context, videoPath string) (VideoFrames, error)
	Sample(ctx context.Context, videoPath string, n int) (VideoFrames, error)
}

type ffmpegFrames struct{ x *media.Extractor }

// FFmpegFrames adapts a media.Extractor to FrameExtractor.
func FFmpegFrames(x *media.Extractor) FrameExtractor { return ffmpegFrames{x: x} }

func (f ffmpegFrames) Extract(ctx context.Context, videoPath string) (VideoFrames, error) {
	frames, err := f.x.Extract(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func (f ffmpegFrames) Sample(ctx context.Context, videoPath string, n int) (VideoFrames, error) {
	frames, err := f.x.Sample(ctx, videoPath, n)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// SocialScorer corroborates report text against known social posts.
type SocialScorer interface {
	Score(ctx context.Context, text string) (domain.SocialResult, error)
}

// EvaluatorConfig wires the collaborators of an Evaluator. Geocoder is
// optional; everything else is required.
type EvaluatorConfig struct {
	Quality    *quality.Assessor
	Vision     domain.VisionScorer
	Frames     FrameExtractor
	Satellite  *satellite.Simulator
	Social     SocialScorer
	Reconciler *domain.Reconciler
	Geocoder   domain.Geocoder

	// QualitySamples is how many video frames the quality assessor reads.
	QualitySamples int
	// FrameConcurrency bounds in-flight vision requests per video.
	FrameConcurrency int
}

// Evaluator turns one report into an assessment. It implements Transformer.
type Evaluator struct {
	cfg     EvaluatorConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(cfg EvaluatorConfig, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	if cfg.FrameConcurrency < 1 {
		cfg.FrameConcurrency = 1
	}
	return &Evaluator{cfg: cfg, logger: logger, metrics: metrics}
}

// Transform parses a raw report message and evaluates it.
func (e *Evaluator) Transform(ctx context.Context, raw domain.RawEvent) (domain.Assessment, error) {
	report, err := domain.ParseReport(raw)
	if err != nil {
		return domain.Assessment{}, err
	}
	return e.Evaluate(ctx, report)
}

// Evaluate runs every evidence source for report and fuses them. Media that
// yields no vision evidence still produces an assessment: the quality
// sentinel, an unknown event and a rejection. Errors are returned only when ctx
// ends mid-evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, report domain.Report) (domain.Assessment, error) {
	logger := e.logger.With("report_id", report.ID)

	var (
		q      domain.QualityReport
		vision domain.VisionResult
		soc    *domain.SocialResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		soc = e.scoreSocial(gctx, report.Text, logger)
		return nil
	})

	switch report.MediaType {
	case domain.MediaVideo:
		frames, err := e.cfg.Frames.Extract(ctx, report.MediaPath)
		if err != nil {
			_ = g.Wait()
			cause := fmt.Errorf("extract video frames: %w", err)
			return e.unanalyzable(ctx, report, quality.Unreadable(quality.IssueUnreadableVideo), soc, cause, logger)
		}
		defer frames.Release()

		g.Go(func() error {
			q = e.assessVideo(gctx, report.MediaPath, frames, logger)
			return nil
		})
		g.Go(func() error {
			var err error
			vision, err = e.scoreFrames(gctx, frames, logger)
			return err
		})

	default:
		img, err := media.LoadImage(report.MediaPath)
		if err != nil {
			_ = g.Wait()
			return e.unanalyzable(ctx, report, e.cfg.Quality.AssessFile(report.MediaPath), soc, err, logger)
		}

		g.Go(func() error {
			q = e.cfg.Quality.AssessImage(img)
			return nil
		})
		g.Go(func() error {
			var err error
			vision, err = e.cfg.Vision.Score(gctx, img)
			if err != nil {
				return fmt.Errorf("score image: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Quality assessment cannot fail, so q is set here.
		return e.unanalyzable(ctx, report, q, soc, err, logger)
	}

	sat := e.cfg.Satellite.Verify(vision.EventType, vision.DetectedObjects, report.Location)
	text := e.cfg.Reconciler.Reconcile(ctx, report.Text, vision.EventType, vision.DetectedObjects)

	decision := domain.Fuse(domain.FusionInput{Vision: vision, Satellite: &sat, Social: soc, Text: &text})
	adjusted, warning := domain.ApplyQualityDiscount(decision, q)

	a := domain.Assessment{
		ReportID:           report.ID,
		MediaType:          report.MediaType,
		Quality:            q,
		Vision:             vision,
		Satellite:          &sat,
		Social:             soc,
		TextUnderstanding:  &text,
		Decision:           decision,
		AdjustedConfidence: adjusted,
		QualityWarning:     warning,
		Location:           report.Location,
	}
	a = e.finish(ctx, a, logger)
	e.metrics.ConsistencyVerdicts.WithLabelValues(string(text.Consistency)).Inc()

	logger.Info("report evaluated",
		"media_type", report.MediaType,
		"event_type", vision.EventType,
		"decision", decision.Decision,
		"final_score", decision.FinalScore,
		"adjusted_confidence", adjusted,
		"consistency", text.Consistency,
	)
	return a, nil
}

// unanalyzable builds the rejection record for media that produced no vision
// evidence. Satellite and text checks are skipped since both depend on the
// detected event.
func (e *Evaluator) unanalyzable(ctx context.Context, report domain.Report, q domain.QualityReport, soc *domain.SocialResult, cause error, logger *slog.Logger) (domain.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Assessment{}, fmt.Errorf("evaluate report %s: %w", report.ID, err)
	}

	logger.Warn("no vision evidence, rejecting report", "media_path", report.MediaPath, "error", cause)

	a := domain.Assessment{
		ReportID:  report.ID,
		MediaType: report.MediaType,
		Quality:   q,
		Vision: domain.VisionResult{
			EventType:       domain.EventUnknown,
			ScoreSource:     domain.ScoreNone,
			DetectedObjects: []string{},
		},
		Social:   soc,
		Decision: domain.RejectUnanalyzable(),
		Location: report.Location,
		Error:    cause.Error(),
	}
	return e.finish(ctx, a, logger), nil
}

// finish enriches a with its place and timestamp and records decision metrics.
func (e *Evaluator) finish(ctx context.Context, a domain.Assessment, logger *slog.Logger) domain.Assessment {
	a = domain.EnrichWithPlace(ctx, a, e.cfg.Geocoder, logger)
	a.EvaluatedAt = domain.Now()

	e.metrics.Decisions.WithLabelValues(string(a.Decision.Decision)).Inc()
	e.metrics.MediaQuality.Observe(a.Quality.Score)
	return a
}

// scoreSocial returns nil when there is nothing to corroborate or the
// embedding service is unavailable.
func (e *Evaluator) scoreSocial(ctx context.Context, text string, logger *slog.Logger) *domain.SocialResult {
	if e.cfg.Social == nil {
		return nil
	}
	r, err := e.cfg.Social.Score(ctx, text)
	switch {
	case errors.Is(err, social.ErrNoText):
		return nil
	case err != nil:
		logger.Warn("social scoring failed, using neutral confidence", "error", err)
		return nil
	}
	return &r
}

// scoreFrames scores every extracted frame with bounded concurrency and
// aggregates them in frame order. Frames that fail to decode or score are
// dropped.
// assessVideo scores quality on frames sampled from the native frame
// sequence, falling back to the rate-extracted frames when sampling fails.
func (e *Evaluator) assessVideo(ctx context.Context, path string, extracted VideoFrames, logger *slog.Logger) domain.QualityReport {
	samples, err := e.cfg.Frames.Sample(ctx, path, e.cfg.QualitySamples)
	if err != nil {
		logger.Warn("native frame sampling failed, assessing extracted frames", "error", err)
		return e.cfg.Quality.AssessVideo(ctx, extracted, e.cfg.QualitySamples)
	}
	defer samples.Release()
	return e.cfg.Quality.AssessVideo(ctx, samples, samples.FrameCount())
}

func (e *Evaluator) scoreFrames(ctx context.Context, frames VideoFrames, logger *slog.Logger) (domain.VisionResult, error) {
	n := frames.FrameCount()
	results := make([]*domain.VisionResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FrameConcurrency)
	for i := range n {
		g.Go(func() error {
			img, err := frames.Frame(i)
			if err != nil {
				logger.Warn("skipping unreadable frame", "frame", i, "error", err)
				return nil
			}
			r, err := e.cfg.Vision.Score(gctx, img)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("skipping frame the vision scorer rejected", "frame", i, "error", err)
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.VisionResult{}, fmt.Errorf("score frames: %w", err)
	}

	scored := make([]domain.VisionResult, 0, n)
	for _, r := range results {
		if r != nil {
			scored = append(scored, *r)
		}
	}
	if len(scored) < n {
		logger.Warn("some frames were not scored", "scored", len(scored), "extracted", n)
	}
	return domain.AggregateFrames(scored), nil
}
