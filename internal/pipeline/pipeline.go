package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw report message into an assessment.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Assessment, error)
}

// BatchLoader publishes assessments to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, assessments []domain.Assessment) error
}

// Backoff after extract or load failures: start at 200ms, double each retry,
// cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline consumes report batches, evaluates them and publishes the
// resulting assessments. Offsets are committed only after publishing, except
// for reports that cannot be evaluated at all, which are committed and dropped.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	concurrency int
}

// New creates a Pipeline. Up to concurrency reports of a batch are evaluated
// at once; values below one evaluate sequentially.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, concurrency int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		concurrency: max(1, concurrency),
	}
}

// CheckReadiness returns nil once a decision has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	return errors.New("pipeline has not evaluated any reports yet")
}

// Run loops until ctx is cancelled. Extract and publish failures are retried
// with exponential backoff; Run itself only returns on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "concurrency", p.concurrency)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for ctx.Err() == nil {
		err := p.runOnce(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			p.logger.Error("batch failed", "error", err, "retry_in", backoff)
			if retry.SleepWithContext(ctx, backoff) {
				backoff = retry.NextBackoff(backoff, maxBackoff)
			}
		default:
			backoff = initialBackoff
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// runOnce handles a single batch. A non-nil error means nothing from the batch
// was published and its offsets are left uncommitted for redelivery.
func (p *Pipeline) runOnce(ctx context.Context) error {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	p.metrics.ReportsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	results := p.evaluate(ctx, batch)

	assessments := make([]domain.Assessment, 0, len(batch))
	published := make([]domain.RawEvent, 0, len(batch))
	for i, r := range results {
		raw := batch[i]
		if r.err != nil {
			p.logger.Warn("evaluation failed, skipping report",
				"error", r.err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.EvaluationErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		assessments = append(assessments, r.assessment)
		published = append(published, raw)
	}
	if len(assessments) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, assessments); err != nil {
		return fmt.Errorf("publish %d assessments: %w", len(assessments), err)
	}
	p.metrics.DecisionsProduced.Add(float64(len(assessments)))
	for _, raw := range published {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

type evaluation struct {
	assessment domain.Assessment
	err        error
}

// evaluate runs the transformer over batch with bounded parallelism. Results
// line up with batch by index.
func (p *Pipeline) evaluate(ctx context.Context, batch []domain.RawEvent) []evaluation {
	results := make([]evaluation, len(batch))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, raw := range batch {
		g.Go(func() error {
			a, err := p.transformer.Transform(ctx, raw)
			results[i] = evaluation{assessment: a, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
