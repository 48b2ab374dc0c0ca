package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
	"github.com/couchcryptid/coastal-alert-service/internal/observability"
	"github.com/couchcryptid/coastal-alert-service/internal/pipeline"
)

// --- mocks ---

// mockExtractor hands out its events in one batch, then blocks until the
// context is cancelled.
type mockExtractor struct {
	events []domain.RawEvent
	err    error
	calls  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	n := m.calls.Add(1)
	if m.err != nil && n == 1 {
		return nil, m.err
	}
	if n == 1 || (m.err != nil && n == 2) {
		return m.events[:min(batchSize, len(m.events))], nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	failIDs map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Assessment, error) {
	id := string(raw.Key)
	if m.failIDs[id] {
		return domain.Assessment{}, errors.New("vision scorer unavailable")
	}
	return domain.Assessment{
		ReportID: id,
		Decision: domain.Decide(0.6),
	}, nil
}

type mockLoader struct {
	loaded   []domain.Assessment
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, assessments []domain.Assessment) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, assessments...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeRawEvent(t *testing.T, id string) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":         id,
		"text":       "huge waves hitting the sea wall",
		"media_path": "/uploads/" + id + ".jpg",
	})
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(id), Value: data, Topic: "coastal-hazard-reports"}
}

func runBriefly(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{makeRawEvent(t, "rpt-1"), makeRawEvent(t, "rpt-2")}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10, 4)
	runBriefly(t, p)

	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, "rpt-1", ldr.loaded[0].ReportID)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ReportsConsumed))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DecisionsProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_EvaluationErrorSkipsAndCommits(t *testing.T) {
	var committed atomic.Int64
	bad := makeRawEvent(t, "rpt-bad")
	bad.Commit = func(context.Context) error { committed.Add(1); return nil }
	good := makeRawEvent(t, "rpt-good")
	good.Commit = func(context.Context) error { committed.Add(1); return nil }

	ext := &mockExtractor{events: []domain.RawEvent{bad, good}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{failIDs: map[string]bool{"rpt-bad": true}}, ldr, discardLogger(), metrics, 10, 4)
	runBriefly(t, p)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "rpt-good", ldr.loaded[0].ReportID)
	assert.Equal(t, int64(2), committed.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EvaluationErrors))
}

func TestPipeline_Run_AllFailedNotReady(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{makeRawEvent(t, "rpt-1")}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{failIDs: map[string]bool{"rpt-1": true}}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 4)
	runBriefly(t, p)

	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commitCalled := false
	raw := makeRawEvent(t, "rpt-1")
	raw.Commit = func(context.Context) error { commitCalled = true; return nil }

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 4)
	runBriefly(t, p)

	assert.Empty(t, ldr.loaded)
	assert.False(t, commitCalled)
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		events: []domain.RawEvent{makeRawEvent(t, "rpt-1")},
		err:    errors.New("group coordinator not available"),
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 4)
	runBriefly(t, p)

	require.Len(t, ldr.loaded, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var order []string
	raw := makeRawEvent(t, "rpt-1")
	raw.Commit = func(context.Context) error {
		order = append(order, "commit")
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &orderingLoader{order: &order}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 4)
	runBriefly(t, p)

	assert.Equal(t, []string{"load", "commit"}, order)
}

type orderingLoader struct {
	order *[]string
}

func (l *orderingLoader) LoadBatch(context.Context, []domain.Assessment) error {
	*l.order = append(*l.order, "load")
	return nil
}

// slowTransformer delays earlier reports longer so parallel evaluation
// finishes out of order.
type slowTransformer struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (s *slowTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Assessment, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	delay := map[string]time.Duration{"rpt-1": 60 * time.Millisecond, "rpt-2": 30 * time.Millisecond}
	time.Sleep(delay[string(raw.Key)])
	return domain.Assessment{ReportID: string(raw.Key)}, nil
}

func TestPipeline_Run_ParallelEvaluationKeepsOrder(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{
		makeRawEvent(t, "rpt-1"), makeRawEvent(t, "rpt-2"), makeRawEvent(t, "rpt-3"),
	}}
	ldr := &mockLoader{}
	tr := &slowTransformer{}

	p := pipeline.New(ext, tr, ldr, discardLogger(), observability.NewMetricsForTesting(), 10, 3)
	runBriefly(t, p)

	require.Len(t, ldr.loaded, 3)
	ids := []string{ldr.loaded[0].ReportID, ldr.loaded[1].ReportID, ldr.loaded[2].ReportID}
	assert.Equal(t, []string{"rpt-1", "rpt-2", "rpt-3"}, ids)
	assert.Greater(t, tr.peak.Load(), int64(1))
}

func TestPipeline_Run_SequentialWhenConcurrencyUnset(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{makeRawEvent(t, "rpt-1"), makeRawEvent(t, "rpt-2")}}
	tr := &slowTransformer{}

	p := pipeline.New(ext, tr, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10, 0)
	runBriefly(t, p)

	assert.Equal(t, int64(1), tr.peak.Load())
}
