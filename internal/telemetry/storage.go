package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in fb.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner        storage.Storage
	tracer       trace.Tracer
	ops          metric.Int64Counter
	dur          metric.Float64Histogram
	errs         metric.Int64Counter
	featureGauge metric.Int64Gauge
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumented(s)
}

func newInstrumented(s storage.Storage) *InstrumentedStorage {
	m := Meter()
	ops, _ := m.Int64Counter("fb.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("fb.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("fb.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	featureGauge, _ := m.Int64Gauge("fb.feature.count",
		metric.WithDescription("Current number of features by lane (snapshot from GetStatistics)"),
	)
	return &InstrumentedStorage{
		inner:        s,
		tracer:       Tracer(),
		ops:          ops,
		dur:          dur,
		errs:         errs,
		featureGauge: featureGauge,
	}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func filterAttrs(filter types.FeatureFilter) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if filter.Passes != nil {
		attrs = append(attrs, attribute.Bool("fb.filter.passes", *filter.Passes))
	}
	if filter.InProgress != nil {
		attrs = append(attrs, attribute.Bool("fb.filter.in_progress", *filter.InProgress))
	}
	if filter.Limit > 0 {
		attrs = append(attrs, attribute.Int("fb.filter.limit", filter.Limit))
	}
	return attrs
}

func (s *InstrumentedStorage) GetFeature(ctx context.Context, id int64) (*types.Feature, error) {
	attrs := []attribute.KeyValue{attribute.Int64("fb.feature.id", id)}
	ctx, span, t := s.op(ctx, "GetFeature", attrs...)
	v, err := s.inner.GetFeature(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) ListFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error) {
	attrs := filterAttrs(filter)
	ctx, span, t := s.op(ctx, "ListFeatures", attrs...)
	v, err := s.inner.ListFeatures(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("fb.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) CountFeatures(ctx context.Context, filter types.FeatureFilter) (int, error) {
	attrs := filterAttrs(filter)
	ctx, span, t := s.op(ctx, "CountFeatures", attrs...)
	v, err := s.inner.CountFeatures(ctx, filter)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	ctx, span, t := s.op(ctx, "GetStatistics")
	v, err := s.inner.GetStatistics(ctx)
	s.done(ctx, span, t, err)
	if err == nil && v != nil {
		s.recordLanes(ctx, v.Passing)
	}
	return v, err
}

// recordLanes snapshots the per-lane feature counts. A passing feature may
// still carry in_progress, so the statistics counts overlap and the open
// lanes are counted directly.
func (s *InstrumentedStorage) recordLanes(ctx context.Context, done int) {
	counts := map[types.Lane]int{types.LaneDone: done}
	for _, lane := range []types.Lane{types.LaneTodo, types.LaneInProgress} {
		n, err := s.inner.CountFeatures(ctx, lane.Filter())
		if err != nil {
			return
		}
		counts[lane] = n
	}
	for lane, n := range counts {
		s.featureGauge.Record(ctx, int64(n), metric.WithAttributes(attribute.String("lane", string(lane))))
	}
}

func (s *InstrumentedStorage) SchemaVersion(ctx context.Context) (int, error) {
	ctx, span, t := s.op(ctx, "SchemaVersion")
	v, err := s.inner.SchemaVersion(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, fn)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) Path() string {
	return s.inner.Path()
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
