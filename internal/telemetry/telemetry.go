// Package telemetry exports OpenTelemetry spans and metrics for feature
// store operations. It is off unless FB_OTEL_ENABLED=true.
//
//	FB_OTEL_ENABLED=true                     turn telemetry on
//	FB_OTEL_STDOUT=true                      print spans and metrics to the CLI's stderr
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT=...  push metrics over OTLP/HTTP (host:port or URL)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...          used when the metrics endpoint is unset
//
// Spans are never sent over OTLP; only metrics are.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scope = "github.com/featureboard/featureboard/storage"

const (
	stdoutMetricInterval = 15 * time.Second
	otlpMetricInterval   = 30 * time.Second
)

// settings is the environment-derived configuration.
type settings struct {
	enabled         bool
	stdout          bool
	metricsEndpoint string
}

func settingsFromEnv() settings {
	s := settings{
		enabled:         os.Getenv("FB_OTEL_ENABLED") == "true",
		stdout:          os.Getenv("FB_OTEL_STDOUT") == "true",
		metricsEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
	}
	if s.metricsEndpoint == "" {
		s.metricsEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return s
}

// Enabled reports whether FB_OTEL_ENABLED=true.
func Enabled() bool {
	return settingsFromEnv().enabled
}

var shutdowns []func(context.Context) error

// Init installs the global providers. With telemetry off they are no-ops.
// Exporter output goes to w so `fb mcp` keeps stdout for the protocol.
func Init(ctx context.Context, w io.Writer, service, version string) error {
	s := settingsFromEnv()
	if !s.enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}
	if w == nil {
		w = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	tp, err := newTracerProvider(w, res, s)
	if err != nil {
		return fmt.Errorf("telemetry tracer provider: %w", err)
	}
	mp, err := newMeterProvider(ctx, w, res, s)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry meter provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, tp.Shutdown, mp.Shutdown)
	return nil
}

// newTracerProvider samples every span; they are only exported with
// FB_OTEL_STDOUT.
func newTracerProvider(w io.Writer, res *resource.Resource, s settings) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.stdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, w io.Writer, res *resource.Resource, s settings) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range []struct {
		on       bool
		interval time.Duration
		build    func() (sdkmetric.Exporter, error)
	}{
		{s.stdout, stdoutMetricInterval, func() (sdkmetric.Exporter, error) {
			return stdoutmetric.New(stdoutmetric.WithWriter(w))
		}},
		{s.metricsEndpoint != "", otlpMetricInterval, func() (sdkmetric.Exporter, error) {
			return newOTLPMetricExporter(ctx, s.metricsEndpoint)
		}},
	} {
		if !r.on {
			continue
		}
		exp, err := r.build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(r.interval))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns the featureboard tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(scope)
}

// Meter returns the featureboard meter.
func Meter() metric.Meter {
	return otel.Meter(scope)
}

// Shutdown flushes pending spans and metrics and returns the joined
// exporter errors.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdowns {
		errs = append(errs, fn(ctx))
	}
	shutdowns = nil
	return errors.Join(errs...)
}
