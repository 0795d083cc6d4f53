// Package otel provides OpenTelemetry instrumentation for attachment
// stores.
package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/absurdlabs/postbox/store"
)

const (
	instrumentationName = "github.com/absurdlabs/postbox/store/attachment/otel"
)

// Store wraps an AttachmentFileStore with OpenTelemetry instrumentation.
type Store struct {
	backend store.AttachmentFileStore
	opts    *options

	tracer trace.Tracer

	putLatency    metric.Float64Histogram
	putCount      metric.Int64Counter
	putBytes      metric.Int64Counter
	putErrors     metric.Int64Counter
	openLatency   metric.Float64Histogram
	openCount     metric.Int64Counter
	openErrors    metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter
}

// Ensure Store implements AttachmentFileStore.
var _ store.AttachmentFileStore = (*Store)(nil)

// New creates an instrumented attachment store wrapping the given backend.
func New(backend store.AttachmentFileStore, opts ...Option) (*Store, error) {
	o := &options{
		tracingEnabled: true,
		metricsEnabled: true,
		serviceName:    "postbox",
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Store{
		backend: backend,
		opts:    o,
	}

	if o.tracingEnabled {
		s.tracer = o.tracerProvider.Tracer(instrumentationName)
	}
	if o.metricsEnabled {
		if err := s.initMetrics(o.meterProvider); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	return s, nil
}

func (s *Store) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	s.putLatency, err = meter.Float64Histogram(
		"attachment.put.duration",
		metric.WithDescription("Duration of attachment put operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	s.putCount, err = meter.Int64Counter(
		"attachment.put.count",
		metric.WithDescription("Number of attachment put operations"),
	)
	if err != nil {
		return err
	}
	s.putBytes, err = meter.Int64Counter(
		"attachment.put.bytes",
		metric.WithDescription("Total bytes stored"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	s.putErrors, err = meter.Int64Counter(
		"attachment.put.errors",
		metric.WithDescription("Number of put errors"),
	)
	if err != nil {
		return err
	}

	s.openLatency, err = meter.Float64Histogram(
		"attachment.open.duration",
		metric.WithDescription("Duration of attachment open operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	s.openCount, err = meter.Int64Counter(
		"attachment.open.count",
		metric.WithDescription("Number of attachment open operations"),
	)
	if err != nil {
		return err
	}
	s.openErrors, err = meter.Int64Counter(
		"attachment.open.errors",
		metric.WithDescription("Number of open errors"),
	)
	if err != nil {
		return err
	}

	s.deleteLatency, err = meter.Float64Histogram(
		"attachment.delete.duration",
		metric.WithDescription("Duration of attachment delete operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}
	s.deleteCount, err = meter.Int64Counter(
		"attachment.delete.count",
		metric.WithDescription("Number of attachment delete operations"),
	)
	if err != nil {
		return err
	}
	s.deleteErrors, err = meter.Int64Counter(
		"attachment.delete.errors",
		metric.WithDescription("Number of delete errors"),
	)
	return err
}

// Put stores content in the backend, recording latency, byte volume, and
// errors.
func (s *Store) Put(ctx context.Context, filename, mimeType string, r io.Reader) (string, int64, error) {
	ctx, span := s.startSpan(ctx, "attachment.Put",
		attribute.String("attachment.filename", filename),
		attribute.String("attachment.mime_type", mimeType),
	)
	start := time.Now()

	locator, size, err := s.backend.Put(ctx, filename, mimeType, r)

	if s.opts.metricsEnabled {
		attrs := s.metricAttrs()
		s.putLatency.Record(ctx, time.Since(start).Seconds(), attrs)
		s.putCount.Add(ctx, 1, attrs)
		if err != nil {
			s.putErrors.Add(ctx, 1, attrs)
		} else {
			s.putBytes.Add(ctx, size, attrs)
		}
	}
	s.endSpan(span, err)
	return locator, size, err
}

// Open returns a reader from the backend, recording latency and errors.
// Bytes read through the returned reader are not tracked.
func (s *Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	ctx, span := s.startSpan(ctx, "attachment.Open",
		attribute.String("attachment.locator", locator),
	)
	start := time.Now()

	rc, err := s.backend.Open(ctx, locator)

	if s.opts.metricsEnabled {
		attrs := s.metricAttrs()
		s.openLatency.Record(ctx, time.Since(start).Seconds(), attrs)
		s.openCount.Add(ctx, 1, attrs)
		if err != nil {
			s.openErrors.Add(ctx, 1, attrs)
		}
	}
	s.endSpan(span, err)
	return rc, err
}

// Delete removes content from the backend, recording latency and errors.
func (s *Store) Delete(ctx context.Context, locator string) error {
	ctx, span := s.startSpan(ctx, "attachment.Delete",
		attribute.String("attachment.locator", locator),
	)
	start := time.Now()

	err := s.backend.Delete(ctx, locator)

	if s.opts.metricsEnabled {
		attrs := s.metricAttrs()
		s.deleteLatency.Record(ctx, time.Since(start).Seconds(), attrs)
		s.deleteCount.Add(ctx, 1, attrs)
		if err != nil {
			s.deleteErrors.Add(ctx, 1, attrs)
		}
	}
	s.endSpan(span, err)
	return err
}

func (s *Store) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, nil
	}
	attrs = append(attrs, attribute.String("service.name", s.opts.serviceName))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Store) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) metricAttrs() metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("service.name", s.opts.serviceName))
}
