package postbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/absurdlabs/postbox"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the postbox service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	// Message operations
	sendLatency   metric.Float64Histogram
	sendCount     metric.Int64Counter
	sendErrors    metric.Int64Counter
	getLatency    metric.Float64Histogram
	getCount      metric.Int64Counter
	getErrors     metric.Int64Counter
	listLatency   metric.Float64Histogram
	listCount     metric.Int64Counter
	listErrors    metric.Int64Counter
	searchLatency metric.Float64Histogram
	searchCount   metric.Int64Counter
	searchErrors  metric.Int64Counter

	// Mutations
	updateLatency metric.Float64Histogram
	updateCount   metric.Int64Counter
	updateErrors  metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter
	draftLatency  metric.Float64Histogram
	draftCount    metric.Int64Counter
	draftErrors   metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// instrumentSet groups the three instruments every operation records.
type instrumentSet struct {
	latency *metric.Float64Histogram
	count   *metric.Int64Counter
	errors  *metric.Int64Counter
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	families := []struct {
		name string
		desc string
		set  instrumentSet
	}{
		{"send", "send operations", instrumentSet{&o.sendLatency, &o.sendCount, &o.sendErrors}},
		{"get", "get operations", instrumentSet{&o.getLatency, &o.getCount, &o.getErrors}},
		{"list", "list operations", instrumentSet{&o.listLatency, &o.listCount, &o.listErrors}},
		{"search", "search operations", instrumentSet{&o.searchLatency, &o.searchCount, &o.searchErrors}},
		{"update", "update operations", instrumentSet{&o.updateLatency, &o.updateCount, &o.updateErrors}},
		{"delete", "delete operations", instrumentSet{&o.deleteLatency, &o.deleteCount, &o.deleteErrors}},
		{"draft", "draft save operations", instrumentSet{&o.draftLatency, &o.draftCount, &o.draftErrors}},
	}

	for _, f := range families {
		var err error
		*f.set.latency, err = meter.Float64Histogram(
			"postbox."+f.name+".duration",
			metric.WithDescription("Duration of "+f.desc),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		*f.set.count, err = meter.Int64Counter(
			"postbox."+f.name+".count",
			metric.WithDescription("Number of "+f.desc),
		)
		if err != nil {
			return err
		}
		*f.set.errors, err = meter.Int64Counter(
			"postbox."+f.name+".errors",
			metric.WithDescription("Number of failed "+f.desc),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// Caller should call the returned end function with the operation's error.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) record(ctx context.Context, latency metric.Float64Histogram, count, errCount metric.Int64Counter, duration time.Duration, err error, attrs ...attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	latency.Record(ctx, duration.Seconds(), opt)
	count.Add(ctx, 1, opt)
	if err != nil {
		errCount.Add(ctx, 1, opt)
	}
}

// recordSend records send operation metrics.
func (o *otelInstrumentation) recordSend(ctx context.Context, duration time.Duration, recipientCount int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.sendLatency, o.sendCount, o.sendErrors, duration, err,
		attribute.Int("recipient_count", recipientCount))
}

// recordGet records get operation metrics.
func (o *otelInstrumentation) recordGet(ctx context.Context, duration time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.getLatency, o.getCount, o.getErrors, duration, err)
}

// recordList records list operation metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, folder string, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.listLatency, o.listCount, o.listErrors, duration, err,
		attribute.String("folder", folder),
		attribute.Int("result_count", resultCount))
}

// recordSearch records search operation metrics.
func (o *otelInstrumentation) recordSearch(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.searchLatency, o.searchCount, o.searchErrors, duration, err,
		attribute.Int("result_count", resultCount))
}

// recordUpdate records update operation metrics.
func (o *otelInstrumentation) recordUpdate(ctx context.Context, duration time.Duration, operation string, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.updateLatency, o.updateCount, o.updateErrors, duration, err,
		attribute.String("operation", operation))
}

// recordDelete records delete operation metrics.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, permanent bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.deleteLatency, o.deleteCount, o.deleteErrors, duration, err,
		attribute.Bool("permanent", permanent))
}

// recordDraft records draft save operation metrics.
func (o *otelInstrumentation) recordDraft(ctx context.Context, duration time.Duration, created bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.record(ctx, o.draftLatency, o.draftCount, o.draftErrors, duration, err,
		attribute.Bool("created", created))
}
