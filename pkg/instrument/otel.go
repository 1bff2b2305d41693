package instrument

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tether/pkg/debounce"
)

// Default tracer name for tether instrumentation.
const defaultTracerName = "tether"

// OTelConfig configures the OpenTelemetry debounce middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "tether").
	TracerName string

	// Attributes are added to every task span.
	Attributes []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry debounce middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithAttributes adds constant attributes to every task span.
func WithAttributes(attrs ...attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// OTel returns a debounce middleware that records one span per
// debounced task invocation. Panics raised by the task mark the span
// as an error before propagating.
func OTel(opts ...OTelOption) debounce.Middleware {
	cfg := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.tracer = otel.Tracer(cfg.TracerName)

	return func(task string, next func()) {
		attrs := append([]attribute.KeyValue{
			attribute.String("tether.task", task),
		}, cfg.Attributes...)

		_, span := cfg.tracer.Start(context.Background(), "tether.debounce.fire",
			trace.WithAttributes(attrs...))
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(codes.Error, "task panicked")
				panic(r)
			}
		}()
		next()
	}
}
