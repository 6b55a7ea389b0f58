// Package observability provides OpenTelemetry tracing for tickfold
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tickfold/tickfold"

var (
	initOnce sync.Once
	provider *sdktrace.TracerProvider
)

// Config contains tracing configuration.
type Config struct {
	// Enabled turns span export on; with tracing disabled StartSpan hands
	// out no-op spans
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName identifies this process in exported spans
	ServiceName string `yaml:"service_name" json:"service_name"`
	// PrettyPrint formats the stdout exporter output for humans
	PrettyPrint bool `yaml:"pretty_print" json:"pretty_print"`
	// Writer overrides the export destination; defaults to stdout
	Writer io.Writer `yaml:"-" json:"-"`
}

// Init installs the global tracer provider. It returns a shutdown function
// that flushes pending spans.
func Init(cfg Config) (func(context.Context) error, error) {
	var err error
	initOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if cfg.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		var exporter *stdouttrace.Exporter
		exporter, err = stdouttrace.New(opts...)
		if err != nil {
			err = fmt.Errorf("failed to create trace exporter: %w", err)
			return
		}

		name := cfg.ServiceName
		if name == "" {
			name = "tickfold"
		}
		provider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(name),
			)),
		)
		otel.SetTracerProvider(provider)
	})
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return func(context.Context) error { return nil }, nil
	}
	return provider.Shutdown, nil
}

// Tracer returns the tracer spans are started from. Without Init it is the
// global default, a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span with the given attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// NewInvocationID returns a unique identifier correlating the logs, span
// and metrics of one resample invocation.
func NewInvocationID() string {
	return uuid.NewString()
}
