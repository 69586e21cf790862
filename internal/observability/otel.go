package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/yungbote/segbridge/internal/platform/envutil"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

func OTelEnabled() bool {
	return envutil.Bool("OTEL_ENABLED", false)
}

// InitOTel wires a tracer provider for the process. With
// OTEL_EXPORTER_OTLP_ENDPOINT set it exports over OTLP/HTTP, otherwise
// spans go to stdout. Returns a shutdown func that flushes the exporter.
func InitOTel(ctx context.Context, log *logger.Logger) (func(context.Context) error, error) {
	if !OTelEnabled() {
		return func(context.Context) error { return nil }, nil
	}
	var initErr error
	otelOnce.Do(func() {
		serviceName := envutil.String("OTEL_SERVICE_NAME", "segbridge")
		env := envutil.String("APP_ENV", "dev")

		var exporter sdktrace.SpanExporter
		endpoint := strings.TrimSpace(envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
		if endpoint != "" {
			endpoint = strings.TrimPrefix(endpoint, "http://")
			endpoint = strings.TrimPrefix(endpoint, "https://")
			exp, err := otlptracehttp.New(ctx,
				otlptracehttp.WithEndpoint(endpoint),
				otlptracehttp.WithInsecure(),
			)
			if err != nil {
				initErr = fmt.Errorf("otlp exporter: %w", err)
				return
			}
			exporter = exp
		} else {
			exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
			if err != nil {
				initErr = fmt.Errorf("stdout exporter: %w", err)
				return
			}
			exporter = exp
		}

		res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(env),
		))
		if err != nil {
			initErr = fmt.Errorf("otel resource: %w", err)
			return
		}

		ratio := envutil.Float("OTEL_TRACE_SAMPLE_RATIO", 0.1)
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("OpenTelemetry tracing enabled", "service", serviceName, "sample_ratio", ratio)
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	if otelShutdown == nil {
		return func(context.Context) error { return nil }, nil
	}
	return otelShutdown, nil
}
