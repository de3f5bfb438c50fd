package telemetry

import (
	"context"
	"log"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// InitTracer wires the global OTLP/HTTP trace pipeline and returns a cleanup
// func for shutdown. The endpoint comes from
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT as either a full URL or host:port.
func InitTracer(serviceName string) func() {
	ctx := context.Background()

	endpoint, path, insecure := resolveEndpoint(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"))

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath(path),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		log.Printf("tracing disabled: exporter init failed: %v", err)
		return func() {}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		log.Printf("tracing disabled: resource init failed: %v", err)
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(1.0)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("OpenTelemetry initialized for service: %s", serviceName)
	return func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("tracer provider shutdown: %v", err)
		}
	}
}

func resolveEndpoint(raw string) (endpoint, path string, insecure bool) {
	endpoint, path, insecure = "localhost:4318", "/v1/traces", true
	if raw == "" {
		return
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		endpoint = raw
		return
	}
	if u, err := url.Parse(raw); err == nil {
		if u.Host != "" {
			endpoint = u.Host
		}
		if u.Path != "" {
			path = u.Path
		}
		insecure = u.Scheme == "http"
	}
	return
}
