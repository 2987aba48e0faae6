// Package observability installs the process-wide slog logger and, for the otel
// format, the global tracer provider.
//
// The text and json formats write to stderr through slog's own handlers. The otel
// format bridges slog records into the OpenTelemetry log SDK and installs an SDK
// tracer provider. Exporters are picked from OTEL_LOGS_EXPORTER and
// OTEL_TRACES_EXPORTER ("stdout" or "otlp", and "none" for traces) and, for otlp,
// from OTEL_EXPORTER_OTLP_PROTOCOL ("grpc" or "http/protobuf").
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentationName = "github.com/ericfisherdev/tokenvault"

// ShutdownFunc flushes and releases logging and tracing resources.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Instrument installs the default slog logger for level and format and returns a
// function that flushes pending records. It is safe to call the returned function
// more than once.
func Instrument(ctx context.Context, level slog.Level, format string) (ShutdownFunc, error) {
	return instrument(ctx, os.Stderr, level, format, os.Getenv)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format string, getenv func(string) string) (ShutdownFunc, error) {
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
		return noopShutdown, nil
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, opts)))
		return noopShutdown, nil
	case "otel":
		return instrumentOTel(ctx, w, level, getenv)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

func instrumentOTel(ctx context.Context, w io.Writer, level slog.Level, getenv func(string) string) (ShutdownFunc, error) {
	spanExporter, err := newSpanExporter(ctx, w, getenv)
	if err != nil {
		return nil, err
	}

	logExporter, err := newLogExporter(ctx, w, getenv)
	if err != nil {
		if spanExporter != nil {
			_ = spanExporter.Shutdown(ctx)
		}
		return nil, err
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		fmt.Fprintf(w, "opentelemetry: %v\n", err)
	}))

	shutdowns := make([]ShutdownFunc, 0, 2)

	// A nil span exporter means tracing is switched off and the global no-op
	// tracer stays in place.
	if spanExporter != nil {
		tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spanExporter))
		otel.SetTracerProvider(tracerProvider)
		shutdowns = append(shutdowns, tracerProvider.Shutdown)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(logExporter), severity(level))
	loggerProvider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	global.SetLoggerProvider(loggerProvider)
	shutdowns = append(shutdowns, loggerProvider.Shutdown)

	slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(loggerProvider))))

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

// otlpProtocol returns the OTLP protocol for signal, preferring the
// signal-specific variable over the shared one.
func otlpProtocol(getenv func(string) string, signal string) string {
	if proto := getenv("OTEL_EXPORTER_OTLP_" + signal + "_PROTOCOL"); proto != "" {
		return proto
	}
	return getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
}

func newLogExporter(ctx context.Context, w io.Writer, getenv func(string) string) (sdklog.Exporter, error) {
	switch exp := strings.ToLower(getenv("OTEL_LOGS_EXPORTER")); exp {
	case "", "stdout", "console":
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case "otlp":
		switch proto := otlpProtocol(getenv, "LOGS"); proto {
		case "", "http/protobuf":
			return otlploghttp.New(ctx)
		case "grpc":
			return otlploggrpc.New(ctx)
		default:
			return nil, fmt.Errorf("unsupported OTLP protocol %q", proto)
		}
	default:
		return nil, fmt.Errorf("unsupported logs exporter %q", exp)
	}
}

// newSpanExporter picks the trace exporter from OTEL_TRACES_EXPORTER. It returns
// a nil exporter for "none".
func newSpanExporter(ctx context.Context, w io.Writer, getenv func(string) string) (sdktrace.SpanExporter, error) {
	switch exp := strings.ToLower(getenv("OTEL_TRACES_EXPORTER")); exp {
	case "", "stdout", "console":
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp":
		switch proto := otlpProtocol(getenv, "TRACES"); proto {
		case "", "http/protobuf":
			return otlptracehttp.New(ctx)
		case "grpc":
			return otlptracegrpc.New(ctx)
		default:
			return nil, fmt.Errorf("unsupported OTLP protocol %q", proto)
		}
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported traces exporter %q", exp)
	}
}

// severity maps an slog level onto the closest OpenTelemetry minimum severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
