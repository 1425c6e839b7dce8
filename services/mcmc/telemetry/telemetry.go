// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names a telemetry backend.
type Exporter string

const (
	ExporterNone       Exporter = "none"
	ExporterStdout     Exporter = "stdout"
	ExporterOTLP       Exporter = "otlp"
	ExporterPrometheus Exporter = "prometheus"
)

// Config selects where spans and metrics go.
type Config struct {
	// ServiceName is the service.name resource attribute.
	ServiceName string

	// ServiceVersion is the service.version resource attribute.
	ServiceVersion string

	// Environment is the deployment.environment resource attribute.
	Environment string

	// Traces is one of none, stdout, otlp.
	Traces Exporter

	// Metrics is one of none, stdout, prometheus.
	Metrics Exporter

	// OTLPEndpoint is the gRPC collector address for otlp traces.
	OTLPEndpoint string

	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool

	// Output receives stdout exporter output. Nil means os.Stdout.
	Output io.Writer

	// MetricInterval is the stdout metric export period. Zero uses the SDK default.
	MetricInterval time.Duration
}

// DefaultConfig returns local-run defaults: no traces, Prometheus metrics.
// Environment variables override the exporter choices and the endpoint.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "aleutian-mcmc",
		ServiceVersion: "1.0.0",
		Environment:    envOr("ALEUTIAN_ENV", "development"),
		Traces:         Exporter(envOr("OTEL_TRACES_EXPORTER", string(ExporterNone))),
		Metrics:        Exporter(envOr("OTEL_METRICS_EXPORTER", string(ExporterPrometheus))),
		OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Providers holds the SDK providers created by Init.
//
// Thread Safety: Safe for concurrent use. Shutdown must be called once.
type Providers struct {
	// Tracer is nil when traces are disabled.
	Tracer *sdktrace.TracerProvider

	// Meter is nil when metrics are disabled.
	Meter *sdkmetric.MeterProvider

	metrics http.Handler
}

// Init builds providers for cfg and installs them as the otel globals.
//
// Description:
//
//	Always installs the W3C trace-context and baggage propagators. A
//	provider is created and installed only for an enabled signal; disabled
//	signals keep the otel no-op globals.
//
// Inputs:
//
//	ctx - Context for exporter setup. Must not be nil.
//	cfg - Exporter selection.
//
// Outputs:
//
//	*Providers - Call Shutdown on exit to flush exporters.
//	error - ErrNilContext, or ErrUnknownExporter wrapped with the signal name,
//	  or an exporter construction error.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
	p := &Providers{}

	if cfg.Traces != ExporterNone {
		exp, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("traces: %w", err)
		}
		p.Tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.Tracer)
	}

	if cfg.Metrics != ExporterNone {
		reader, handler, err := newMetricReader(cfg)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("metrics: %w", err)
		}
		p.Meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		p.metrics = handler
		otel.SetMeterProvider(p.Meter)
	}
	return p, nil
}

// MetricsHandler returns the /metrics handler, or nil unless the Prometheus
// exporter is active.
func (p *Providers) MetricsHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.metrics
}

// Shutdown flushes and stops every provider. Errors are joined.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Tracer != nil {
		if err := p.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}
	if p.Meter != nil {
		if err := p.Meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Traces {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(output(cfg)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Traces)
	}
}

func newMetricReader(cfg Config) (sdkmetric.Reader, http.Handler, error) {
	switch cfg.Metrics {
	case ExporterPrometheus:
		exp, err := promexporter.New()
		if err != nil {
			return nil, nil, err
		}
		return exp, promhttp.Handler(), nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(output(cfg)))
		if err != nil {
			return nil, nil, err
		}
		var opts []sdkmetric.PeriodicReaderOption
		if cfg.MetricInterval > 0 {
			opts = append(opts, sdkmetric.WithInterval(cfg.MetricInterval))
		}
		return sdkmetric.NewPeriodicReader(exp, opts...), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Metrics)
	}
}

func output(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	return os.Stdout
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
