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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg := DefaultConfig()

	if cfg.ServiceName != "aleutian-mcmc" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "aleutian-mcmc")
	}
	if cfg.Traces != ExporterNone {
		t.Errorf("Traces = %q, want %q", cfg.Traces, ExporterNone)
	}
	if cfg.Metrics != ExporterPrometheus {
		t.Errorf("Metrics = %q, want %q", cfg.Metrics, ExporterPrometheus)
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4317")
	}
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("ALEUTIAN_ENV", "ci")
	cfg := DefaultConfig()
	if cfg.Traces != ExporterStdout {
		t.Errorf("Traces = %q, want %q", cfg.Traces, ExporterStdout)
	}
	if cfg.Environment != "ci" {
		t.Errorf("Environment = %q, want ci", cfg.Environment)
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig())
	if err != ErrNilContext {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Traces = ExporterNone
	cfg.Metrics = ExporterNone

	prov, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if prov.Tracer != nil || prov.Meter != nil {
		t.Error("disabled signals should not create providers")
	}
	if prov.MetricsHandler() != nil {
		t.Error("MetricsHandler() should be nil without prometheus")
	}
	if err := prov.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Traces = ExporterStdout
	cfg.Metrics = ExporterNone
	cfg.Output = &out

	prov, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "mcmc.Chain")
	span.End()

	if err := prov.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(out.String(), "mcmc.Chain") {
		t.Errorf("stdout exporter output missing span name: %s", out.String())
	}
}

func TestInit_StdoutMetrics(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Traces = ExporterNone
	cfg.Metrics = ExporterStdout
	cfg.Output = &out

	prov, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	counter, err := otel.Meter("test").Int64Counter("mcmc_test_total")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 3)

	if err := prov.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(out.String(), "mcmc_test_total") {
		t.Errorf("stdout metric output missing instrument: %s", out.String())
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Traces = "carrier-pigeon"
	cfg.Metrics = ExporterNone

	_, err := Init(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("error = %v, want ErrUnknownExporter", err)
	}
	if !strings.Contains(err.Error(), "unknown exporter type") {
		t.Errorf("error = %v, should mention unknown exporter type", err)
	}

	cfg.Traces = ExporterNone
	cfg.Metrics = "graphite"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("metrics error = %v, want ErrUnknownExporter", err)
	}
}

func TestInit_Prometheus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Traces = ExporterNone
	cfg.Metrics = ExporterPrometheus

	prov, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = prov.Shutdown(context.Background()) }()

	handler := prov.MetricsHandler()
	if handler == nil {
		t.Fatal("MetricsHandler() = nil with prometheus exporter")
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing default Go collector")
	}
}

func TestProviders_NilSafe(t *testing.T) {
	var p *Providers
	if p.MetricsHandler() != nil {
		t.Error("nil Providers should have no handler")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Providers Shutdown() error = %v", err)
	}
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LoggerWithTrace(context.Background(), logger).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without span has trace_id: %s", buf.String())
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	buf.Reset()
	LoggerWithTrace(ctx, logger).Info("traced")
	out := buf.String()
	if !strings.Contains(out, span.SpanContext().TraceID().String()) {
		t.Errorf("log = %s, want trace id %s", out, span.SpanContext().TraceID())
	}
	if !strings.Contains(out, "span_id") {
		t.Errorf("log = %s, want span_id", out)
	}
	if got := TraceID(ctx); got != span.SpanContext().TraceID().String() {
		t.Errorf("TraceID() = %q", got)
	}
	if TraceID(context.Background()) != "" {
		t.Error("TraceID() of empty context should be empty")
	}
	if LoggerWithTrace(ctx, nil) == nil {
		t.Error("LoggerWithTrace(ctx, nil) = nil, want default logger")
	}
}

func TestRecordError_NilSafe(t *testing.T) {
	RecordError(nil, errors.New("boom"))
	SetSpanOK(nil)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()
}
