// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up OpenTelemetry for chain runs.
//
// Init builds tracer and meter providers from a Config and installs them
// globally, so the otel.Tracer and otel.Meter handles held by the chain
// package export through them. With the Prometheus metric exporter the otel
// instruments land in the default Prometheus registry next to the chain's
// promauto collectors, and Providers.MetricsHandler serves both.
//
//	prov, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer prov.Shutdown(context.Background())
//
// DefaultConfig reads OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER,
// OTEL_EXPORTER_OTLP_ENDPOINT and ALEUTIAN_ENV.
package telemetry
