// Package obs wires structured logging and metrics for cmd/pactctl.
// Library packages under internal/ return structured results rather than
// emitting metrics, and do not log, with one exception: internal/anchorhttp
// logs internal server errors through log/slog. This package is only ever
// imported from cmd/pactctl.
package obs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// NewLogger builds the CLI's structured logger: JSON on stderr, matching
// the teacher's log/slog usage in core/cmd/helm/main.go.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// Meter is the set of counters/histograms cmd/pactctl records against its
// seal/verify/recompute operations.
type Meter struct {
	operations metric.Int64Counter
	failures   metric.Int64Counter
	sealLatency metric.Float64Histogram
}

// NewMeter creates the CLI's metric instruments against the global
// otel MeterProvider. With no SDK/exporter wired (see SPEC_FULL's
// dropped-deps note), this records against the no-op provider in
// standalone runs and against whatever provider the embedding process
// installs otherwise.
func NewMeter() (*Meter, error) {
	m := otel.Meter("pactctl")

	operations, err := m.Int64Counter("pactctl.operations.total",
		metric.WithDescription("Total pactctl operations invoked, by command"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("pactctl.operations.failed",
		metric.WithDescription("pactctl operations that returned a non-zero exit code"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	sealLatency, err := m.Float64Histogram("pactctl.auditor_pack.seal_duration",
		metric.WithDescription("Auditor pack seal latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Meter{operations: operations, failures: failures, sealLatency: sealLatency}, nil
}

// RecordOperation increments the operation counter for a command, and the
// failure counter too when exitCode is non-zero.
func (m *Meter) RecordOperation(ctx context.Context, command string, exitCode int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("command", command))
	m.operations.Add(ctx, 1, attrs)
	if exitCode != 0 {
		m.failures.Add(ctx, 1, attrs)
	}
}

// RecordSealDuration records how long a single auditor-pack seal took.
func (m *Meter) RecordSealDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.sealLatency.Record(ctx, d.Seconds())
}
