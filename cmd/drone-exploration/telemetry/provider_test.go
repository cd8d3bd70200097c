package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, ok := p.MeterProvider().(noop.MeterProvider); !ok {
		t.Errorf("Expected no-op meter provider, got %T", p.MeterProvider())
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no-op shutdown, got %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Enabled: true, ExportInterval: time.Second}); err == nil {
		t.Error("Expected error without writer")
	}
	if _, err := New(Config{Enabled: true, Writer: &bytes.Buffer{}}); err == nil {
		t.Error("Expected error without export interval")
	}
}

func TestShutdownExportsRecordedMetrics(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "swarm-test",
		RunID:          "run-1",
		ExportInterval: time.Hour,
		Writer:         &buf,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	counter, err := p.MeterProvider().Meter("test").Int64Counter("swarm.test.counter")
	if err != nil {
		t.Fatalf("Failed to create counter: %v", err)
	}
	counter.Add(context.Background(), 4)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"swarm.test.counter", "swarm-test", "run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected export to contain %q, got %s", want, out)
		}
	}
}
