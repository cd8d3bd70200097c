package core

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"

// engineMetrics holds the engine instruments. They record into the provider
// given with WithMeterProvider, or the global one, which is a no-op unless
// installed.
type engineMetrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	detections   metric.Int64Counter
	commands     metric.Int64Counter
	rejected     metric.Int64Counter
	pending      metric.Int64ObservableGauge
	explored     metric.Int64ObservableGauge
}

func newEngineMetrics(e *Engine, mp metric.MeterProvider) (*engineMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)
	em := &engineMetrics{}

	var err error

	em.ticks, err = m.Int64Counter(
		"swarm.engine.ticks",
		metric.WithDescription("Total ticks completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	em.tickDuration, err = m.Float64Histogram(
		"swarm.engine.tick.duration",
		metric.WithDescription("Wall time spent computing one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	em.detections, err = m.Int64Counter(
		"swarm.engine.detections",
		metric.WithDescription("Detection events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating detection counter: %w", err)
	}

	em.commands, err = m.Int64Counter(
		"swarm.engine.commands",
		metric.WithDescription("Operator commands applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command counter: %w", err)
	}

	em.rejected, err = m.Int64Counter(
		"swarm.engine.commands.rejected",
		metric.WithDescription("Operator commands ignored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	em.pending, err = m.Int64ObservableGauge(
		"swarm.channel.commands.pending",
		metric.WithDescription("Commands waiting for the next tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending gauge: %w", err)
	}

	em.explored, err = m.Int64ObservableGauge(
		"swarm.regions.explored",
		metric.WithDescription("Regions marked explored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating explored gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(em.pending, int64(e.channel.commands.Len()))
			o.ObserveInt64(em.explored, int64(e.exploredCount()))
			return nil
		},
		em.pending, em.explored,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return em, nil
}

func (em *engineMetrics) commandApplied(ctx context.Context, kind string) {
	em.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", kind)))
}

func (em *engineMetrics) commandRejected(ctx context.Context, kind, reason string) {
	em.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", kind),
		attribute.String("reason", reason),
	))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAgent):
		return "unknown_agent"
	case errors.Is(err, ErrNothingToResolve):
		return "nothing_to_resolve"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	default:
		return "other"
	}
}
