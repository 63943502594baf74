package ratelimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeAllowed  = "allowed"
	outcomeDenied   = "denied"
	outcomeDegraded = "degraded"
)

type limiterMetrics struct {
	decisions metric.Int64Counter
	duration  metric.Float64Histogram
}

func newLimiterMetrics() (*limiterMetrics, error) {
	meter := otel.Meter("productservice/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by tier and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"ratelimit.store.duration",
		metric.WithDescription("Duration of bucket store round-trips in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &limiterMetrics{decisions: decisions, duration: duration}, nil
}

func (m *limiterMetrics) record(ctx context.Context, tier, outcome string, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	m.decisions.Add(ctx, 1, attrs)
}
