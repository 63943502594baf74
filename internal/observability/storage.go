package observability

import (
	"context"
	"errors"
	"productservice/internal/models"
	"productservice/internal/storage"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation. A product that is not
// found is recorded as a normal outcome, not an error.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("productservice/storage")
	meter := otel.Meter("productservice/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Products(ctx context.Context) ([]*models.Product, error) {
	ctx, span := s.startSpan(ctx, "Products")
	start := time.Now()
	result, err := s.inner.Products(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("product.count", len(result)))
	}
	s.record(ctx, span, "Products", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "GetProduct", attribute.String("product_id", id))
	start := time.Now()
	result, err := s.inner.GetProduct(ctx, id)
	s.record(ctx, span, "GetProduct", start, err)
	return result, err
}

func (s *InstrumentedStorage) CreateProduct(ctx context.Context, product *models.Product) error {
	ctx, span := s.startSpan(ctx, "CreateProduct", attribute.String("product_id", product.ID))
	start := time.Now()
	err := s.inner.CreateProduct(ctx, product)
	s.record(ctx, span, "CreateProduct", start, err)
	return err
}

func (s *InstrumentedStorage) UpdateProduct(ctx context.Context, product *models.Product) error {
	ctx, span := s.startSpan(ctx, "UpdateProduct", attribute.String("product_id", product.ID))
	start := time.Now()
	err := s.inner.UpdateProduct(ctx, product)
	s.record(ctx, span, "UpdateProduct", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteProduct(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteProduct", attribute.String("product_id", id))
	start := time.Now()
	err := s.inner.DeleteProduct(ctx, id)
	s.record(ctx, span, "DeleteProduct", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
