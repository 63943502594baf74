package invalidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"productservice/internal/cache"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Evictor is the part of the result cache the coordinator drives.
type Evictor interface {
	Evict(ctx context.Context, ids ...string) error
	EvictAll(ctx context.Context) (int, error)
}

// Coordinator listens on the invalidation channel for the lifetime of the
// process and evicts the entries each event makes stale.
type Coordinator struct {
	bus     Bus
	channel string
	cache   Evictor
	logger  *slog.Logger
	handled metric.Int64Counter

	mu     sync.Mutex
	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoordinator(bus Bus, channel string, evictor Evictor, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	handled, err := otel.Meter("productservice/invalidation").Int64Counter(
		"invalidation.messages",
		metric.WithDescription("Invalidation messages received by result"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invalidation metrics: %w", err)
	}

	return &Coordinator{
		bus:     bus,
		channel: channel,
		cache:   evictor,
		logger:  logger.With("component", "invalidation", "channel", channel),
		handled: handled,
	}, nil
}

// Start subscribes and begins processing messages in the background. The
// subscription is live when Start returns.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		return errors.New("coordinator already started")
	}

	sub, err := c.bus.Subscribe(ctx, c.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sub = sub
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.listen(runCtx, sub, c.done)

	c.logger.Info("Cache coordinator subscribed")
	return nil
}

// Stop ends the subscription and waits for the listener to exit.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	sub, cancel, done := c.sub, c.cancel, c.done
	c.sub, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}

	cancel()
	err := sub.Close()
	<-done
	c.logger.Info("Cache coordinator stopped")
	return err
}

func (c *Coordinator) listen(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				if ctx.Err() == nil {
					c.logger.Error("Invalidation subscription closed unexpectedly")
				}
				return
			}
			// Errors are logged inside; one bad message never stops the loop.
			_ = c.HandleMessage(ctx, payload)
		}
	}
}

// HandleMessage applies one wire payload. Malformed payloads and unknown
// event types are logged and dropped without touching the cache.
func (c *Coordinator) HandleMessage(ctx context.Context, payload string) error {
	event, err := Parse(payload)
	if err != nil {
		c.logger.Warn("Dropping invalidation message", "payload", payload, "error", err)
		c.record(ctx, resultFor(err))
		return err
	}

	if err := c.InvalidateEntity(ctx, event.EntityID); err != nil {
		c.logger.Warn("Failed to apply invalidation event", "type", event.Type, "entity_id", event.EntityID, "error", err)
		c.record(ctx, "error")
		return err
	}

	c.logger.Info("Invalidated cache entries", "type", event.Type, "entity_id", event.EntityID)
	c.record(ctx, "applied")
	return nil
}

// InvalidateEntity evicts id and the aggregate entry that may contain it.
func (c *Coordinator) InvalidateEntity(ctx context.Context, id string) error {
	return c.cache.Evict(ctx, id, cache.AllKey)
}

// InvalidateAll clears the whole cache namespace.
func (c *Coordinator) InvalidateAll(ctx context.Context) (int, error) {
	n, err := c.cache.EvictAll(ctx)
	if err != nil {
		return n, err
	}
	c.logger.Info("Invalidated all cache entries", "count", n)
	return n, nil
}

func (c *Coordinator) record(ctx context.Context, result string) {
	c.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, ErrUnknownEventType):
		return "unknown_type"
	default:
		return "error"
	}
}
