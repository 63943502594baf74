package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultPublishTimeout = 2 * time.Second

// Publisher sends events on one channel. Publishing never blocks or fails
// the mutation that triggered it.
type Publisher struct {
	bus     Bus
	channel string
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewPublisher(bus Bus, channel string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		bus:     bus,
		channel: channel,
		timeout: timeout,
		logger:  logger.With("component", "invalidation", "channel", channel),
	}
}

// Publish encodes and sends e, waiting for the bus to accept it.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	payload, err := Format(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.bus.Publish(ctx, p.channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", payload, err)
	}
	p.logger.Debug("Published invalidation event", "event", payload)
	return nil
}

// PublishAsync sends e in the background. Failures are logged.
func (p *Publisher) PublishAsync(e Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Publish(context.Background(), e); err != nil {
			p.logger.Warn("Failed to publish invalidation event",
				"type", e.Type, "entity_id", e.EntityID, "error", err)
		}
	}()
}

// Wait blocks until every PublishAsync call has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
