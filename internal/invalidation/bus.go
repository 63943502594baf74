package invalidation

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus is a one-to-many broadcast channel shared by every instance.
type Bus interface {
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe returns once the subscription is live, so messages published
	// after it returns are delivered.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Ping(ctx context.Context) error
}

// Subscription delivers payloads until it is closed.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// RedisBus is a Bus over Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client redis.UniversalClient
}

func NewRedisBus(client redis.UniversalClient) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel, payload string) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan string), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan string
	done chan struct{}
	once sync.Once
}

// forward copies payloads until the subscription is closed.
func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- msg.Payload:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// MemoryBus is an in-process Bus for single instance deployments and tests.
// A subscriber that falls more than its buffer behind loses messages, which
// matches the best effort contract of the Redis bus.
type MemoryBus struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{
		buffer: buffer,
		subs:   make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *MemoryBus) Publish(_ context.Context, channel, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[channel] {
		select {
		case sub.out <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{bus: b, channel: channel, out: make(chan string, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) Ping(context.Context) error {
	return nil
}

func (b *MemoryBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.channel][sub]; ok {
		delete(b.subs[sub.channel], sub)
		close(sub.out)
	}
}

type memorySubscription struct {
	bus     *MemoryBus
	channel string
	out     chan string
}

func (s *memorySubscription) Messages() <-chan string {
	return s.out
}

func (s *memorySubscription) Close() error {
	s.bus.remove(s)
	return nil
}
