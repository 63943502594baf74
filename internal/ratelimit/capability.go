package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Capability is the outcome of the startup probe: either Enabled with a
// limiter or Disabled with a reason. The interceptor switches on it.
type Capability interface {
	capability()
}

type Enabled struct {
	Limiter *RateLimiter
}

type Disabled struct {
	Reason string
}

func (Enabled) capability()  {}
func (Disabled) capability() {}

// Pinger is the part of a Redis client the probe needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Probe checks once whether the bucket store is reachable. When it is not,
// the service starts without rate limiting if failOpen is set and refuses
// to start otherwise.
func Probe(ctx context.Context, pinger Pinger, limiter *RateLimiter, failOpen bool) (Capability, error) {
	if err := pinger.Ping(ctx).Err(); err != nil {
		if !failOpen {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return Disabled{Reason: fmt.Sprintf("store unreachable at startup: %v", err)}, nil
	}
	return Enabled{Limiter: limiter}, nil
}

// Mode names a capability for status output.
func Mode(c Capability) string {
	switch c.(type) {
	case Enabled:
		return "enabled"
	default:
		return "disabled"
	}
}
