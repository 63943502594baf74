package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ExceededError is returned in place of running a protected operation whose
// bucket is empty.
type ExceededError struct {
	Message    string
	BucketKey  string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s", e.BucketKey, e.Message)
}

// RetryAfterSeconds rounds up to whole seconds, never below one.
func (e *ExceededError) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

type guardKey struct{}

// guarded reports whether ctx is already inside an admitted operation.
func guarded(ctx context.Context) bool {
	v, _ := ctx.Value(guardKey{}).(bool)
	return v
}

func markGuarded(ctx context.Context) context.Context {
	return context.WithValue(ctx, guardKey{}, true)
}

// Interceptor applies registered policies in front of operations.
type Interceptor struct {
	capability Capability
	policies   *PolicyTable
	logger     *slog.Logger
}

func NewInterceptor(capability Capability, policies *PolicyTable, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	if capability == nil {
		capability = Disabled{Reason: "no capability configured"}
	}
	return &Interceptor{
		capability: capability,
		policies:   policies,
		logger:     logger.With("component", "ratelimit"),
	}
}

func (i *Interceptor) Capability() Capability {
	return i.capability
}

// Check takes one admission decision for operation and returns a context
// marked as admitted. Nested checks on that context are free. A denial is
// returned as *ExceededError.
func (i *Interceptor) Check(ctx context.Context, operation string) (context.Context, Decision, error) {
	if guarded(ctx) {
		return ctx, Decision{Allowed: true, Remaining: -1}, nil
	}

	enabled, ok := i.capability.(Enabled)
	if !ok {
		return markGuarded(ctx), Decision{Allowed: true, Remaining: -1}, nil
	}

	policy, ok := i.policies.Lookup(operation)
	if !ok {
		i.logger.Debug("No rate limit policy for operation", "operation", operation)
		return markGuarded(ctx), Decision{Allowed: true, Remaining: -1}, nil
	}

	var info *RequestInfo
	if ri, ok := RequestInfoFrom(ctx); ok {
		info = &ri
	} else {
		i.logger.Warn("No request details for rate limited operation", "operation", operation)
	}

	decision := enabled.Limiter.TryConsume(ctx, policy, info)
	if !decision.Allowed {
		i.logger.Warn("Rate limit exceeded",
			"operation", operation,
			"bucket_key", decision.BucketKey,
			"retry_after", decision.RetryAfter,
		)
		return ctx, decision, &ExceededError{
			Message:    policy.Message,
			BucketKey:  decision.BucketKey,
			RetryAfter: decision.RetryAfter,
		}
	}

	return markGuarded(ctx), decision, nil
}

// Guard runs fn only if operation is admitted. On the admitted path fn's
// result and error are returned unchanged.
func Guard[T any](ctx context.Context, i *Interceptor, operation string, fn func(context.Context) (T, error)) (T, error) {
	ctx, _, err := i.Check(ctx, operation)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}
