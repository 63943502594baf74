package ratelimit

import (
	"fmt"
	"productservice/internal/models"
	"sort"
	"sync"
)

// Strategy selects which request attribute a bucket is keyed on.
type Strategy string

const (
	StrategyIP       Strategy = "IP"
	StrategyUser     Strategy = "USER"
	StrategyEndpoint Strategy = "ENDPOINT"
	StrategyCombined Strategy = "COMBINED"
	StrategyCustom   Strategy = "CUSTOM"
	// StrategyStrict keys by caller IP and always draws from the strict tier.
	StrategyStrict Strategy = "STRICT"
)

const DefaultMessage = "Rate limit exceeded. Please try again later."

// Policy describes how one operation is limited. Policies are constant for
// the life of the process.
type Policy struct {
	Strategy Strategy
	// Key, when set, is used verbatim as the bucket key whatever the strategy.
	Key     string
	Tokens  int64
	Message string
	Tier    string
}

// ConfigurationError reports a policy or tier that can never be enforced.
// It is raised when the policy is registered, never while serving a request.
type ConfigurationError struct {
	Operation string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Operation == "" {
		return "rate limit configuration: " + e.Reason
	}
	return fmt.Sprintf("rate limit configuration for %s: %s", e.Operation, e.Reason)
}

// withDefaults fills the optional fields. STRICT always uses the strict tier.
func (p Policy) withDefaults() Policy {
	if p.Strategy == "" {
		p.Strategy = StrategyIP
	}
	if p.Tokens == 0 {
		p.Tokens = 1
	}
	if p.Message == "" {
		p.Message = DefaultMessage
	}
	if p.Strategy == StrategyStrict {
		p.Tier = models.TierStrict
	}
	if p.Tier == "" {
		p.Tier = models.TierDefault
	}
	return p
}

func (p Policy) validate(registry *Registry) error {
	switch p.Strategy {
	case StrategyIP, StrategyUser, StrategyEndpoint, StrategyCombined, StrategyStrict:
	case StrategyCustom:
		if p.Key == "" {
			return &ConfigurationError{Reason: "CUSTOM strategy requires an explicit key"}
		}
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown strategy %q", p.Strategy)}
	}

	if p.Tokens < 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("token cost must be at least 1, got %d", p.Tokens)}
	}

	tier, ok := registry.Get(p.Tier)
	if !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown tier %q", p.Tier)}
	}
	for _, bw := range tier.Bandwidths {
		if p.Tokens > bw.Capacity {
			return &ConfigurationError{Reason: fmt.Sprintf("token cost %d exceeds capacity %d of tier %q", p.Tokens, bw.Capacity, p.Tier)}
		}
	}
	return nil
}

// PolicyTable maps operation names to their policies. Registration happens
// at startup; lookups are safe from any goroutine.
type PolicyTable struct {
	registry *Registry

	mu       sync.RWMutex
	policies map[string]Policy
}

func NewPolicyTable(registry *Registry) *PolicyTable {
	return &PolicyTable{
		registry: registry,
		policies: make(map[string]Policy),
	}
}

// Register validates p and attaches it to operation. The stored policy has
// its defaults filled in.
func (t *PolicyTable) Register(operation string, p Policy) error {
	p = p.withDefaults()
	if err := p.validate(t.registry); err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Operation = operation
		}
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.policies[operation]; exists {
		return &ConfigurationError{Operation: operation, Reason: "policy already registered"}
	}
	t.policies[operation] = p
	return nil
}

func (t *PolicyTable) Lookup(operation string) (Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[operation]
	return p, ok
}

// Operations lists registered operation names in sorted order.
func (t *PolicyTable) Operations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ops := make([]string, 0, len(t.policies))
	for op := range t.policies {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
