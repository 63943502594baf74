package product

import (
	"productservice/internal/models"
	"productservice/internal/ratelimit"
)

// Operation names used as keys in the rate limit policy table.
const (
	OpList   = "products.list"
	OpGet    = "products.get"
	OpCreate = "products.create"
	OpUpdate = "products.update"
	OpDelete = "products.delete"
)

var policies = map[string]ratelimit.Policy{
	OpList: {
		Strategy: ratelimit.StrategyIP,
		Tier:     models.TierDefault,
		Message:  "Too many product list requests. Please try again later.",
	},
	OpGet: {
		Strategy: ratelimit.StrategyIP,
		Tier:     models.TierDefault,
		Message:  "Too many product detail requests. Please try again later.",
	},
	OpCreate: {
		Strategy: ratelimit.StrategyStrict,
		Tier:     models.TierStrict,
		Message:  "Too many product creation requests. Please try again later.",
	},
	OpUpdate: {
		Strategy: ratelimit.StrategyUser,
		Tier:     models.TierDefault,
		Message:  "Too many product update requests. Please try again later.",
	},
	OpDelete: {
		Strategy: ratelimit.StrategyUser,
		Tier:     models.TierDefault,
		Message:  "Too many delete operations. Please try again later.",
	},
}

// RegisterPolicies attaches the product operation policies to table. Any
// misconfiguration surfaces here, at startup.
func RegisterPolicies(table *ratelimit.PolicyTable) error {
	for _, op := range []string{OpList, OpGet, OpCreate, OpUpdate, OpDelete} {
		if err := table.Register(op, policies[op]); err != nil {
			return err
		}
	}
	return nil
}
