package types

import (
	"strings"

	"github.com/samber/lo"
)

// Tier is the ordinal plan level used for access comparisons.
type Tier string

const (
	TierFree    Tier = "free"
	TierCore    Tier = "core"
	TierDaily   Tier = "daily"
	TierMax     Tier = "max"
	TierUnknown Tier = "unknown"
)

var tierRanks = map[Tier]int{
	TierCore:  1,
	TierDaily: 2,
	TierMax:   3,
}

// Rank returns the ordinal of a paid tier. Free, unknown and malformed tiers rank 0,
// below every paid tier.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// ParseTier maps a tier name to its Tier. Names outside the paid tiers and "free"
// yield TierUnknown.
func ParseTier(name string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(name)))
	if t == TierFree {
		return TierFree
	}
	if _, ok := tierRanks[t]; ok {
		return t
	}
	return TierUnknown
}

// Plan binds a processor price id to a tier.
type Plan struct {
	PriceID string `json:"price_id" mapstructure:"price_id" validate:"required"`
	Tier    Tier   `json:"tier" mapstructure:"tier" validate:"required,oneof=core daily max"`
	// Name is the display name shown in the member area and admin panel.
	Name string `json:"name" mapstructure:"name"`
}

// PlanCatalog is the explicit price id → plan table.
type PlanCatalog struct {
	byPrice map[string]*Plan
}

func NewPlanCatalog(plans []*Plan) *PlanCatalog {
	return &PlanCatalog{
		byPrice: lo.SliceToMap(lo.Compact(plans), func(p *Plan) (string, *Plan) {
			return p.PriceID, p
		}),
	}
}

// Lookup returns the plan configured for priceID.
func (c *PlanCatalog) Lookup(priceID string) (*Plan, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.byPrice[priceID]
	return p, ok
}

// TierFor returns the tier of priceID, TierUnknown when the price is not in the catalog.
func (c *PlanCatalog) TierFor(priceID string) Tier {
	if p, ok := c.Lookup(priceID); ok {
		return ParseTier(string(p.Tier))
	}
	return TierUnknown
}

// CachedTierFor is the value stored on the user profile: unknown prices fall back to free.
func (c *PlanCatalog) CachedTierFor(priceID string) Tier {
	t := c.TierFor(priceID)
	if t == TierUnknown {
		return TierFree
	}
	return t
}

func (c *PlanCatalog) Plans() []*Plan {
	if c == nil {
		return nil
	}
	return lo.Values(c.byPrice)
}
