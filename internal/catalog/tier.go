package catalog

import "strings"

// Tier is a subscription level gating model visibility.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRanks = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 2,
}

// ParseTier normalizes a stored tier string, defaulting unknown values to free.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// Rank returns the tier's position in the free < pro < enterprise order.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Includes reports whether a subscriber at tier t may use entries visible at
// other. Higher tiers inherit everything visible to lower tiers.
func (t Tier) Includes(other Tier) bool {
	return t.Rank() >= other.Rank()
}
