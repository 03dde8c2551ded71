// AngelaMos | 2026
// features.go

package billing

import (
	"strconv"
	"strings"
)

// Limit is a per-plan usage ceiling. Unlimited marks a limit with no cap.
type Limit int64

// Unlimited is the sentinel for limits with no ceiling.
const Unlimited Limit = -1

// MarshalJSON renders Unlimited as the string "unlimited" and every other
// value as a plain number.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l == Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.FormatInt(int64(l), 10)), nil
}

// PlanAccess describes what a single plan grants.
type PlanAccess struct {
	Features []string         `json:"features"`
	Limits   map[string]Limit `json:"limits"`
}

// FeatureTable maps lowercase plan names to their entitlements.
type FeatureTable map[string]PlanAccess

// DefaultFeatureTable returns the built-in plan entitlement matrix.
func DefaultFeatureTable() FeatureTable {
	return FeatureTable{
		"starter": {
			Features: []string{"basic_analytics", "community_support"},
			Limits: map[string]Limit{
				"projects":   3,
				"storage_gb": 1,
			},
		},
		"pro": {
			Features: []string{
				"basic_analytics",
				"advanced_analytics",
				"priority_support",
				"custom_integrations",
			},
			Limits: map[string]Limit{
				"projects":   Unlimited,
				"storage_gb": 50,
			},
		},
		"enterprise": {
			Features: []string{
				"basic_analytics",
				"advanced_analytics",
				"priority_support",
				"custom_integrations",
				"dedicated_support",
				"advanced_security",
			},
			Limits: map[string]Limit{
				"projects":   Unlimited,
				"storage_gb": Unlimited,
			},
		},
	}
}

// access resolves the entitlements for a plan name, falling back to the
// starter tier for unknown plans so lookups always fail closed to free.
func (t FeatureTable) access(planName string) PlanAccess {
	if a, ok := t[strings.ToLower(planName)]; ok {
		return a
	}
	return t["starter"]
}

// HasFeature reports whether the named plan includes a feature.
func (t FeatureTable) HasFeature(planName, feature string) bool {
	for _, f := range t.access(planName).Features {
		if f == feature {
			return true
		}
	}
	return false
}

// UsageLimit returns the plan's ceiling for a limit key. Unknown keys
// return zero, denying usage.
func (t FeatureTable) UsageLimit(planName, key string) Limit {
	return t.access(planName).Limits[key]
}

// HasReachedLimit reports whether usage meets or exceeds the plan's
// ceiling for a limit key. Unlimited never trips.
func (t FeatureTable) HasReachedLimit(planName, key string, usage int64) bool {
	limit := t.UsageLimit(planName, key)
	if limit == Unlimited {
		return false
	}
	return usage >= int64(limit)
}
