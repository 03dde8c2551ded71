// AngelaMos | 2026
// features_test.go

package billing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureTableHasFeature(t *testing.T) {
	table := DefaultFeatureTable()

	assert.True(t, table.HasFeature("Starter", "basic_analytics"))
	assert.False(t, table.HasFeature("Starter", "advanced_analytics"))
	assert.True(t, table.HasFeature("Pro", "advanced_analytics"))
	assert.True(t, table.HasFeature("Enterprise", "dedicated_support"))
	assert.False(t, table.HasFeature("Pro", "dedicated_support"))
}

func TestFeatureTableUnknownPlanFallsBackToStarter(t *testing.T) {
	table := DefaultFeatureTable()

	assert.True(t, table.HasFeature("no-such-plan", "basic_analytics"))
	assert.False(t, table.HasFeature("no-such-plan", "advanced_analytics"))
	assert.Equal(t, Limit(3), table.UsageLimit("no-such-plan", "projects"))
}

func TestFeatureTableCaseInsensitivePlanNames(t *testing.T) {
	table := DefaultFeatureTable()

	assert.True(t, table.HasFeature("PRO", "priority_support"))
	assert.Equal(t, Unlimited, table.UsageLimit("Enterprise", "storage_gb"))
}

func TestHasReachedLimit(t *testing.T) {
	table := DefaultFeatureTable()

	assert.False(t, table.HasReachedLimit("Starter", "projects", 2))
	assert.True(t, table.HasReachedLimit("Starter", "projects", 3))
	assert.True(t, table.HasReachedLimit("Starter", "projects", 10))
	assert.False(t, table.HasReachedLimit("Pro", "projects", 1_000_000))

	// Unknown limit keys deny usage.
	assert.True(t, table.HasReachedLimit("Pro", "no_such_limit", 1))
}

func TestLimitMarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Limit{
		"projects":   Unlimited,
		"storage_gb": 50,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"projects":"unlimited","storage_gb":50}`, string(data))
}
