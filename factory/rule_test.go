package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/factory"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
)

// =============================================================================
// PARSING AND DEFAULTS
// =============================================================================

func TestParseRule_FullDefinition(t *testing.T) {
	// GIVEN: A complete JSON rule with thresholds, bounds, and a warehouse
	// WHEN: Parsing it
	// THEN: Every field maps onto the Go rule

	f := factory.NewRuleFactory()

	rule, err := f.ParseRule(`{
		"id": "rule-widget-main",
		"item_id": "widget-a",
		"warehouse_id": "wh-main",
		"formula": "dynamic",
		"auto_generate": true,
		"require_approval": true,
		"priority": "high",
		"reorder_point": 50,
		"safety_stock": 20,
		"min_order_qty": 10,
		"max_order_qty": 500,
		"order_multiple": 25,
		"lead_time_buffer_days": 3
	}`)
	require.NoError(t, err)

	assert.Equal(t, "rule-widget-main", rule.ID)
	assert.Equal(t, ledger.ItemID("widget-a"), rule.ItemID)
	require.NotNil(t, rule.WarehouseID)
	assert.Equal(t, ledger.WarehouseID("wh-main"), *rule.WarehouseID)
	assert.Equal(t, reorder.KindDynamic, rule.Kind)
	assert.Equal(t, reorder.PriorityHigh, rule.Priority)
	require.NotNil(t, rule.ReorderPoint)
	assert.True(t, rule.ReorderPoint.Equal(decimal.NewFromInt(50)))
	assert.True(t, rule.MaxOrderQty.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 3, rule.LeadTimeBuffer)
	assert.True(t, rule.RequireApproval)
	assert.True(t, rule.Active, "active defaults to true")
}

func TestParseRule_MinimalDefinitionGetsDefaults(t *testing.T) {
	// GIVEN: A rule naming only an item
	// WHEN: Parsing it
	// THEN: Dynamic formula, medium priority, active, global scope

	f := factory.NewRuleFactory()

	rule, err := f.ParseRule(`{"id": "r-1", "item_id": "widget-a"}`)
	require.NoError(t, err)

	assert.Equal(t, reorder.KindDynamic, rule.Kind)
	assert.Equal(t, reorder.PriorityMedium, rule.Priority)
	assert.Nil(t, rule.WarehouseID)
	assert.True(t, rule.Active)
}

func TestParseRule_ExplicitlyInactive(t *testing.T) {
	// GIVEN: A rule with "active": false
	// WHEN: Parsing it
	// THEN: The false survives the default

	f := factory.NewRuleFactory()

	rule, err := f.ParseRule(`{"id": "r-1", "item_id": "widget-a", "active": false}`)
	require.NoError(t, err)
	assert.False(t, rule.Active)
}

func TestParseRule_MalformedJSON(t *testing.T) {
	f := factory.NewRuleFactory()

	_, err := f.ParseRule(`{"id": "r-1",`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse rule JSON")
}

// =============================================================================
// VALIDATION AT PARSE TIME
// =============================================================================

func TestParseRule_VariantParametersValidated(t *testing.T) {
	// GIVEN: Rules whose variant parameters are broken
	// WHEN: Parsing them
	// THEN: Validation refuses at parse time, not at evaluation time

	f := factory.NewRuleFactory()

	cases := map[string]string{
		"eoq without parameters": `{"id": "r-1", "item_id": "widget-a", "formula": "eoq"}`,
		"negative eoq cost": `{"id": "r-1", "item_id": "widget-a", "formula": "eoq",
			"eoq": {"annual_demand": 5000, "ordering_cost": -75, "holding_cost": 3}}`,
		"min above max": `{"id": "r-1", "item_id": "widget-a",
			"min_order_qty": 100, "max_order_qty": 50}`,
		"missing item": `{"id": "r-1"}`,
	}
	for name, jsonStr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseRule(jsonStr)
			require.ErrorIs(t, err, reorder.ErrRuleInvalid)
		})
	}
}

func TestParseRule_EOQParameters(t *testing.T) {
	f := factory.NewRuleFactory()

	rule, err := f.ParseRule(`{"id": "r-1", "item_id": "widget-a", "formula": "eoq",
		"eoq": {"annual_demand": 5000, "ordering_cost": 75, "holding_cost": 3}}`)
	require.NoError(t, err)

	assert.Equal(t, reorder.KindEOQ, rule.Kind)
	require.NotNil(t, rule.EOQ)
	assert.True(t, rule.EOQ.AnnualDemand.Equal(decimal.NewFromInt(5000)))
	assert.True(t, rule.EOQ.HoldingCost.Equal(decimal.NewFromInt(3)))
}

// =============================================================================
// ROUND TRIP AND PRESETS
// =============================================================================

func TestToJSON_RoundTripPreservesRule(t *testing.T) {
	// GIVEN: A parsed seasonal rule with bounds and overrides
	// WHEN: Converting back to JSON and parsing again
	// THEN: The second parse yields the same rule

	f := factory.NewRuleFactory()

	original, err := f.ParseRule(`{
		"id": "r-1", "item_id": "widget-a", "warehouse_id": "wh-main",
		"formula": "seasonal", "priority": "critical",
		"reorder_point": 50, "safety_stock": 20, "fixed_qty": 80,
		"min_order_qty": 10, "order_multiple": 5,
		"seasonal_multiplier": 1.5, "lead_time_buffer_days": 2
	}`)
	require.NoError(t, err)

	reparsed, err := f.FromJSON(f.ToJSON(original))
	require.NoError(t, err)

	assert.Equal(t, original.Kind, reparsed.Kind)
	assert.Equal(t, original.Priority, reparsed.Priority)
	assert.True(t, original.SeasonalMultiplier.Equal(reparsed.SeasonalMultiplier))
	require.NotNil(t, reparsed.FixedQty)
	assert.True(t, original.FixedQty.Equal(*reparsed.FixedQty))
	assert.Equal(t, original.LeadTimeBuffer, reparsed.LeadTimeBuffer)
	require.NotNil(t, reparsed.WarehouseID)
	assert.Equal(t, *original.WarehouseID, *reparsed.WarehouseID)
}

func TestPresets_ParseClean(t *testing.T) {
	// GIVEN: The two preset builders
	// WHEN: Parsing their output
	// THEN: Both produce valid rules with the advertised shapes

	f := factory.NewRuleFactory()

	dynamic, err := f.ParseRule(f.DynamicRuleJSON("r-dyn", "widget-a", 50, 20))
	require.NoError(t, err)
	assert.Equal(t, reorder.KindDynamic, dynamic.Kind)
	assert.True(t, dynamic.RequireApproval)
	require.NotNil(t, dynamic.SafetyStock)
	assert.True(t, dynamic.SafetyStock.Equal(decimal.NewFromInt(20)))

	fixed, err := f.ParseRule(f.FixedRuleJSON("r-fix", "widget-a", 50, 100))
	require.NoError(t, err)
	assert.Equal(t, reorder.KindFixed, fixed.Kind)
	require.NotNil(t, fixed.FixedQty)
	assert.True(t, fixed.FixedQty.Equal(decimal.NewFromInt(100)))
}
