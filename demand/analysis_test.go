package demand_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/demand"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*demand.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	engine := demand.NewEngine(store, store)
	engine.Now = func() time.Time { return testNow }
	return engine, store
}

// seedDailyIssues writes one issue of qty per day for the given number
// of trailing days (most recent first day is daysAgo=1).
func seedDailyIssues(t *testing.T, store *memory.Store, itemID string, qty int64, days int) {
	t.Helper()
	ctx := context.Background()
	for d := 1; d <= days; d++ {
		e := ledger.Entry{
			ItemID:      ledger.ItemID(itemID),
			WarehouseID: "wh-main",
			Quantity:    decimal.NewFromInt(-qty),
			Kind:        ledger.TxIssue,
			TxDate:      testNow.AddDate(0, 0, -d),
		}
		require.NoError(t, store.Append(ctx, e))
	}
}

// =============================================================================
// AVERAGE DAILY CONSUMPTION
// =============================================================================

func TestAverageDailyConsumption_SteadyDemand(t *testing.T) {
	// GIVEN: 10 days of issuing 5 units per day
	// WHEN: Computing the 90-day average
	// THEN: The divisor is the observed span, not the full window, so
	//       the rate is 5/day

	engine, store := newTestEngine(t)
	seedDailyIssues(t, store, "itm-1", 5, 10)

	adc, err := engine.AverageDailyConsumption(context.Background(), "itm-1", nil, 90)
	require.NoError(t, err)
	assert.True(t, adc.Equal(decimal.NewFromInt(5)), "expected 5/day, got %s", adc)
}

func TestAverageDailyConsumption_OnlyIssuesCount(t *testing.T) {
	// GIVEN: Issues plus receipts and adjustments in the window
	// WHEN: Computing consumption
	// THEN: Receipts and adjustments are ignored

	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedDailyIssues(t, store, "itm-1", 3, 5)

	receipt := ledger.Entry{
		ItemID: "itm-1", WarehouseID: "wh-main",
		Quantity: decimal.NewFromInt(500), Kind: ledger.TxReceipt,
		TxDate: testNow.AddDate(0, 0, -2),
	}
	adjustment := ledger.Entry{
		ItemID: "itm-1", WarehouseID: "wh-main",
		Quantity: decimal.NewFromInt(-40), Kind: ledger.TxAdjustment,
		TxDate: testNow.AddDate(0, 0, -2),
	}
	require.NoError(t, store.Append(ctx, receipt))
	require.NoError(t, store.Append(ctx, adjustment))

	adc, err := engine.AverageDailyConsumption(ctx, "itm-1", nil, 90)
	require.NoError(t, err)
	assert.True(t, adc.Equal(decimal.NewFromInt(3)), "expected 3/day, got %s", adc)
}

func TestAverageDailyConsumption_ZeroHistoryFallsBackToCategory(t *testing.T) {
	// GIVEN: A new item with no issues, in a category with one active
	//        peer consuming 4/day
	// WHEN: Computing consumption for the new item
	// THEN: The peer's rate stands in

	engine, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, store.SaveItem(ctx, catalog.Item{ID: "itm-new", CategoryID: "cat-1", Active: true}))
	require.NoError(t, store.SaveItem(ctx, catalog.Item{ID: "itm-peer", CategoryID: "cat-1", Active: true}))
	seedDailyIssues(t, store, "itm-peer", 4, 10)

	adc, err := engine.AverageDailyConsumption(ctx, "itm-new", nil, 90)
	require.NoError(t, err)
	assert.True(t, adc.Equal(decimal.NewFromInt(4)), "expected peer rate 4/day, got %s", adc)
}

func TestAverageDailyConsumption_NoHistoryNoPeers_Zero(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, store.SaveItem(ctx, catalog.Item{ID: "itm-lonely", CategoryID: "cat-x", Active: true}))

	adc, err := engine.AverageDailyConsumption(ctx, "itm-lonely", nil, 90)
	require.NoError(t, err)
	assert.True(t, adc.IsZero())
}

// =============================================================================
// VARIABILITY
// =============================================================================

func TestDemandVariability_SteadyDemandHasZeroCV(t *testing.T) {
	// GIVEN: 14 days of identical daily consumption, today included
	// WHEN: Computing variability
	// THEN: StdDev and CV are zero

	engine, store := newTestEngine(t)
	ctx := context.Background()
	for d := 0; d < 14; d++ {
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-5), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, 0, -d),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	v, err := engine.DemandVariability(ctx, "itm-1", nil, 30)
	require.NoError(t, err)
	assert.Equal(t, 14, v.DaysObserved)
	assert.True(t, v.StdDev.IsZero(), "steady demand, got stddev %s", v.StdDev)
	assert.True(t, v.CV.IsZero())
	assert.True(t, v.Mean.Equal(decimal.NewFromInt(5)))
}

func TestDemandVariability_TooFewDays_ZeroValue(t *testing.T) {
	// GIVEN: Only 4 days of history
	// WHEN: Computing variability
	// THEN: Fewer than 7 observed days yields no statistics

	engine, store := newTestEngine(t)
	seedDailyIssues(t, store, "itm-1", 5, 4)

	v, err := engine.DemandVariability(context.Background(), "itm-1", nil, 30)
	require.NoError(t, err)
	assert.True(t, v.Mean.IsZero())
	assert.True(t, v.CV.IsZero())
}

func TestDemandVariability_GapsAreZeroConsumptionDays(t *testing.T) {
	// GIVEN: Issues every other day
	// WHEN: Computing variability
	// THEN: Quiet days count as zero observations, so CV is positive

	engine, store := newTestEngine(t)
	ctx := context.Background()
	for d := 1; d <= 14; d += 2 {
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-10), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, 0, -d),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	v, err := engine.DemandVariability(ctx, "itm-1", nil, 30)
	require.NoError(t, err)
	assert.True(t, v.CV.IsPositive(), "alternating demand should be noisy")
}

// =============================================================================
// FORECAST
// =============================================================================

func TestForecastDemand_FlatProjectionWithConfidence(t *testing.T) {
	// GIVEN: 30 days of steady 5/day consumption
	// WHEN: Forecasting 30 days ahead
	// THEN: Quantity is 150 and confidence is high (CV < 0.3)

	engine, store := newTestEngine(t)
	seedDailyIssues(t, store, "itm-1", 5, 30)

	f, err := engine.ForecastDemand(context.Background(), "itm-1", nil, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, f.ForecastDays)
	assert.True(t, f.Quantity.Equal(decimal.NewFromInt(150)), "expected 150, got %s", f.Quantity)
	assert.Equal(t, demand.ConfidenceHigh, f.Confidence)
}

func TestForecastDemand_NoisyDemandLowersConfidence(t *testing.T) {
	// GIVEN: Rare large spikes with long quiet stretches
	// WHEN: Forecasting
	// THEN: CV exceeds 0.7 and confidence is low

	engine, store := newTestEngine(t)
	ctx := context.Background()
	for _, d := range []int{2, 30, 58} {
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-100), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, 0, -d),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	f, err := engine.ForecastDemand(ctx, "itm-1", nil, 30)
	require.NoError(t, err)
	assert.Equal(t, demand.ConfidenceLow, f.Confidence)
}

// =============================================================================
// SEASONAL PATTERN
// =============================================================================

func TestSeasonalPattern_DetectedAcrossMonths(t *testing.T) {
	// GIVEN: Eight months of history where one month consumed triple
	// WHEN: Building the seasonal pattern
	// THEN: The pattern is present and the hot month's multiplier > 1

	engine, store := newTestEngine(t)
	ctx := context.Background()

	for m := 1; m <= 8; m++ {
		qty := int64(10)
		if m == 3 {
			qty = 30
		}
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-qty), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, -m, 0),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	p, err := engine.SeasonalPatternFor(ctx, "itm-1", nil)
	require.NoError(t, err)
	assert.True(t, p.Present)
	assert.GreaterOrEqual(t, p.MonthsWithData, 6)

	hotMonth := testNow.AddDate(0, -3, 0).Month()
	assert.True(t, p.MultiplierFor(hotMonth).GreaterThan(decimal.NewFromInt(1)))
}

func TestSeasonalPattern_TooFewMonths_NotPresent(t *testing.T) {
	// GIVEN: Only three months of history
	// WHEN: Building the pattern
	// THEN: No pattern, and MultiplierFor defaults to 1

	engine, store := newTestEngine(t)
	ctx := context.Background()
	for m := 1; m <= 3; m++ {
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-10), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, -m, 0),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	p, err := engine.SeasonalPatternFor(ctx, "itm-1", nil)
	require.NoError(t, err)
	assert.False(t, p.Present)
	assert.True(t, p.MultiplierFor(time.December).Equal(decimal.NewFromInt(1)))
}

// =============================================================================
// TREND
// =============================================================================

func TestConsumptionTrend_Increasing(t *testing.T) {
	// GIVEN: 6 months where the recent half consumes double
	// WHEN: Computing the trend
	// THEN: Direction is increasing with ~100% change

	engine, store := newTestEngine(t)
	ctx := context.Background()

	for m := 1; m <= 6; m++ {
		qty := int64(10)
		if m <= 3 {
			qty = 20 // recent half
		}
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-qty), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, -m, 2),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	trend, err := engine.ConsumptionTrend(ctx, "itm-1", nil, 6)
	require.NoError(t, err)
	assert.Equal(t, demand.TrendIncreasing, trend.Direction)
	assert.True(t, trend.ChangePercent.GreaterThan(decimal.NewFromInt(10)))
}

func TestConsumptionTrend_StableWithinThreshold(t *testing.T) {
	// GIVEN: Even consumption across both halves
	// WHEN: Computing the trend
	// THEN: Under 10% change reads as stable

	engine, store := newTestEngine(t)
	ctx := context.Background()
	for m := 1; m <= 6; m++ {
		e := ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: decimal.NewFromInt(-10), Kind: ledger.TxIssue,
			TxDate: testNow.AddDate(0, -m, 2),
		}
		require.NoError(t, store.Append(ctx, e))
	}

	trend, err := engine.ConsumptionTrend(ctx, "itm-1", nil, 6)
	require.NoError(t, err)
	assert.Equal(t, demand.TrendStable, trend.Direction)
}
