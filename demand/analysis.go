/*
Package demand provides consumption statistics over the stock ledger.

PURPOSE:
  Turns raw issue entries into the figures the reorder decision engine
  needs: average daily consumption, demand variability, a flat forecast,
  seasonal multipliers, and a trend direction.

KEY INSIGHT:
  Only TxIssue entries count as demand. Adjustments and counts are
  corrections; receipts and transfers are supply. Issue quantities are
  negative in the ledger, so all statistics work on absolute values.

ZERO-HISTORY FALLBACK:
  A new item has no issue history. Rather than returning zero (which
  would suppress reordering forever), AverageDailyConsumption falls back
  to the average issue rate of other active items in the same category
  over the same window.

STATISTICS:
  - Variability: per-day series -> mean, standard deviation, CV
    (coefficient of variation = stddev / mean). Needs >= 7 days of data.
  - Forecast: flat projection of the 90-day average; confidence derived
    from CV (< 0.3 high, > 0.7 low).
  - SeasonalPattern: trailing 12 months by calendar month; a pattern is
    present when any month deviates more than 20% from the monthly
    average. Needs >= 6 months of data.
  - Trend: first half vs second half of a trailing month range; more
    than 10% change = increasing/decreasing, else stable.

SEE ALSO:
  - ledger/balance.go: The stock side of the same entries
  - reorder/decision.go: Consumes these statistics
*/
package demand

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes demand statistics from the ledger.
type Engine struct {
	Ledger ledger.Store
	Items  catalog.ItemStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewEngine(store ledger.Store, items catalog.ItemStore) *Engine {
	return &Engine{Ledger: store, Items: items}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func dimensionFilter(itemID ledger.ItemID, warehouseID *ledger.WarehouseID) ledger.Filter {
	return ledger.Filter{ItemID: itemID, WarehouseID: warehouseID}
}

// issuesInWindow returns the consumption entries for the trailing window.
func (e *Engine) issuesInWindow(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, windowDays int) ([]ledger.Entry, error) {
	to := e.now()
	from := to.AddDate(0, 0, -windowDays)
	entries, err := e.Ledger.EntriesInRange(ctx, dimensionFilter(itemID, warehouseID), from, to)
	if err != nil {
		return nil, err
	}
	var issues []ledger.Entry
	for _, entry := range entries {
		if entry.Kind.IsConsumption() {
			issues = append(issues, entry)
		}
	}
	return issues, nil
}

// =============================================================================
// AVERAGE DAILY CONSUMPTION
// =============================================================================

// AverageDailyConsumption returns the absolute issued quantity per day
// over the trailing window. The divisor is min(windowDays, days since
// the first issue in the window) so a recently introduced item isn't
// diluted by empty history.
//
// With zero history, falls back to the average issue rate of other
// active items in the same category over the same window, else zero.
func (e *Engine) AverageDailyConsumption(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, windowDays int) (decimal.Decimal, error) {
	if windowDays <= 0 {
		windowDays = 30
	}

	rate, found, err := e.issueRate(ctx, itemID, warehouseID, windowDays)
	if err != nil {
		return decimal.Zero, err
	}
	if found {
		return rate, nil
	}

	return e.categoryFallbackRate(ctx, itemID, warehouseID, windowDays)
}

// issueRate computes the raw rate; found is false when there is no
// issue history in the window.
func (e *Engine) issueRate(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, windowDays int) (decimal.Decimal, bool, error) {
	issues, err := e.issuesInWindow(ctx, itemID, warehouseID, windowDays)
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(issues) == 0 {
		return decimal.Zero, false, nil
	}

	total := decimal.Zero
	first := issues[0].TxDate
	for _, entry := range issues {
		total = total.Add(entry.Quantity.Abs())
		if entry.TxDate.Before(first) {
			first = entry.TxDate
		}
	}

	days := ledger.DaysBetween(first, e.now())
	if days > windowDays {
		days = windowDays
	}
	if days < 1 {
		days = 1
	}
	return total.Div(decimal.NewFromInt(int64(days))), true, nil
}

// categoryFallbackRate averages the issue rates of the item's active
// category peers. Returns zero when the item is unknown or no peer has
// history either.
func (e *Engine) categoryFallbackRate(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, windowDays int) (decimal.Decimal, error) {
	item, err := e.Items.GetItem(ctx, itemID)
	if err != nil || item == nil || item.CategoryID == "" {
		return decimal.Zero, nil
	}

	peers, err := e.Items.ListActiveItemsInCategory(ctx, item.CategoryID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	count := 0
	for _, peer := range peers {
		if peer.ID == itemID {
			continue
		}
		rate, found, err := e.issueRate(ctx, peer.ID, warehouseID, windowDays)
		if err != nil {
			return decimal.Zero, err
		}
		if found {
			total = total.Add(rate)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, nil
	}
	return total.Div(decimal.NewFromInt(int64(count))), nil
}

// =============================================================================
// VARIABILITY - Per-day series statistics
// =============================================================================

// Variability describes how noisy an item's demand is.
type Variability struct {
	Mean   decimal.Decimal
	StdDev decimal.Decimal

	// CV is the coefficient of variation: StdDev / Mean.
	// Zero when there is no usable history.
	CV decimal.Decimal

	DaysObserved int
}

// DemandVariability builds a per-day consumption series for the window
// and computes mean, standard deviation, and CV. An item with fewer than
// 7 days of observed history returns the zero Variability.
func (e *Engine) DemandVariability(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, windowDays int) (Variability, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	issues, err := e.issuesInWindow(ctx, itemID, warehouseID, windowDays)
	if err != nil {
		return Variability{}, err
	}
	if len(issues) == 0 {
		return Variability{}, nil
	}

	// Day-keyed totals from the first issue onward; days without issues
	// are zero-consumption observations, not gaps.
	perDay := make(map[time.Time]decimal.Decimal)
	first := issues[0].TxDate
	for _, entry := range issues {
		day := ledger.DayOf(entry.TxDate)
		perDay[day] = perDay[day].Add(entry.Quantity.Abs())
		if entry.TxDate.Before(first) {
			first = entry.TxDate
		}
	}

	days := ledger.DaysBetween(first, e.now()) + 1
	if days > windowDays {
		days = windowDays
	}
	if days < 7 {
		return Variability{DaysObserved: days}, nil
	}

	series := make([]float64, 0, days)
	start := ledger.DayOf(e.now()).AddDate(0, 0, -(days - 1))
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		v, _ := perDay[day].Float64()
		series = append(series, v)
	}

	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	var sq float64
	for _, v := range series {
		sq += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(sq / float64(len(series)))

	cv := 0.0
	if mean > 0 {
		cv = stdDev / mean
	}

	return Variability{
		Mean:         decimal.NewFromFloat(mean),
		StdDev:       decimal.NewFromFloat(stdDev),
		CV:           decimal.NewFromFloat(cv),
		DaysObserved: days,
	}, nil
}

// =============================================================================
// FORECAST - Flat projection with confidence
// =============================================================================

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // CV < 0.3
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low" // CV > 0.7
)

type Forecast struct {
	ItemID       ledger.ItemID
	ForecastDays int

	// Quantity is the flat projection: 90-day average daily consumption
	// multiplied by the horizon.
	Quantity   decimal.Decimal
	DailyRate  decimal.Decimal
	Confidence Confidence
	CV         decimal.Decimal
}

const forecastBaselineWindow = 90

// ForecastDemand projects demand over the horizon as a flat multiple of
// the 90-day average daily consumption.
func (e *Engine) ForecastDemand(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, forecastDays int) (Forecast, error) {
	if forecastDays <= 0 {
		forecastDays = 30
	}

	rate, err := e.AverageDailyConsumption(ctx, itemID, warehouseID, forecastBaselineWindow)
	if err != nil {
		return Forecast{}, err
	}
	variability, err := e.DemandVariability(ctx, itemID, warehouseID, forecastBaselineWindow)
	if err != nil {
		return Forecast{}, err
	}

	confidence := ConfidenceMedium
	cvHigh := decimal.NewFromFloat(0.3)
	cvLow := decimal.NewFromFloat(0.7)
	switch {
	case variability.CV.LessThan(cvHigh):
		confidence = ConfidenceHigh
	case variability.CV.GreaterThan(cvLow):
		confidence = ConfidenceLow
	}

	return Forecast{
		ItemID:       itemID,
		ForecastDays: forecastDays,
		Quantity:     rate.Mul(decimal.NewFromInt(int64(forecastDays))),
		DailyRate:    rate,
		Confidence:   confidence,
		CV:           variability.CV,
	}, nil
}

// =============================================================================
// SEASONAL PATTERN - Calendar-month multipliers
// =============================================================================

type SeasonalPattern struct {
	ItemID ledger.ItemID

	// Multipliers maps calendar month -> monthTotal / overallMonthlyAverage.
	// Months without data are absent; MultiplierFor returns 1 for them.
	Multipliers map[time.Month]decimal.Decimal

	MonthsWithData int

	// Present is true when any multiplier deviates more than 20% from 1
	// and at least 6 months of data exist.
	Present bool
}

// MultiplierFor returns the multiplier for a month, defaulting to 1.
func (p SeasonalPattern) MultiplierFor(month time.Month) decimal.Decimal {
	if m, ok := p.Multipliers[month]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// SeasonalPatternFor aggregates the trailing 12 months of issues by
// calendar month. Fewer than 6 months of data reports no pattern.
func (e *Engine) SeasonalPatternFor(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID) (SeasonalPattern, error) {
	issues, err := e.issuesInWindow(ctx, itemID, warehouseID, 365)
	if err != nil {
		return SeasonalPattern{}, err
	}

	pattern := SeasonalPattern{
		ItemID:      itemID,
		Multipliers: make(map[time.Month]decimal.Decimal),
	}

	byMonth := make(map[time.Month]decimal.Decimal)
	for _, entry := range issues {
		m := entry.TxDate.Month()
		byMonth[m] = byMonth[m].Add(entry.Quantity.Abs())
	}
	pattern.MonthsWithData = len(byMonth)
	if pattern.MonthsWithData < 6 {
		return pattern, nil
	}

	total := decimal.Zero
	for _, qty := range byMonth {
		total = total.Add(qty)
	}
	average := total.Div(decimal.NewFromInt(int64(pattern.MonthsWithData)))
	if average.IsZero() {
		return pattern, nil
	}

	upper := decimal.NewFromFloat(1.2)
	lower := decimal.NewFromFloat(0.8)
	for month, qty := range byMonth {
		multiplier := qty.Div(average)
		pattern.Multipliers[month] = multiplier
		if multiplier.GreaterThan(upper) || multiplier.LessThan(lower) {
			pattern.Present = true
		}
	}
	return pattern, nil
}

// =============================================================================
// TREND - First half vs second half of a trailing range
// =============================================================================

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

type Trend struct {
	ItemID    ledger.ItemID
	Months    int
	Direction TrendDirection

	// ChangePercent is the second-half average relative to the first.
	ChangePercent decimal.Decimal

	FirstHalfAvg  decimal.Decimal
	SecondHalfAvg decimal.Decimal
}

// ConsumptionTrend splits the trailing N months in two halves and
// compares average monthly consumption. More than 10% change in either
// direction is a trend; otherwise stable.
func (e *Engine) ConsumptionTrend(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID, months int) (Trend, error) {
	if months < 2 {
		months = 6
	}
	now := e.now()
	midpoint := now.AddDate(0, -months/2, 0)
	start := now.AddDate(0, -months, 0)

	entries, err := e.Ledger.EntriesInRange(ctx, dimensionFilter(itemID, warehouseID), start, now)
	if err != nil {
		return Trend{}, err
	}

	firstTotal, secondTotal := decimal.Zero, decimal.Zero
	for _, entry := range entries {
		if !entry.Kind.IsConsumption() {
			continue
		}
		if entry.TxDate.Before(midpoint) {
			firstTotal = firstTotal.Add(entry.Quantity.Abs())
		} else {
			secondTotal = secondTotal.Add(entry.Quantity.Abs())
		}
	}

	halfMonths := decimal.NewFromInt(int64(months / 2))
	firstAvg := firstTotal.Div(halfMonths)
	secondAvg := secondTotal.Div(halfMonths)

	trend := Trend{
		ItemID:        itemID,
		Months:        months,
		Direction:     TrendStable,
		FirstHalfAvg:  firstAvg,
		SecondHalfAvg: secondAvg,
	}

	if firstAvg.IsZero() {
		if secondAvg.IsPositive() {
			trend.Direction = TrendIncreasing
			trend.ChangePercent = decimal.NewFromInt(100)
		}
		return trend, nil
	}

	change := secondAvg.Sub(firstAvg).Div(firstAvg).Mul(decimal.NewFromInt(100))
	trend.ChangePercent = change

	threshold := decimal.NewFromInt(10)
	switch {
	case change.GreaterThan(threshold):
		trend.Direction = TrendIncreasing
	case change.LessThan(threshold.Neg()):
		trend.Direction = TrendDecreasing
	}
	return trend, nil
}
