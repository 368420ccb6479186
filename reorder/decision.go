/*
decision.go - Per-item reorder evaluation

PURPOSE:
  Evaluates each rule-eligible item against its effective reorder rule
  and produces a priority-scored verdict with a suggested quantity.
  Triggered verdicts become pending queue entries.

EVALUATION STEPS:
  1. Effective reorder point / safety stock = rule override, else item
     defaults
  2. effectiveStock = currentStock + pendingOrders (open PR requested
     qty + open PO ordered qty)
  3. needsReorder = effectiveStock <= reorderPoint
  4. suggestedQuantity by formula kind, clamped to [min, max] and
     rounded UP to the order multiple
  5. priorityScore: base 50 plus stock-ratio, safety-stock, stockout
     and rule-priority bonuses, clamped to [0, 100]

SCORE TIERS:
  stock ratio (effective/reorderPoint): <0.5 +40, <0.75 +30, <1.0 +20
    (no reorder point: +40 at zero stock, +30 below safety stock)
  below safety stock: +20
  days until stockout: 0 stock +20, <3d +20, <7d +15, <14d +10
  rule priority: critical +20, high +15, medium +10, low +5

SEE ALSO:
  - rule.go: Formula variants
  - queue.go: Where triggered verdicts land
  - demand/: Consumption statistics feeding the formulas
*/
package reorder

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/demand"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// PENDING ORDERS - Open supply already on its way
// =============================================================================

// PendingOrderStore exposes quantities already requested or ordered for
// an item: open requisitions (Pending/Approved) and open purchase
// orders (Issued/In-Transit). These offset current stock so the engine
// doesn't reorder what is already inbound.
type PendingOrderStore interface {
	OpenRequisitionQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error)
	OpenOrderQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error)

	// HasOpenRequisition backs the idempotency guard: at most one PR in
	// {Pending, Approved} per item at any time.
	HasOpenRequisition(ctx context.Context, itemID ledger.ItemID) (bool, error)
}

// =============================================================================
// VERDICT
// =============================================================================

type Verdict struct {
	ItemID      ledger.ItemID
	WarehouseID *ledger.WarehouseID
	RuleID      string

	NeedsReorder bool

	CurrentStock   decimal.Decimal
	PendingOrders  decimal.Decimal
	EffectiveStock decimal.Decimal
	ReorderPoint   decimal.Decimal
	SafetyStock    decimal.Decimal

	SuggestedQty decimal.Decimal

	// PriorityScore is the 0-100 urgency rating.
	PriorityScore int

	// DaysUntilStockout is nil when consumption is zero (no horizon).
	DaysUntilStockout *decimal.Decimal

	AvgDailyConsumption decimal.Decimal
}

// =============================================================================
// DECISION ENGINE
// =============================================================================

const (
	// demandWindowDays is the trailing window for consumption statistics.
	demandWindowDays = 90

	// defaultLeadTimeBuffer pads item lead time when the rule sets none.
	defaultLeadTimeBuffer = 3
)

type DecisionEngine struct {
	Balance *ledger.BalanceCalculator
	Demand  *demand.Engine
	Items   catalog.ItemStore
	Rules   RuleStore
	Pending PendingOrderStore
	Queue   QueueStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewDecisionEngine(
	balance *ledger.BalanceCalculator,
	demandEngine *demand.Engine,
	items catalog.ItemStore,
	rules RuleStore,
	pending PendingOrderStore,
	queue QueueStore,
) *DecisionEngine {
	return &DecisionEngine{
		Balance: balance,
		Demand:  demandEngine,
		Items:   items,
		Rules:   rules,
		Pending: pending,
		Queue:   queue,
	}
}

func (de *DecisionEngine) now() time.Time {
	if de.Now != nil {
		return de.Now()
	}
	return time.Now().UTC()
}

// Evaluate runs the full decision pipeline for one item under one rule.
func (de *DecisionEngine) Evaluate(ctx context.Context, item catalog.Item, rule Rule) (Verdict, error) {
	v := Verdict{
		ItemID:      item.ID,
		WarehouseID: rule.WarehouseID,
		RuleID:      rule.ID,
	}

	// Step 1: effective thresholds
	v.ReorderPoint = item.ReorderPoint
	if rule.ReorderPoint != nil {
		v.ReorderPoint = *rule.ReorderPoint
	}
	v.SafetyStock = item.SafetyStock
	if rule.SafetyStock != nil {
		v.SafetyStock = *rule.SafetyStock
	}

	// Step 2: effective stock = on-hand + inbound
	filter := ledger.Filter{ItemID: item.ID, WarehouseID: rule.WarehouseID}
	current, err := de.Balance.CurrentStock(ctx, filter)
	if err != nil {
		return v, fmt.Errorf("current stock for %s: %w", item.ID, err)
	}
	v.CurrentStock = current

	openPR, err := de.Pending.OpenRequisitionQty(ctx, item.ID)
	if err != nil {
		return v, fmt.Errorf("open requisition qty for %s: %w", item.ID, err)
	}
	openPO, err := de.Pending.OpenOrderQty(ctx, item.ID)
	if err != nil {
		return v, fmt.Errorf("open order qty for %s: %w", item.ID, err)
	}
	v.PendingOrders = openPR.Add(openPO)
	v.EffectiveStock = current.Add(v.PendingOrders)

	// Step 3: trigger check
	v.NeedsReorder = v.EffectiveStock.LessThanOrEqual(v.ReorderPoint)
	if !v.NeedsReorder {
		return v, nil
	}

	// Demand figures feed both the quantity and the score.
	adc, err := de.Demand.AverageDailyConsumption(ctx, item.ID, rule.WarehouseID, demandWindowDays)
	if err != nil {
		return v, fmt.Errorf("consumption for %s: %w", item.ID, err)
	}
	v.AvgDailyConsumption = adc

	if adc.IsPositive() {
		days := v.EffectiveStock.Div(adc)
		if days.IsNegative() {
			days = decimal.Zero
		}
		v.DaysUntilStockout = &days
	}

	// Step 4: suggested quantity
	qty, err := de.suggestedQuantity(ctx, item, rule, v, adc)
	if err != nil {
		return v, err
	}
	v.SuggestedQty = qty

	// Step 5: priority score
	v.PriorityScore = priorityScore(v, rule)

	return v, nil
}

// =============================================================================
// SUGGESTED QUANTITY
// =============================================================================

func (de *DecisionEngine) suggestedQuantity(ctx context.Context, item catalog.Item, rule Rule, v Verdict, adc decimal.Decimal) (decimal.Decimal, error) {
	var qty decimal.Decimal

	switch rule.Kind {
	case KindFixed:
		if rule.FixedQty != nil {
			qty = *rule.FixedQty
		} else {
			qty = v.ReorderPoint.Mul(decimal.NewFromInt(2))
		}

	case KindDynamic:
		qty = dynamicQuantity(item, rule, v, adc)

	case KindSeasonal:
		qty = dynamicQuantity(item, rule, v, adc)
		multiplier := rule.SeasonalMultiplier
		pattern, err := de.Demand.SeasonalPatternFor(ctx, item.ID, rule.WarehouseID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("seasonal pattern for %s: %w", item.ID, err)
		}
		if pattern.Present {
			multiplier = pattern.MultiplierFor(de.now().Month())
		}
		if multiplier.IsPositive() {
			qty = qty.Mul(multiplier)
		}

	case KindEOQ:
		qty = eoqQuantity(*rule.EOQ)

	default:
		return decimal.Zero, fmt.Errorf("%w: unknown formula kind %q", ErrRuleInvalid, rule.Kind)
	}

	return clampAndRound(qty, rule), nil
}

// dynamicQuantity targets lead-time demand plus safety stock:
//
//	target = adc x (leadTimeDays + buffer) + safetyStock
//	suggested = max(target - effectiveStock, minOrderQty)
func dynamicQuantity(item catalog.Item, rule Rule, v Verdict, adc decimal.Decimal) decimal.Decimal {
	buffer := rule.LeadTimeBuffer
	if buffer <= 0 {
		buffer = defaultLeadTimeBuffer
	}
	horizon := decimal.NewFromInt(int64(item.LeadTimeDays + buffer))
	target := adc.Mul(horizon).Add(v.SafetyStock)

	suggested := target.Sub(v.EffectiveStock)
	if suggested.LessThan(rule.MinOrderQty) {
		suggested = rule.MinOrderQty
	}
	return suggested
}

// eoqQuantity is the economic order quantity: sqrt(2DS/H).
func eoqQuantity(p EOQParams) decimal.Decimal {
	d, _ := p.AnnualDemand.Float64()
	s, _ := p.OrderingCost.Float64()
	h, _ := p.HoldingCost.Float64()
	if h <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(2 * d * s / h))
}

// clampAndRound applies [min, max] bounds then rounds UP to the nearest
// order multiple.
func clampAndRound(qty decimal.Decimal, rule Rule) decimal.Decimal {
	if qty.LessThan(rule.MinOrderQty) {
		qty = rule.MinOrderQty
	}
	if rule.MaxOrderQty.IsPositive() && qty.GreaterThan(rule.MaxOrderQty) {
		qty = rule.MaxOrderQty
	}
	if rule.OrderMultiple.IsPositive() {
		multiples := qty.Div(rule.OrderMultiple).Ceil()
		qty = multiples.Mul(rule.OrderMultiple)
	}
	return qty
}

// =============================================================================
// PRIORITY SCORE
// =============================================================================

// priorityScore rates urgency 0-100. Base 50, bonuses for stock ratio,
// safety-stock breach, stockout horizon, and rule priority.
func priorityScore(v Verdict, rule Rule) int {
	score := 50

	if v.ReorderPoint.IsPositive() {
		ratio := v.EffectiveStock.Div(v.ReorderPoint)
		switch {
		case ratio.LessThan(decimal.NewFromFloat(0.5)):
			score += 40
		case ratio.LessThan(decimal.NewFromFloat(0.75)):
			score += 30
		case ratio.LessThan(decimal.NewFromInt(1)):
			score += 20
		}
	} else {
		// No reorder point configured: fall back to absolute levels.
		switch {
		case !v.EffectiveStock.IsPositive():
			score += 40
		case v.EffectiveStock.LessThan(v.SafetyStock):
			score += 30
		}
	}

	if v.EffectiveStock.LessThan(v.SafetyStock) {
		score += 20
	}

	if !v.EffectiveStock.IsPositive() {
		score += 20
	} else if v.DaysUntilStockout != nil {
		days := *v.DaysUntilStockout
		switch {
		case days.LessThan(decimal.NewFromInt(3)):
			score += 20
		case days.LessThan(decimal.NewFromInt(7)):
			score += 15
		case days.LessThan(decimal.NewFromInt(14)):
			score += 10
		}
	}

	score += rule.Priority.ScoreBonus()

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// =============================================================================
// SCAN - Evaluate every rule-eligible item
// =============================================================================

// ItemError records a per-item failure during a scan. Scans continue
// past individual failures.
type ItemError struct {
	ItemID  ledger.ItemID
	Message string
}

type ScanResult struct {
	ItemsProcessed int
	ItemsEligible  int
	Enqueued       int
	Errors         []ItemError
}

// Scan evaluates all items with active auto-generate rules and enqueues
// a pending queue entry for each triggered verdict.
func (de *DecisionEngine) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	rules, err := de.Rules.ListActiveRules(ctx)
	if err != nil {
		return result, fmt.Errorf("list active rules: %w", err)
	}

	for _, rule := range rules {
		if !rule.AutoGenerate {
			continue
		}

		item, err := de.Items.GetItem(ctx, rule.ItemID)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{ItemID: rule.ItemID, Message: err.Error()})
			continue
		}
		if item == nil || !item.Active {
			continue
		}
		result.ItemsProcessed++

		verdict, err := de.Evaluate(ctx, *item, rule)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{ItemID: rule.ItemID, Message: err.Error()})
			continue
		}
		if !verdict.NeedsReorder {
			continue
		}
		result.ItemsEligible++

		entry := QueueEntry{
			ID:            uuid.New().String(),
			ItemID:        verdict.ItemID,
			WarehouseID:   verdict.WarehouseID,
			RuleID:        rule.ID,
			CurrentStock:  verdict.CurrentStock,
			ReorderPoint:  verdict.ReorderPoint,
			SafetyStock:   verdict.SafetyStock,
			SuggestedQty:  verdict.SuggestedQty,
			PriorityScore: verdict.PriorityScore,
			Status:        QueuePending,
			CreatedAt:     de.now(),
		}
		if verdict.DaysUntilStockout != nil {
			d := *verdict.DaysUntilStockout
			entry.DaysUntilStockout = &d
		}
		if err := de.Queue.Enqueue(ctx, entry); err != nil {
			result.Errors = append(result.Errors, ItemError{ItemID: rule.ItemID, Message: err.Error()})
			continue
		}
		result.Enqueued++
	}

	if len(result.Errors) > 0 {
		log.Printf("[Decision] Scan finished with %d item error(s)", len(result.Errors))
	}
	return result, nil
}
