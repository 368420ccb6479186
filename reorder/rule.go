/*
Package reorder provides the reorder decision engine and requisition
generator.

PURPOSE:
  Turns ledger-derived stock and demand statistics into priority-scored
  reorder verdicts, queues them, and drains the queue into purchase
  requisitions with supplier scoring - idempotently.

KEY CONCEPTS IN THIS FILE (rule.go):
  - Rule: one active reorder rule per (item, warehouse|global)
  - FormulaKind: fixed / dynamic / seasonal / eoq, a tagged variant -
    the parameters each kind needs are validated at write time, not
    discovered broken at read time
  - PriorityLevel: manager-assigned urgency feeding the score

VALIDATION:
  Rule.Validate() enforces per-kind parameter requirements:
  - fixed: a positive fixed quantity (or the 2x-reorder-point default)
  - eoq: annual demand, ordering cost, holding cost all positive
  - every kind: non-negative bounds, min <= max when both set

SEE ALSO:
  - decision.go: Evaluates items against rules
  - factory/: JSON -> Rule conversion for the admin surface
*/
package reorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// FORMULA KIND - Tagged variant for suggested-quantity calculation
// =============================================================================

type FormulaKind string

const (
	KindFixed    FormulaKind = "fixed"    // Configured amount
	KindDynamic  FormulaKind = "dynamic"  // Lead-time demand + safety stock
	KindSeasonal FormulaKind = "seasonal" // Dynamic x seasonal multiplier
	KindEOQ      FormulaKind = "eoq"      // Economic order quantity
)

type PriorityLevel string

const (
	PriorityLow      PriorityLevel = "low"
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityCritical PriorityLevel = "critical"
)

// ScoreBonus is the priority-score contribution of the rule's level.
func (p PriorityLevel) ScoreBonus() int {
	switch p {
	case PriorityCritical:
		return 20
	case PriorityHigh:
		return 15
	case PriorityMedium:
		return 10
	default:
		return 5
	}
}

// EOQParams are required only when Kind == KindEOQ.
type EOQParams struct {
	AnnualDemand decimal.Decimal
	OrderingCost decimal.Decimal
	HoldingCost  decimal.Decimal
}

// =============================================================================
// RULE
// =============================================================================

// Rule is one reorder rule. At most one active rule exists per
// (item, warehouse) pair; a rule with WarehouseID == nil is global and
// applies where no warehouse-specific rule exists.
type Rule struct {
	ID          string
	ItemID      ledger.ItemID
	WarehouseID *ledger.WarehouseID // nil = global

	Kind FormulaKind

	// AutoGenerate gates inclusion in scheduled scans; RequireApproval
	// controls whether generated requisitions start Pending or Approved.
	AutoGenerate    bool
	RequireApproval bool

	Priority PriorityLevel

	// Overrides; nil falls back to the item's catalog defaults.
	ReorderPoint *decimal.Decimal
	SafetyStock  *decimal.Decimal

	// FixedQty is the configured amount for KindFixed. Nil uses the
	// 2x-reorder-point default.
	FixedQty *decimal.Decimal

	MinOrderQty   decimal.Decimal
	MaxOrderQty   decimal.Decimal // zero = uncapped
	OrderMultiple decimal.Decimal // zero = no rounding

	// SeasonalMultiplier is the fallback scalar for KindSeasonal when
	// the demand engine finds no per-month pattern.
	SeasonalMultiplier decimal.Decimal

	EOQ *EOQParams

	// LeadTimeBuffer is added to the item lead time in the dynamic
	// target calculation.
	LeadTimeBuffer int

	Active        bool
	LastTriggered *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var ErrRuleInvalid = errors.New("invalid reorder rule")

// Validate checks the rule's variant parameters. Called at write time
// so a broken rule never reaches the decision engine.
func (r Rule) Validate() error {
	if r.ItemID == "" {
		return fmt.Errorf("%w: missing item id", ErrRuleInvalid)
	}
	switch r.Kind {
	case KindFixed:
		if r.FixedQty != nil && !r.FixedQty.IsPositive() {
			return fmt.Errorf("%w: fixed quantity must be positive", ErrRuleInvalid)
		}
	case KindDynamic:
	case KindSeasonal:
		if r.SeasonalMultiplier.IsNegative() {
			return fmt.Errorf("%w: seasonal multiplier must not be negative", ErrRuleInvalid)
		}
	case KindEOQ:
		if r.EOQ == nil {
			return fmt.Errorf("%w: eoq rule requires eoq parameters", ErrRuleInvalid)
		}
		if !r.EOQ.AnnualDemand.IsPositive() || !r.EOQ.OrderingCost.IsPositive() || !r.EOQ.HoldingCost.IsPositive() {
			return fmt.Errorf("%w: eoq parameters must all be positive", ErrRuleInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown formula kind %q", ErrRuleInvalid, r.Kind)
	}

	switch r.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		return fmt.Errorf("%w: unknown priority level %q", ErrRuleInvalid, r.Priority)
	}

	if r.MinOrderQty.IsNegative() || r.MaxOrderQty.IsNegative() || r.OrderMultiple.IsNegative() {
		return fmt.Errorf("%w: order bounds must not be negative", ErrRuleInvalid)
	}
	if r.MaxOrderQty.IsPositive() && r.MinOrderQty.GreaterThan(r.MaxOrderQty) {
		return fmt.Errorf("%w: min order quantity exceeds max", ErrRuleInvalid)
	}
	if r.ReorderPoint != nil && r.ReorderPoint.IsNegative() {
		return fmt.Errorf("%w: reorder point must not be negative", ErrRuleInvalid)
	}
	if r.SafetyStock != nil && r.SafetyStock.IsNegative() {
		return fmt.Errorf("%w: safety stock must not be negative", ErrRuleInvalid)
	}
	return nil
}

// =============================================================================
// RULE STORE
// =============================================================================

type RuleStore interface {
	// SaveRule validates and persists a rule (insert or update).
	SaveRule(ctx context.Context, r *Rule) error

	// GetRule fetches a rule by ID, nil when absent.
	GetRule(ctx context.Context, id string) (*Rule, error)

	// ActiveRuleFor resolves the effective rule for an item: the
	// warehouse-specific rule if one exists, else the global rule,
	// else nil.
	ActiveRuleFor(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID) (*Rule, error)

	// ListActiveRules returns every active rule, for scan iteration.
	ListActiveRules(ctx context.Context) ([]Rule, error)

	// MarkRuleTriggered stamps last_triggered after generation.
	MarkRuleTriggered(ctx context.Context, ruleID string, at time.Time) error
}
