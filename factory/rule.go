/*
Package factory provides JSON to Go reorder rule conversion.

PURPOSE:
  Converts JSON rule definitions into reorder.Rule values. This enables
  rule configuration without code changes - planners can define rules in
  JSON, and the factory creates the proper Go structs with write-time
  validation.

WHY JSON?
  - Non-developers can modify rules
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
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
  }

KEY FEATURES:
  - Validates structure AND variant parameters at parse time
  - Sets sensible defaults (dynamic formula, medium priority, active)
  - Round-trips: ToJSON(FromJSON(x)) preserves the rule

USAGE:
  factory := NewRuleFactory()

  // From JSON string
  rule, err := factory.ParseRule(jsonString)

  // From a preset (recommended)
  jsonStr := factory.DynamicRuleJSON("rule-1", "widget-a", 50, 20)
  rule, err := factory.ParseRule(jsonStr)

SEE ALSO:
  - reorder/rule.go: Rule type definition and Validate()
  - api/handlers.go: Rule admin endpoints
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a reorder rule.
type RuleJSON struct {
	ID          string `json:"id"`
	ItemID      string `json:"item_id"`
	WarehouseID string `json:"warehouse_id,omitempty"` // empty = global

	Formula string `json:"formula"` // fixed, dynamic, seasonal, eoq

	AutoGenerate    bool   `json:"auto_generate"`
	RequireApproval bool   `json:"require_approval"`
	Priority        string `json:"priority,omitempty"` // low, medium, high, critical

	ReorderPoint *float64 `json:"reorder_point,omitempty"`
	SafetyStock  *float64 `json:"safety_stock,omitempty"`

	FixedQty *float64 `json:"fixed_qty,omitempty"`

	MinOrderQty   float64 `json:"min_order_qty,omitempty"`
	MaxOrderQty   float64 `json:"max_order_qty,omitempty"`
	OrderMultiple float64 `json:"order_multiple,omitempty"`

	SeasonalMultiplier float64 `json:"seasonal_multiplier,omitempty"`

	EOQ *EOQJSON `json:"eoq,omitempty"`

	LeadTimeBufferDays int  `json:"lead_time_buffer_days,omitempty"`
	Active             *bool `json:"active,omitempty"` // default true
}

// EOQJSON holds the economic-order-quantity parameters.
type EOQJSON struct {
	AnnualDemand float64 `json:"annual_demand"`
	OrderingCost float64 `json:"ordering_cost"`
	HoldingCost  float64 `json:"holding_cost"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a validated Rule.
func (f *RuleFactory) ParseRule(jsonStr string) (*reorder.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleJSON to a reorder.Rule, applying defaults and
// running Rule.Validate.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*reorder.Rule, error) {
	rule := &reorder.Rule{
		ID:              rj.ID,
		ItemID:          ledger.ItemID(rj.ItemID),
		Kind:            parseFormula(rj.Formula),
		AutoGenerate:    rj.AutoGenerate,
		RequireApproval: rj.RequireApproval,
		Priority:        parsePriority(rj.Priority),
		MinOrderQty:     decimal.NewFromFloat(rj.MinOrderQty),
		MaxOrderQty:     decimal.NewFromFloat(rj.MaxOrderQty),
		OrderMultiple:   decimal.NewFromFloat(rj.OrderMultiple),
		LeadTimeBuffer:  rj.LeadTimeBufferDays,
		Active:          true,
	}

	if rj.WarehouseID != "" {
		wh := ledger.WarehouseID(rj.WarehouseID)
		rule.WarehouseID = &wh
	}
	if rj.ReorderPoint != nil {
		v := decimal.NewFromFloat(*rj.ReorderPoint)
		rule.ReorderPoint = &v
	}
	if rj.SafetyStock != nil {
		v := decimal.NewFromFloat(*rj.SafetyStock)
		rule.SafetyStock = &v
	}
	if rj.FixedQty != nil {
		v := decimal.NewFromFloat(*rj.FixedQty)
		rule.FixedQty = &v
	}
	if rj.SeasonalMultiplier != 0 {
		rule.SeasonalMultiplier = decimal.NewFromFloat(rj.SeasonalMultiplier)
	}
	if rj.EOQ != nil {
		rule.EOQ = &reorder.EOQParams{
			AnnualDemand: decimal.NewFromFloat(rj.EOQ.AnnualDemand),
			OrderingCost: decimal.NewFromFloat(rj.EOQ.OrderingCost),
			HoldingCost:  decimal.NewFromFloat(rj.EOQ.HoldingCost),
		}
	}
	if rj.Active != nil {
		rule.Active = *rj.Active
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// ToJSON converts a Rule back to its JSON representation.
func (f *RuleFactory) ToJSON(rule *reorder.Rule) RuleJSON {
	rj := RuleJSON{
		ID:                 rule.ID,
		ItemID:             string(rule.ItemID),
		Formula:            string(rule.Kind),
		AutoGenerate:       rule.AutoGenerate,
		RequireApproval:    rule.RequireApproval,
		Priority:           string(rule.Priority),
		LeadTimeBufferDays: rule.LeadTimeBuffer,
	}

	if rule.WarehouseID != nil {
		rj.WarehouseID = string(*rule.WarehouseID)
	}
	if rule.ReorderPoint != nil {
		v, _ := rule.ReorderPoint.Float64()
		rj.ReorderPoint = &v
	}
	if rule.SafetyStock != nil {
		v, _ := rule.SafetyStock.Float64()
		rj.SafetyStock = &v
	}
	if rule.FixedQty != nil {
		v, _ := rule.FixedQty.Float64()
		rj.FixedQty = &v
	}
	rj.MinOrderQty, _ = rule.MinOrderQty.Float64()
	rj.MaxOrderQty, _ = rule.MaxOrderQty.Float64()
	rj.OrderMultiple, _ = rule.OrderMultiple.Float64()
	rj.SeasonalMultiplier, _ = rule.SeasonalMultiplier.Float64()
	if rule.EOQ != nil {
		eoq := EOQJSON{}
		eoq.AnnualDemand, _ = rule.EOQ.AnnualDemand.Float64()
		eoq.OrderingCost, _ = rule.EOQ.OrderingCost.Float64()
		eoq.HoldingCost, _ = rule.EOQ.HoldingCost.Float64()
		rj.EOQ = &eoq
	}
	active := rule.Active
	rj.Active = &active

	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseFormula(s string) reorder.FormulaKind {
	switch s {
	case "fixed":
		return reorder.KindFixed
	case "seasonal":
		return reorder.KindSeasonal
	case "eoq":
		return reorder.KindEOQ
	default:
		return reorder.KindDynamic
	}
}

func parsePriority(s string) reorder.PriorityLevel {
	switch s {
	case "low":
		return reorder.PriorityLow
	case "high":
		return reorder.PriorityHigh
	case "critical":
		return reorder.PriorityCritical
	default:
		return reorder.PriorityMedium
	}
}

// =============================================================================
// PRESET RULES
// =============================================================================

// DynamicRuleJSON builds a JSON rule targeting lead-time demand plus
// safety stock, requiring approval.
func (f *RuleFactory) DynamicRuleJSON(id, itemID string, reorderPoint, safetyStock float64) string {
	rj := RuleJSON{
		ID:              id,
		ItemID:          itemID,
		Formula:         "dynamic",
		AutoGenerate:    true,
		RequireApproval: true,
		Priority:        "medium",
		ReorderPoint:    &reorderPoint,
		SafetyStock:     &safetyStock,
	}
	b, _ := json.Marshal(rj)
	return string(b)
}

// FixedRuleJSON builds a JSON rule ordering a fixed quantity whenever
// stock reaches the reorder point.
func (f *RuleFactory) FixedRuleJSON(id, itemID string, reorderPoint, qty float64) string {
	rj := RuleJSON{
		ID:           id,
		ItemID:       itemID,
		Formula:      "fixed",
		AutoGenerate: true,
		Priority:     "medium",
		ReorderPoint: &reorderPoint,
		FixedQty:     &qty,
	}
	b, _ := json.Marshal(rj)
	return string(b)
}
