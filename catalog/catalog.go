/*
Package catalog provides read-only views of catalog-managed records.

PURPOSE:
  Items, suppliers, and users are owned by catalog/administration
  modules outside this engine. The replenishment core only READS them,
  through the narrow store interfaces defined here. No create/update
  operations exist in this package by design.

KEY TYPES:
  - Item: reorder defaults, lead time, pricing flags read by the
    decision engine
  - Supplier + Quote: per-item supplier offers scored by the
    requisition generator
  - User: active Admin/Manager users who receive alerts and are
    recorded as requisition requesters

SEE ALSO:
  - reorder/decision.go: Resolves rule overrides against Item defaults
  - reorder/requisition.go: Supplier quote scoring
*/
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// ITEM - Catalog record read by the core
// =============================================================================

type Item struct {
	ID         ledger.ItemID
	SKU        string
	Name       string
	CategoryID string

	// Reorder defaults; a ReorderRule may override them.
	ReorderPoint decimal.Decimal // zero = not set
	SafetyStock  decimal.Decimal
	LeadTimeDays int

	UnitPrice    decimal.Decimal
	Unit         string
	BatchTracked bool
	Active       bool
}

// HasReorderPoint reports whether a reorder point is configured.
// Items without one fall back to safety-stock based scoring.
func (i Item) HasReorderPoint() bool { return i.ReorderPoint.IsPositive() }

// ItemStore is the read-only item lookup used by the core.
type ItemStore interface {
	GetItem(ctx context.Context, id ledger.ItemID) (*Item, error)
	ListActiveItems(ctx context.Context) ([]Item, error)

	// ListActiveItemsInCategory supports the zero-history consumption
	// fallback: peers in the same category stand in for a new item.
	ListActiveItemsInCategory(ctx context.Context, categoryID string) ([]Item, error)
}

// =============================================================================
// SUPPLIER - Scored during requisition generation
// =============================================================================

type Supplier struct {
	ID           string
	Code         string
	Name         string
	Active       bool
	Preferred    bool
	Rating       decimal.Decimal // 0..5
	LeadTimeDays int
}

// Quote is a supplier's offer for one item: the joined view the
// generator scores. MaxOrderQty of zero means no upper bound.
type Quote struct {
	Supplier     Supplier
	ItemID       ledger.ItemID
	UnitPrice    decimal.Decimal
	MinOrderQty  decimal.Decimal
	MaxOrderQty  decimal.Decimal
	LeadTimeDays int // offer-specific; falls back to supplier lead time when zero
}

// EffectiveLeadTime returns the offer lead time, or the supplier's
// default when the offer doesn't specify one.
func (q Quote) EffectiveLeadTime() int {
	if q.LeadTimeDays > 0 {
		return q.LeadTimeDays
	}
	return q.Supplier.LeadTimeDays
}

// SatisfiesQuantity reports whether qty fits the offer's min/max bounds.
func (q Quote) SatisfiesQuantity(qty decimal.Decimal) bool {
	if q.MinOrderQty.IsPositive() && qty.LessThan(q.MinOrderQty) {
		return false
	}
	if q.MaxOrderQty.IsPositive() && qty.GreaterThan(q.MaxOrderQty) {
		return false
	}
	return true
}

// SupplierStore is the read-only supplier lookup used by the generator.
type SupplierStore interface {
	// QuotesForItem returns offers from active suppliers for the item.
	QuotesForItem(ctx context.Context, itemID ledger.ItemID) ([]Quote, error)
}

// =============================================================================
// USER - Alert recipients and requisition requesters
// =============================================================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleClerk   Role = "clerk"
)

type User struct {
	ID     string
	Name   string
	Email  string
	Role   Role
	Active bool
}

// UserStore is the read-only user lookup used by the generator and the
// alert escalator.
type UserStore interface {
	// ListActiveApprovers returns active Admin/Manager users, in a
	// stable order. The first one is recorded as the requesting user on
	// generated requisitions.
	ListActiveApprovers(ctx context.Context) ([]User, error)
}
