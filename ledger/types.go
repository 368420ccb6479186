/*
Package ledger provides the core stock ledger engine.

PURPOSE:
  This package contains the types and algorithms for the append-only
  quantity ledger that is the single source of truth for on-hand stock.
  Every receipt, transfer, issue, adjustment, and count is recorded here.
  Stock is always computed by summing entries - there's no separate
  "balance" field that can get out of sync.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: An immutable ledger record of a quantity change
  - TxKind: The kind of stock movement (receipt, issue, ...)
  - Filter: A dimension filter (item, warehouse, location, batch)
  - Item/Warehouse/Location/Batch IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only reversed with a
     counter-entry of opposite sign
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing dimensions
  4. Auditability: Every entry carries reference, reason, and actor

USAGE:
  entry := ledger.Entry{
      ItemID:      "itm-001",
      WarehouseID: "wh-main",
      Quantity:    decimal.NewFromInt(-5),
      Kind:        ledger.TxIssue,
  }

SEE ALSO:
  - balance.go: Stock calculation by SUM aggregation
  - ledger.go: Entry persistence interface
  - store.go: Low-level persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type ItemID string
type WarehouseID string
type LocationID string
type BatchID string

// =============================================================================
// TRANSACTION KIND - What kind of stock movement an entry records
// =============================================================================

type TxKind string

const (
	TxReceipt    TxKind = "receipt"    // Goods received (GRN, PO receipt)
	TxTransfer   TxKind = "transfer"   // Moved between warehouses/locations
	TxIssue      TxKind = "issue"      // Stock consumed/shipped out
	TxAdjustment TxKind = "adjustment" // Manual correction
	TxCount      TxKind = "count"      // Physical count reconciliation
)

// IsConsumption reports whether the kind represents demand for
// forecasting purposes. Only issues count as consumption - adjustments
// and counts are corrections, not demand.
func (k TxKind) IsConsumption() bool { return k == TxIssue }

// =============================================================================
// ENTRY - Immutable, insert-only quantity record
// =============================================================================

// Entry is a single row in the append-only stock ledger.
//
// INVARIANT: current stock for any dimension filter equals the sum of
// Quantity over all entries matching that filter. No entry is ever
// updated or deleted.
type Entry struct {
	ID          EntryID
	ItemID      ItemID
	WarehouseID WarehouseID
	LocationID  LocationID // optional; empty = warehouse-level
	BatchID     BatchID    // optional; empty = not batch-tracked

	// Signed quantity: positive = into stock, negative = out of stock.
	Quantity decimal.Decimal

	Kind   TxKind
	TxDate time.Time

	// Reference to the document that caused this movement (PO, SO, GRN...).
	ReferenceType string
	ReferenceID   string
	Reason        string

	// IdempotencyKey prevents duplicate inserts from retries.
	IdempotencyKey string

	// BalanceQty is a legacy per-entry snapshot carried for diagnostic
	// parity with older exports. Its scope is NOT reliably defined and it
	// MUST NOT be read by any stock calculation. See balance.go.
	BalanceQty decimal.Decimal

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// FILTER - Dimension filter for stock queries
// =============================================================================

// Filter selects ledger entries by dimension. ItemID is required;
// the remaining dimensions are optional (nil = any).
type Filter struct {
	ItemID      ItemID
	WarehouseID *WarehouseID
	LocationID  *LocationID
	BatchID     *BatchID
}

// Matches reports whether an entry falls within the filter.
func (f Filter) Matches(e Entry) bool {
	if e.ItemID != f.ItemID {
		return false
	}
	if f.WarehouseID != nil && e.WarehouseID != *f.WarehouseID {
		return false
	}
	if f.LocationID != nil && e.LocationID != *f.LocationID {
		return false
	}
	if f.BatchID != nil && e.BatchID != *f.BatchID {
		return false
	}
	return true
}

// ItemFilter is shorthand for an item-wide filter (all warehouses).
func ItemFilter(itemID ItemID) Filter {
	return Filter{ItemID: itemID}
}

// ItemWarehouseFilter scopes to a single warehouse.
func ItemWarehouseFilter(itemID ItemID, warehouseID WarehouseID) Filter {
	return Filter{ItemID: itemID, WarehouseID: &warehouseID}
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// DayOf truncates a time to midnight UTC. Per-day consumption series
// are keyed by this.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from 'from' to 'to' (day-truncated).
func DaysBetween(from, to time.Time) int {
	return int(DayOf(to).Sub(DayOf(from)).Hours() / 24)
}
