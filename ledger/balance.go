/*
balance.go - Dimension-scoped stock aggregation

PURPOSE:
  Computes current stock from ledger entries. This is the central
  calculation that answers "how much of this item is on hand?"

KEY INSIGHT:
  Stock is ALWAYS a SUM over ledger entries matching a dimension filter.
  Entries carry a legacy BalanceQty snapshot whose scope (warehouse-global
  vs dimension-specific) was never reliably defined; it is non-authoritative
  and nothing in this package reads it. Only the SUM-based contract is
  guaranteed correct.

ADDITIVITY INVARIANT:
  For all (item, warehouse, location?, batch?) filters:
    CurrentStock(filter) == sum of Quantity over all matching entries
  regardless of insertion order.

CONCURRENCY NOTE:
  The calculation itself is a read-only SUM. The engine takes no locks
  across a read and a subsequent ledger insert - two concurrent issuances
  against the same dimension tuple can race. Closing that gap requires a
  per-dimension serializing lock or row-level locking at the store.

SEE ALSO:
  - ledger.go: Entry persistence
  - demand/: Consumption statistics built on the same entries
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE CALCULATOR - Pure derived stock, no side effects
// =============================================================================

// BalanceCalculator computes current stock by SUM aggregation over
// the ledger. Purely derived; never writes.
type BalanceCalculator struct {
	Store Store
}

func NewBalanceCalculator(store Store) *BalanceCalculator {
	return &BalanceCalculator{Store: store}
}

// CurrentStock returns the signed quantity sum over all entries
// matching the filter.
func (bc *BalanceCalculator) CurrentStock(ctx context.Context, f Filter) (decimal.Decimal, error) {
	if f.ItemID == "" {
		return decimal.Zero, ErrItemRequired
	}
	return bc.Store.SumQuantity(ctx, f)
}

// AllItemsStock returns the same sum grouped by item, optionally scoped
// to a single warehouse (nil = all warehouses).
func (bc *BalanceCalculator) AllItemsStock(ctx context.Context, warehouseID *WarehouseID) (map[ItemID]decimal.Decimal, error) {
	return bc.Store.SumByItem(ctx, warehouseID)
}
