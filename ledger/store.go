/*
store.go - Persistence interface for ledger entries

PURPOSE:
  Defines the interface between the ledger logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  The Store interface enforces append-only semantics:
  - Append(): Single entry write
  - AppendBatch(): Atomic multi-entry write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write may include an idempotency key. If the key already exists,
  the write is rejected. This prevents duplicate entries from network
  retries or user double-clicks.

AGGREGATION:
  SumQuantity/SumByItem push the SUM over the dimension filter down to
  the store (SQL SUM in the sqlite implementation). Callers must never
  derive stock from Entry.BalanceQty.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - balance.go: Stock calculation on top of Store
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Interface for entry persistence (append-only)
// =============================================================================

// Store handles persistence of ledger entries.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
// Corrections are made via counter-entries of opposite sign.
type Store interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if the
	// idempotency key exists. This is the ONLY write operation.
	Append(ctx context.Context, e Entry) error

	// AppendBatch persists multiple entries atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, entries []Entry) error

	// Entries returns all entries matching the filter, ordered by TxDate.
	Entries(ctx context.Context, f Filter) ([]Entry, error)

	// EntriesInRange returns matching entries with TxDate in [from, to].
	EntriesInRange(ctx context.Context, f Filter, from, to time.Time) ([]Entry, error)

	// SumQuantity returns the sum of signed quantities over the filter.
	// This is the authoritative stock figure for the dimension tuple.
	SumQuantity(ctx context.Context, f Filter) (decimal.Decimal, error)

	// SumByItem returns per-item quantity sums, optionally scoped to one
	// warehouse (nil = all warehouses).
	SumByItem(ctx context.Context, warehouseID *WarehouseID) (map[ItemID]decimal.Decimal, error)

	// Exists checks if an idempotency key is already recorded.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support. Use this when a ledger
// insert must commit together with other mutations (e.g., FEFO batch
// decrements on issuance).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
