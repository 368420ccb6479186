/*
ledger.go - Append-only stock ledger

PURPOSE:
  The Ledger is the immutable source of truth for all stock changes.
  Every receipt, transfer, issue, adjustment, and count is recorded here.
  Stock is always computed by summing entries - there's no separate
  balance field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. AUDITABLE: Every quantity change is traceable with full context
  4. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

CORRECTIONS:
  If a mistake is made, you don't edit the entry. Instead:
  1. Append an adjustment entry (opposite sign)
  2. Both original and adjustment remain in the ledger
  3. Net effect is correction, but history is preserved

EXAMPLE FLOW:
  1. GRN posts 100 units:      TxReceipt    +100
  2. Sales order ships 30:     TxIssue      -30
  3. Count finds 2 missing:    TxCount      -2

  Stock = [+100, -30, -2] = 68 units

SEE ALSO:
  - store.go: Low-level persistence interface
  - balance.go: Dimension-scoped stock aggregation
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// LEDGER - Append-only entry log
// =============================================================================

// Ledger is the source of truth for all stock changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - Immutable: Once written, entries cannot be modified.
//   - Auditable: Every quantity change is traceable.
type Ledger interface {
	// Append adds an entry. Fails if the idempotency key exists.
	// This is the ONLY write operation.
	Append(ctx context.Context, e Entry) error

	// AppendBatch adds multiple entries atomically.
	// Used when one operation touches several dimensions (FEFO issuance
	// drawing from multiple batches).
	AppendBatch(ctx context.Context, entries []Entry) error

	// Entries returns all entries for the filter, chronologically. Read-only.
	Entries(ctx context.Context, f Filter) ([]Entry, error)

	// EntriesInRange returns entries with TxDate in [from, to]. Read-only.
	EntriesInRange(ctx context.Context, f Filter, from, to time.Time) ([]Entry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func New(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, e Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	if e.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, e)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, entries []Entry) error {
	// Validate and check all idempotency keys before writing anything
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return err
		}
		if e.IdempotencyKey != "" {
			exists, err := l.Store.Exists(ctx, e.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	return l.Store.AppendBatch(ctx, entries)
}

func (l *DefaultLedger) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	return l.Store.Entries(ctx, f)
}

func (l *DefaultLedger) EntriesInRange(ctx context.Context, f Filter, from, to time.Time) ([]Entry, error) {
	return l.Store.EntriesInRange(ctx, f, from, to)
}

func validateEntry(e Entry) error {
	if e.ItemID == "" {
		return fmt.Errorf("%w: missing item id", ErrEntryInvalid)
	}
	if e.WarehouseID == "" {
		return fmt.Errorf("%w: missing warehouse id", ErrEntryInvalid)
	}
	if e.Quantity.IsZero() {
		return fmt.Errorf("%w: zero quantity", ErrEntryInvalid)
	}
	switch e.Kind {
	case TxReceipt, TxTransfer, TxIssue, TxAdjustment, TxCount:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrEntryInvalid, e.Kind)
	}
	return nil
}
