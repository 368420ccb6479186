/*
batch.go - Batch/lot tracking with FEFO issue

PURPOSE:
  Tracks lot-level stock for batch-tracked items and issues against
  batches First-Expired-First-Out. Batches without an expiry date sort
  last so dated stock always moves first.

KEY CONCEPTS:
  - Allocation: a plan mapping batches to quantities, computed before
    anything is written
  - Issue: the allocation applied atomically - batch quantities
    decremented and one ledger entry per touched batch in a single
    transaction

SEE ALSO:
  - expiry.go: The expiry alert sweep
  - ledger/: Entries written per allocated batch
*/
package batch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// BATCH
// =============================================================================

type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDisposed Status = "disposed"
)

type Batch struct {
	ID          ledger.BatchID
	Number      string
	ItemID      ledger.ItemID
	WarehouseID ledger.WarehouseID
	LocationID  ledger.LocationID // optional; empty = warehouse-level

	// Quantity is the on-hand quantity in the lot. AvailableQty is the
	// unallocated portion; FEFO allocation draws from AvailableQty and
	// an issue decrements both.
	Quantity     decimal.Decimal
	AvailableQty decimal.Decimal

	// ExpiryDate is nil for non-perishable lots; they issue last.
	ExpiryDate *time.Time
	ReceivedAt time.Time
	Status     Status
}

func (b Batch) Expired(at time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(at)
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// ActiveBatches returns active batches with positive available
	// quantity for the item in the warehouse, expiry ascending with nil
	// expiry last.
	ActiveBatches(ctx context.Context, itemID ledger.ItemID, warehouseID ledger.WarehouseID) ([]Batch, error)

	// AllocateBatch reserves qty from the batch's available quantity
	// without moving stock. It fails if available would go negative.
	AllocateBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error

	// DecrementBatch subtracts qty from both the batch's on-hand and
	// available quantities. It fails if either would go negative.
	DecrementBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error

	// ExpiringBatches returns active batches whose expiry falls on or
	// before the cutoff, soonest first.
	ExpiringBatches(ctx context.Context, cutoff time.Time) ([]Batch, error)

	// MarkBatchExpired flips an active batch to expired.
	MarkBatchExpired(ctx context.Context, id ledger.BatchID) error
}

// IssueStore adds the ledger write and transaction boundary that an
// atomic issue needs on top of the batch store.
type IssueStore interface {
	Store
	AppendLedger(ctx context.Context, e *ledger.Entry) error
	WithTx(ctx context.Context, fn func(IssueStore) error) error
}

// =============================================================================
// FEFO ALLOCATION
// =============================================================================

// Allocation assigns part of a requested quantity to one batch.
type Allocation struct {
	Batch    Batch
	Quantity decimal.Decimal
}

// SortFEFO orders batches expiry ascending, nil expiry last. Ties keep
// received order.
func SortFEFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i].ExpiryDate, batches[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// Allocate plans a FEFO issue of qty across the given batches. It
// returns ledger.InsufficientStockError when the batches cannot cover
// the request; nothing is written either way.
func Allocate(batches []Batch, itemID ledger.ItemID, qty decimal.Decimal) ([]Allocation, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", ledger.ErrEntryInvalid)
	}

	SortFEFO(batches)

	var allocs []Allocation
	remaining := qty
	for _, b := range batches {
		if !remaining.IsPositive() {
			break
		}
		if !b.AvailableQty.IsPositive() || b.Status != StatusActive {
			continue
		}
		take := decimal.Min(b.AvailableQty, remaining)
		allocs = append(allocs, Allocation{Batch: b, Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, &ledger.InsufficientStockError{
			ItemID:    itemID,
			Requested: qty,
			Available: qty.Sub(remaining),
		}
	}
	return allocs, nil
}

// =============================================================================
// ISSUER
// =============================================================================

type Issuer struct {
	Store IssueStore

	Now func() time.Time
}

func NewIssuer(store IssueStore) *Issuer {
	return &Issuer{Store: store}
}

func (is *Issuer) now() time.Time {
	if is.Now != nil {
		return is.Now()
	}
	return time.Now().UTC()
}

// IssueRequest describes a FEFO issue of one item from one warehouse.
type IssueRequest struct {
	ItemID      ledger.ItemID
	WarehouseID ledger.WarehouseID
	Quantity    decimal.Decimal

	ReferenceType string
	ReferenceID   string
	Reason        string
	CreatedBy     string
}

// Issue allocates FEFO and applies the allocation atomically: every
// batch decrement and its matching ledger entry commit together or not
// at all.
func (is *Issuer) Issue(ctx context.Context, req IssueRequest) ([]Allocation, error) {
	batches, err := is.Store.ActiveBatches(ctx, req.ItemID, req.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("active batches for %s: %w", req.ItemID, err)
	}

	allocs, err := Allocate(batches, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}

	now := is.now()
	err = is.Store.WithTx(ctx, func(tx IssueStore) error {
		for _, a := range allocs {
			if err := tx.DecrementBatch(ctx, a.Batch.ID, a.Quantity); err != nil {
				return fmt.Errorf("decrement batch %s: %w", a.Batch.ID, err)
			}
			entry := &ledger.Entry{
				ID:            ledger.EntryID(uuid.New().String()),
				ItemID:        req.ItemID,
				WarehouseID:   req.WarehouseID,
				LocationID:    a.Batch.LocationID,
				BatchID:       a.Batch.ID,
				Kind:          ledger.TxIssue,
				Quantity:      a.Quantity.Neg(),
				TxDate:        now,
				ReferenceType: req.ReferenceType,
				ReferenceID:   req.ReferenceID,
				Reason:        req.Reason,
				CreatedBy:     req.CreatedBy,
				CreatedAt:     now,
			}
			if err := tx.AppendLedger(ctx, entry); err != nil {
				return fmt.Errorf("ledger entry for batch %s: %w", a.Batch.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return allocs, nil
}
