package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// BATCH STORE (batch.Store interface)
// =============================================================================

// SaveBatch inserts or replaces a batch record.
func (s *Store) SaveBatch(ctx context.Context, b batch.Batch) error {
	var expiry sql.NullString
	if b.ExpiryDate != nil {
		expiry = nullString(b.ExpiryDate.Format(time.RFC3339))
	}

	query := `
		INSERT OR REPLACE INTO batches
		(id, number, item_id, warehouse_id, location_id, quantity, available_qty, expiry_date, received_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(b.ID), b.Number, string(b.ItemID), string(b.WarehouseID),
		nullString(string(b.LocationID)), b.Quantity.String(), b.AvailableQty.String(), expiry,
		b.ReceivedAt.Format(time.RFC3339), string(b.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

const batchColumns = `id, number, item_id, warehouse_id, location_id, quantity,
	available_qty, expiry_date, received_at, status`

// ActiveBatches returns active batches with positive available
// quantity for the item in the warehouse, expiry ascending with nil
// expiry last.
func (s *Store) ActiveBatches(ctx context.Context, itemID ledger.ItemID, warehouseID ledger.WarehouseID) ([]batch.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM batches
		WHERE item_id = ? AND warehouse_id = ? AND status = 'active'
		  AND CAST(available_qty AS REAL) > 0
		ORDER BY expiry_date IS NULL, expiry_date ASC, received_at ASC
	`, batchColumns)
	return s.queryBatches(ctx, query, string(itemID), string(warehouseID))
}

// AllocateBatch reserves qty from the batch's available quantity,
// refusing to go negative.
func (s *Store) AllocateBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	b, err := s.readBatchQuantities(ctx, s.db, id)
	if err != nil {
		return err
	}

	available := b.AvailableQty.Sub(qty)
	if available.IsNegative() {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrInsufficientStock)
	}

	_, err = s.db.ExecContext(ctx, "UPDATE batches SET available_qty = ? WHERE id = ?",
		available.String(), string(id))
	if err != nil {
		return fmt.Errorf("failed to allocate batch: %w", err)
	}
	return nil
}

// DecrementBatch subtracts qty from the batch's on-hand and available
// quantities, refusing to take either negative.
func (s *Store) DecrementBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	return s.decrementBatch(ctx, s.db, id, qty)
}

// decrementBatch reads then writes; callers needing atomicity run it
// inside WithTx on the issue facade.
func (s *Store) decrementBatch(ctx context.Context, db execer, id ledger.BatchID, qty decimal.Decimal) error {
	b, err := s.readBatchQuantities(ctx, db, id)
	if err != nil {
		return err
	}

	remaining := b.Quantity.Sub(qty)
	available := b.AvailableQty.Sub(qty)
	if remaining.IsNegative() || available.IsNegative() {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrInsufficientStock)
	}

	_, err = db.ExecContext(ctx, "UPDATE batches SET quantity = ?, available_qty = ? WHERE id = ?",
		remaining.String(), available.String(), string(id))
	if err != nil {
		return fmt.Errorf("failed to decrement batch: %w", err)
	}
	return nil
}

func (s *Store) readBatchQuantities(ctx context.Context, db execer, id ledger.BatchID) (batch.Batch, error) {
	var b batch.Batch
	var qty, available string
	err := db.QueryRowContext(ctx,
		"SELECT quantity, available_qty FROM batches WHERE id = ?", string(id)).Scan(&qty, &available)
	if err == sql.ErrNoRows {
		return b, fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return b, fmt.Errorf("failed to read batch: %w", err)
	}
	b.Quantity = mustDecimal(qty)
	b.AvailableQty = mustDecimal(available)
	return b, nil
}

// ExpiringBatches returns active batches with expiry on or before the
// cutoff, soonest first. Includes already-expired batches.
func (s *Store) ExpiringBatches(ctx context.Context, cutoff time.Time) ([]batch.Batch, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM batches
		WHERE status IN ('active', 'expired') AND expiry_date IS NOT NULL AND expiry_date <= ?
		  AND CAST(quantity AS REAL) > 0
		ORDER BY expiry_date ASC
	`, batchColumns)
	return s.queryBatches(ctx, query, cutoff.Format(time.RFC3339))
}

// MarkBatchExpired flips an active batch to expired.
func (s *Store) MarkBatchExpired(ctx context.Context, id ledger.BatchID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE batches SET status = 'expired' WHERE id = ? AND status = 'active'", string(id))
	if err != nil {
		return fmt.Errorf("failed to mark batch expired: %w", err)
	}
	return nil
}

func (s *Store) queryBatches(ctx context.Context, query string, args ...any) ([]batch.Batch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []batch.Batch
	for rows.Next() {
		var (
			b                      batch.Batch
			id, itemID, warehouse  string
			locationID             sql.NullString
			qty, receivedAt, state string
			expiry                 sql.NullString
		)
		var available string
		err := rows.Scan(&id, &b.Number, &itemID, &warehouse, &locationID,
			&qty, &available, &expiry, &receivedAt, &state)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.AvailableQty = mustDecimal(available)
		b.ID = ledger.BatchID(id)
		b.ItemID = ledger.ItemID(itemID)
		b.WarehouseID = ledger.WarehouseID(warehouse)
		b.LocationID = ledger.LocationID(locationID.String)
		b.Quantity = mustDecimal(qty)
		b.ExpiryDate = parseNullTime(expiry)
		b.ReceivedAt, _ = time.Parse(time.RFC3339, receivedAt)
		b.Status = batch.Status(state)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// =============================================================================
// ISSUE FACADE (batch.IssueStore interface)
// =============================================================================

// Issue returns a batch.IssueStore backed by this store, so FEFO
// decrements and their ledger entries commit in one transaction.
func (s *Store) Issue() batch.IssueStore {
	return &issueStore{parent: s, db: s.db}
}

type issueStore struct {
	parent *Store
	db     execer
	inTx   bool
}

func (is *issueStore) ActiveBatches(ctx context.Context, itemID ledger.ItemID, warehouseID ledger.WarehouseID) ([]batch.Batch, error) {
	return is.parent.ActiveBatches(ctx, itemID, warehouseID)
}

func (is *issueStore) AllocateBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	return is.parent.AllocateBatch(ctx, id, qty)
}

func (is *issueStore) DecrementBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	return is.parent.decrementBatch(ctx, is.db, id, qty)
}

func (is *issueStore) ExpiringBatches(ctx context.Context, cutoff time.Time) ([]batch.Batch, error) {
	return is.parent.ExpiringBatches(ctx, cutoff)
}

func (is *issueStore) MarkBatchExpired(ctx context.Context, id ledger.BatchID) error {
	return is.parent.MarkBatchExpired(ctx, id)
}

func (is *issueStore) AppendLedger(ctx context.Context, e *ledger.Entry) error {
	return is.parent.appendEntry(ctx, is.db, *e)
}

func (is *issueStore) WithTx(ctx context.Context, fn func(batch.IssueStore) error) error {
	if is.inTx {
		return fn(is)
	}

	sqlTx, err := is.parent.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&issueStore{parent: is.parent, db: sqlTx, inTx: true}); err != nil {
		return err
	}
	return sqlTx.Commit()
}
