package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*ledger.DefaultLedger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.New(store), store
}

func receiptEntry(itemID, warehouseID string, qty int64, key string) ledger.Entry {
	return ledger.Entry{
		ItemID:         ledger.ItemID(itemID),
		WarehouseID:    ledger.WarehouseID(warehouseID),
		Quantity:       decimal.NewFromInt(qty),
		Kind:           ledger.TxReceipt,
		TxDate:         time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
	}
}

func issueEntry(itemID, warehouseID string, qty int64, key string) ledger.Entry {
	e := receiptEntry(itemID, warehouseID, -qty, key)
	e.Kind = ledger.TxIssue
	return e
}

// =============================================================================
// APPEND + SUM
// =============================================================================

func TestLedger_StockIsSumOfEntries(t *testing.T) {
	// GIVEN: A receipt of 100, an issue of 30, and a count correction of -2
	// WHEN: Summing the item's entries
	// THEN: Stock is 68 - no balance field, just the sum

	l, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, receiptEntry("itm-1", "wh-main", 100, "k1")))
	require.NoError(t, l.Append(ctx, issueEntry("itm-1", "wh-main", 30, "k2")))

	count := receiptEntry("itm-1", "wh-main", -2, "k3")
	count.Kind = ledger.TxCount
	require.NoError(t, l.Append(ctx, count))

	stock, err := store.SumQuantity(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, stock.Equal(decimal.NewFromInt(68)), "expected 68, got %s", stock)
}

func TestLedger_BalanceQtyIsNeverRead(t *testing.T) {
	// GIVEN: An entry carrying a wildly wrong legacy BalanceQty snapshot
	// WHEN: Computing stock
	// THEN: Only the signed quantities matter

	l, store := newTestLedger(t)
	ctx := context.Background()

	e := receiptEntry("itm-1", "wh-main", 10, "k1")
	e.BalanceQty = decimal.NewFromInt(99999)
	require.NoError(t, l.Append(ctx, e))

	stock, err := store.SumQuantity(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, stock.Equal(decimal.NewFromInt(10)))
}

func TestLedger_DimensionFilters(t *testing.T) {
	// GIVEN: The same item stocked in two warehouses and two batches
	// WHEN: Summing at item, warehouse, and batch scope
	// THEN: Each filter sees only its slice

	l, store := newTestLedger(t)
	ctx := context.Background()

	e1 := receiptEntry("itm-1", "wh-a", 40, "k1")
	e1.BatchID = "batch-1"
	e2 := receiptEntry("itm-1", "wh-a", 25, "k2")
	e2.BatchID = "batch-2"
	e3 := receiptEntry("itm-1", "wh-b", 35, "k3")
	require.NoError(t, l.Append(ctx, e1))
	require.NoError(t, l.Append(ctx, e2))
	require.NoError(t, l.Append(ctx, e3))

	total, err := store.SumQuantity(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)))

	whA, err := store.SumQuantity(ctx, ledger.ItemWarehouseFilter("itm-1", "wh-a"))
	require.NoError(t, err)
	assert.True(t, whA.Equal(decimal.NewFromInt(65)))

	batchID := ledger.BatchID("batch-1")
	wh := ledger.WarehouseID("wh-a")
	batchStock, err := store.SumQuantity(ctx, ledger.Filter{ItemID: "itm-1", WarehouseID: &wh, BatchID: &batchID})
	require.NoError(t, err)
	assert.True(t, batchStock.Equal(decimal.NewFromInt(40)))
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestLedger_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	// GIVEN: An entry recorded with idempotency key "grn-42"
	// WHEN: A retry appends the same key
	// THEN: The retry is rejected and stock is unchanged

	l, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, receiptEntry("itm-1", "wh-main", 100, "grn-42")))

	err := l.Append(ctx, receiptEntry("itm-1", "wh-main", 100, "grn-42"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	stock, err := store.SumQuantity(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, stock.Equal(decimal.NewFromInt(100)))
}

func TestLedger_AppendBatch_DuplicateKeyRejectsWholeBatch(t *testing.T) {
	// GIVEN: One entry already recorded
	// WHEN: A batch containing a fresh entry and the duplicate is appended
	// THEN: The whole batch is rejected, the fresh entry is not written

	l, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, receiptEntry("itm-1", "wh-main", 10, "k1")))

	err := l.AppendBatch(ctx, []ledger.Entry{
		receiptEntry("itm-1", "wh-main", 5, "k2"),
		receiptEntry("itm-1", "wh-main", 7, "k1"),
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	stock, err := store.SumQuantity(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, stock.Equal(decimal.NewFromInt(10)), "fresh entry must not land, got %s", stock)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestLedger_InvalidEntries_Rejected(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	missingItem := receiptEntry("", "wh-main", 10, "k1")
	assert.ErrorIs(t, l.Append(ctx, missingItem), ledger.ErrEntryInvalid)

	missingWarehouse := receiptEntry("itm-1", "", 10, "k2")
	assert.ErrorIs(t, l.Append(ctx, missingWarehouse), ledger.ErrEntryInvalid)

	zeroQty := receiptEntry("itm-1", "wh-main", 0, "k3")
	assert.ErrorIs(t, l.Append(ctx, zeroQty), ledger.ErrEntryInvalid)

	badKind := receiptEntry("itm-1", "wh-main", 10, "k4")
	badKind.Kind = "teleport"
	assert.ErrorIs(t, l.Append(ctx, badKind), ledger.ErrEntryInvalid)
}

// =============================================================================
// BALANCE CALCULATOR
// =============================================================================

func TestBalanceCalculator_CurrentStock(t *testing.T) {
	// GIVEN: Receipts and issues across two warehouses
	// WHEN: Asking for item-wide and warehouse-scoped stock
	// THEN: Both views are sums over their dimension

	l, store := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, receiptEntry("itm-1", "wh-a", 50, "k1")))
	require.NoError(t, l.Append(ctx, issueEntry("itm-1", "wh-a", 20, "k2")))
	require.NoError(t, l.Append(ctx, receiptEntry("itm-1", "wh-b", 15, "k3")))

	calc := ledger.NewBalanceCalculator(store)

	total, err := calc.CurrentStock(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(45)))

	whA, err := calc.CurrentStock(ctx, ledger.ItemWarehouseFilter("itm-1", "wh-a"))
	require.NoError(t, err)
	assert.True(t, whA.Equal(decimal.NewFromInt(30)))
}

func TestBalanceCalculator_RequiresItemDimension(t *testing.T) {
	_, store := newTestLedger(t)
	calc := ledger.NewBalanceCalculator(store)

	_, err := calc.CurrentStock(context.Background(), ledger.Filter{})
	assert.ErrorIs(t, err, ledger.ErrItemRequired)
}
