package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func datePtr(t time.Time) *time.Time { return &t }

func testBatch(id, number string, qty int64, expiry *time.Time) batch.Batch {
	return batch.Batch{
		ID:           ledger.BatchID(id),
		Number:       number,
		ItemID:       "itm-1",
		WarehouseID:  "wh-main",
		Quantity:     dec(qty),
		AvailableQty: dec(qty),
		ExpiryDate:   expiry,
		ReceivedAt:   testNow.AddDate(0, 0, -30),
		Status:       batch.StatusActive,
	}
}

// =============================================================================
// FEFO ORDERING
// =============================================================================

func TestSortFEFO_EarliestExpiryFirstNilLast(t *testing.T) {
	// GIVEN: Batches expiring late, early, and never
	// WHEN: Sorting FEFO
	// THEN: Earliest expiry leads, undated stock goes last

	batches := []batch.Batch{
		testBatch("b-late", "L-1", 10, datePtr(testNow.AddDate(0, 2, 0))),
		testBatch("b-never", "N-1", 10, nil),
		testBatch("b-early", "E-1", 10, datePtr(testNow.AddDate(0, 0, 10))),
	}

	batch.SortFEFO(batches)

	assert.Equal(t, ledger.BatchID("b-early"), batches[0].ID)
	assert.Equal(t, ledger.BatchID("b-late"), batches[1].ID)
	assert.Equal(t, ledger.BatchID("b-never"), batches[2].ID)
}

// =============================================================================
// ALLOCATION
// =============================================================================

func TestAllocate_SpansBatchesInExpiryOrder(t *testing.T) {
	// GIVEN: 30 units requested against batches of 20 (early) and 25 (late)
	// WHEN: Allocating
	// THEN: The early batch is fully drawn, the late one covers the rest

	batches := []batch.Batch{
		testBatch("b-late", "L-1", 25, datePtr(testNow.AddDate(0, 3, 0))),
		testBatch("b-early", "E-1", 20, datePtr(testNow.AddDate(0, 1, 0))),
	}

	allocs, err := batch.Allocate(batches, "itm-1", dec(30))
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, ledger.BatchID("b-early"), allocs[0].Batch.ID)
	assert.True(t, allocs[0].Quantity.Equal(dec(20)))
	assert.Equal(t, ledger.BatchID("b-late"), allocs[1].Batch.ID)
	assert.True(t, allocs[1].Quantity.Equal(dec(10)))
}

func TestAllocate_InsufficientStock(t *testing.T) {
	// GIVEN: Only 15 units across batches
	// WHEN: Requesting 40
	// THEN: InsufficientStockError reports what was available

	batches := []batch.Batch{
		testBatch("b-1", "B-1", 15, datePtr(testNow.AddDate(0, 1, 0))),
	}

	_, err := batch.Allocate(batches, "itm-1", dec(40))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Available.Equal(dec(15)))
	assert.True(t, stockErr.Requested.Equal(dec(40)))
}

func TestAllocate_SkipsEmptyAndInactiveBatches(t *testing.T) {
	// GIVEN: A zero-quantity batch, an expired-status batch, and a live one
	// WHEN: Allocating
	// THEN: Only the live batch is drawn

	empty := testBatch("b-empty", "X-1", 0, datePtr(testNow.AddDate(0, 0, 5)))
	expired := testBatch("b-expired", "X-2", 50, datePtr(testNow.AddDate(0, 0, 6)))
	expired.Status = batch.StatusExpired
	live := testBatch("b-live", "X-3", 50, datePtr(testNow.AddDate(0, 1, 0)))

	allocs, err := batch.Allocate([]batch.Batch{empty, expired, live}, "itm-1", dec(10))
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, ledger.BatchID("b-live"), allocs[0].Batch.ID)
}

func TestAllocate_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := batch.Allocate(nil, "itm-1", dec(0))
	assert.ErrorIs(t, err, ledger.ErrEntryInvalid)
}

func TestAllocate_DrawsFromAvailableNotOnHand(t *testing.T) {
	// GIVEN: An early batch with 50 on hand but only 10 available, and a
	//        later fully-available batch of 40
	// WHEN: Allocating 30
	// THEN: Only the 10 available units come from the early batch

	reserved := testBatch("b-reserved", "R-1", 50, datePtr(testNow.AddDate(0, 0, 10)))
	reserved.AvailableQty = dec(10)
	free := testBatch("b-free", "F-1", 40, datePtr(testNow.AddDate(0, 2, 0)))

	allocs, err := batch.Allocate([]batch.Batch{free, reserved}, "itm-1", dec(30))
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, ledger.BatchID("b-reserved"), allocs[0].Batch.ID)
	assert.True(t, allocs[0].Quantity.Equal(dec(10)))
	assert.Equal(t, ledger.BatchID("b-free"), allocs[1].Batch.ID)
	assert.True(t, allocs[1].Quantity.Equal(dec(20)))
}

// =============================================================================
// RESERVATION
// =============================================================================

func TestAllocateBatch_ReservesWithoutMovingStock(t *testing.T) {
	// GIVEN: A batch of 40, fully available
	// WHEN: Reserving 25
	// THEN: Available drops to 15 while on-hand stays 40; reserving
	//       beyond the remainder fails

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 40, nil)))

	require.NoError(t, store.AllocateBatch(ctx, "b-1", dec(25)))

	b, _ := store.Batch("b-1")
	assert.True(t, b.Quantity.Equal(dec(40)))
	assert.True(t, b.AvailableQty.Equal(dec(15)))

	err := store.AllocateBatch(ctx, "b-1", dec(20))
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

// =============================================================================
// ISSUER
// =============================================================================

func TestIssue_DecrementsBatchesAndWritesLedger(t *testing.T) {
	// GIVEN: Two dated batches totalling 45
	// WHEN: Issuing 30 FEFO
	// THEN: Batch quantities drop and one negative ledger entry per
	//       touched batch appears

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-early", "E-1", 20, datePtr(testNow.AddDate(0, 1, 0)))))
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-late", "L-1", 25, datePtr(testNow.AddDate(0, 3, 0)))))

	issuer := batch.NewIssuer(store.Issue())
	issuer.Now = func() time.Time { return testNow }

	allocs, err := issuer.Issue(ctx, batch.IssueRequest{
		ItemID:        "itm-1",
		WarehouseID:   "wh-main",
		Quantity:      dec(30),
		ReferenceType: "sales_order",
		ReferenceID:   "so-77",
		CreatedBy:     "picker-1",
	})
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	early, _ := store.Batch("b-early")
	assert.True(t, early.Quantity.IsZero())
	assert.True(t, early.AvailableQty.IsZero())
	late, _ := store.Batch("b-late")
	assert.True(t, late.Quantity.Equal(dec(15)))
	assert.True(t, late.AvailableQty.Equal(dec(15)))

	entries, err := store.Entries(ctx, ledger.ItemFilter("itm-1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	total := decimal.Zero
	for _, e := range entries {
		assert.Equal(t, ledger.TxIssue, e.Kind)
		assert.True(t, e.Quantity.IsNegative())
		assert.Equal(t, "so-77", e.ReferenceID)
		assert.NotEmpty(t, e.BatchID)
		total = total.Add(e.Quantity)
	}
	assert.True(t, total.Equal(dec(-30)))
}

func TestIssue_InsufficientStockWritesNothing(t *testing.T) {
	// GIVEN: 10 units on hand
	// WHEN: Issuing 50
	// THEN: The request fails and neither batches nor ledger change

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 10, datePtr(testNow.AddDate(0, 1, 0)))))

	issuer := batch.NewIssuer(store.Issue())

	_, err := issuer.Issue(ctx, batch.IssueRequest{
		ItemID: "itm-1", WarehouseID: "wh-main", Quantity: dec(50),
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	b, _ := store.Batch("b-1")
	assert.True(t, b.Quantity.Equal(dec(10)))
	entries, _ := store.Entries(ctx, ledger.ItemFilter("itm-1"))
	assert.Empty(t, entries)
}

// =============================================================================
// EXPIRY SWEEP
// =============================================================================

func newExpiryChecker(store *memory.Store) *batch.ExpiryChecker {
	ec := batch.NewExpiryChecker(store, store)
	ec.Now = func() time.Time { return testNow }
	return ec
}

func TestSweep_WarnsOnExpiringBatch(t *testing.T) {
	// GIVEN: A batch expiring in 20 days
	// WHEN: Sweeping with the 30-day warning horizon
	// THEN: A medium expiry alert references the batch

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 40, datePtr(testNow.AddDate(0, 0, 20)))))

	stats, err := newExpiryChecker(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expiring)

	has, err := store.HasUnreadAlert(ctx, alert.TypeBatchExpiry, "b-1")
	require.NoError(t, err)
	assert.True(t, has)

	alerts, _ := store.ListAlerts(ctx, true, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.SeverityMedium, alerts[0].Severity)
}

func TestSweep_UrgentWindowRaisesHigh(t *testing.T) {
	// GIVEN: A batch expiring in 5 days
	// WHEN: Sweeping
	// THEN: The alert is high severity

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 40, datePtr(testNow.AddDate(0, 0, 5)))))

	_, err := newExpiryChecker(store).Sweep(ctx)
	require.NoError(t, err)

	alerts, _ := store.ListAlerts(ctx, true, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.SeverityHigh, alerts[0].Severity)
}

func TestSweep_ExpiredBatchMarkedAndCritical(t *testing.T) {
	// GIVEN: An active batch 3 days past expiry with stock remaining
	// WHEN: Sweeping
	// THEN: The batch flips to expired and a critical alert is raised

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 12, datePtr(testNow.AddDate(0, 0, -3)))))

	stats, err := newExpiryChecker(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)

	b, _ := store.Batch("b-1")
	assert.Equal(t, batch.StatusExpired, b.Status)

	alerts, _ := store.ListAlerts(ctx, true, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, alert.TypeBatchExpired, alerts[0].Type)
}

func TestSweep_UnreadAlertSuppressesDuplicate(t *testing.T) {
	// GIVEN: A sweep already raised an alert for the batch
	// WHEN: Sweeping again while the alert is unread
	// THEN: No duplicate; after acknowledging, a later sweep may re-alert

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-1", "B-1", 40, datePtr(testNow.AddDate(0, 0, 20)))))
	checker := newExpiryChecker(store)

	_, err := checker.Sweep(ctx)
	require.NoError(t, err)
	_, err = checker.Sweep(ctx)
	require.NoError(t, err)

	alerts, _ := store.ListAlerts(ctx, false, 10)
	require.Len(t, alerts, 1, "second sweep must not duplicate the unread alert")

	require.NoError(t, store.MarkAlertRead(ctx, alerts[0].ID))
	_, err = checker.Sweep(ctx)
	require.NoError(t, err)

	alerts, _ = store.ListAlerts(ctx, false, 10)
	assert.Len(t, alerts, 2, "acknowledged alerts can recur")
}

func TestSweep_UndatedAndEmptyBatchesIgnored(t *testing.T) {
	// GIVEN: A batch with no expiry date and an expiring batch with zero stock
	// WHEN: Sweeping
	// THEN: Neither produces an alert

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-undated", "U-1", 40, nil)))
	require.NoError(t, store.SaveBatch(ctx, testBatch("b-empty", "E-1", 0, datePtr(testNow.AddDate(0, 0, 5)))))

	stats, err := newExpiryChecker(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Expiring)
	assert.Zero(t, stats.Expired)

	alerts, _ := store.ListAlerts(ctx, false, 10)
	assert.Empty(t, alerts)
}
