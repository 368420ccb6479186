package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/demand"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
	"github.com/warp/replenish-engine/scheduler"
	"github.com/warp/replenish-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func disabledConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Enabled = false // tests trigger manually
	return cfg
}

// newScheduler wires a full engine stack over one in-memory store. The
// rules store is swappable so tests can block a run mid-scan.
func newScheduler(t *testing.T, store *memory.Store, rules reorder.RuleStore) *scheduler.Scheduler {
	s := newSchedulerWithConfig(t, store, rules, disabledConfig())
	require.NoError(t, s.Start())
	return s
}

func newSchedulerWithConfig(t *testing.T, store *memory.Store, rules reorder.RuleStore, cfg scheduler.Config) *scheduler.Scheduler {
	t.Helper()

	require.NoError(t, store.SaveUser(context.Background(), catalog.User{
		ID: "usr-manager", Name: "Morgan Vale", Role: catalog.RoleManager, Active: true,
	}))

	balance := ledger.NewBalanceCalculator(store)
	demandEngine := demand.NewEngine(store, store)

	engine := reorder.NewDecisionEngine(balance, demandEngine, store, rules, store, store)
	generator := reorder.NewGenerator(store, store.Generator(), store, rules, store)
	escalator := alert.NewEscalator(store, store, nil)
	expiry := batch.NewExpiryChecker(store, store)

	s := scheduler.New(cfg, engine, generator, escalator, expiry, store)
	t.Cleanup(func() { _ = s.Shutdown(5 * time.Second) })
	return s
}

// blockingRules parks ListActiveRules until released, keeping a run
// in flight for as long as a test needs.
type blockingRules struct {
	reorder.RuleStore
	release chan struct{}
}

func (b *blockingRules) ListActiveRules(ctx context.Context) ([]reorder.Rule, error) {
	<-b.release
	return b.RuleStore.ListActiveRules(ctx)
}

func waitForRun(t *testing.T, store *memory.Store, runID string) scheduler.Run {
	t.Helper()
	var run scheduler.Run
	require.Eventually(t, func() bool {
		r, err := store.GetRun(context.Background(), runID)
		if err != nil || r == nil || r.CompletedAt == nil {
			return false
		}
		run = *r
		return true
	}, 5*time.Second, 10*time.Millisecond, "run %s never finished", runID)
	return run
}

// =============================================================================
// CONFIG VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	cfg := scheduler.DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.Schedule = "not a cron line"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.AlertSchedule = "* * *"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.BatchSize = 0
	assert.Error(t, bad.Validate())
}

func TestUpdateConfig_RejectsInvalid(t *testing.T) {
	store := memory.New()
	s := newScheduler(t, store, store)

	bad := scheduler.DefaultConfig()
	bad.Schedule = "99 99 * * *"
	assert.Error(t, s.UpdateConfig(bad))

	// The old config survives a rejected update.
	assert.Equal(t, disabledConfig().Schedule, s.Config().Schedule)
}

// =============================================================================
// MANUAL TRIGGERING
// =============================================================================

func TestRunNow_RecordsCompletedRun(t *testing.T) {
	// GIVEN: An idle scheduler with nothing to reorder
	// WHEN: Triggering a manual run
	// THEN: The run is accepted and recorded as completed

	store := memory.New()
	s := newScheduler(t, store, store)

	result := s.RunNow()
	require.True(t, result.Accepted)
	require.NotEmpty(t, result.RunID)

	run := waitForRun(t, store, result.RunID)
	assert.Equal(t, scheduler.RunCompleted, run.Status)
	assert.Equal(t, scheduler.TriggerManual, run.TriggeredBy)
	assert.Empty(t, run.ItemErrors)
}

func TestRunNow_SecondCallWhileRunningIsRejected(t *testing.T) {
	// GIVEN: A run parked mid-scan
	// WHEN: Triggering again
	// THEN: The second call reports busy without creating a run

	store := memory.New()
	rules := &blockingRules{RuleStore: store, release: make(chan struct{})}
	s := newScheduler(t, store, rules)

	first := s.RunNow()
	require.True(t, first.Accepted)

	second := s.RunNow()
	assert.False(t, second.Accepted)
	assert.Contains(t, second.Reason, "already in progress")
	assert.Empty(t, second.RunID)

	close(rules.release)
	waitForRun(t, store, first.RunID)

	// With the first run finished, triggering works again.
	third := s.RunNow()
	assert.True(t, third.Accepted)
	waitForRun(t, store, third.RunID)
}

func TestRunNow_AcceptedWhileCronDisabled(t *testing.T) {
	// GIVEN: A scheduler started with cron disabled
	// WHEN: Triggering manually
	// THEN: Manual runs still execute

	store := memory.New()
	s := newScheduler(t, store, store)

	st := s.Status()
	assert.False(t, st.Enabled)
	assert.Nil(t, st.NextRun)

	result := s.RunNow()
	assert.True(t, result.Accepted)
	waitForRun(t, store, result.RunID)
}

func TestStatus_ReflectsLastRun(t *testing.T) {
	store := memory.New()
	s := newScheduler(t, store, store)

	result := s.RunNow()
	require.True(t, result.Accepted)
	waitForRun(t, store, result.RunID)

	require.Eventually(t, func() bool {
		st := s.Status()
		return !st.IsRunning && st.LastRun != nil && st.LastRun.ID == result.RunID
	}, 5*time.Second, 10*time.Millisecond)
}

// =============================================================================
// STARTUP
// =============================================================================

func TestStart_SecondCallIsNoOp(t *testing.T) {
	store := memory.New()
	s := newScheduler(t, store, store)

	assert.NoError(t, s.Start())
	assert.True(t, s.Status().Started)
}

func TestStart_CancelsAbandonedRuns(t *testing.T) {
	// GIVEN: A run row left in running state by a dead process
	// WHEN: Starting the scheduler
	// THEN: The row is closed out as cancelled; finished rows untouched

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, scheduler.Run{
		ID: "run-stale", TriggeredBy: scheduler.TriggerCron,
		Status: scheduler.RunRunning, StartedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))
	done := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SaveRun(ctx, scheduler.Run{
		ID: "run-done", TriggeredBy: scheduler.TriggerCron,
		Status: scheduler.RunCompleted, StartedAt: done.Add(-time.Minute), CompletedAt: &done,
	}))

	newScheduler(t, store, store)

	stale, err := store.GetRun(ctx, "run-stale")
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Equal(t, scheduler.RunCancelled, stale.Status)
	assert.Contains(t, stale.Error, "abandoned")
	require.NotNil(t, stale.CompletedAt)

	finished, err := store.GetRun(ctx, "run-done")
	require.NoError(t, err)
	assert.Equal(t, scheduler.RunCompleted, finished.Status)
}

func TestStatus_NextRunTracksCycleNotAlertSweep(t *testing.T) {
	// GIVEN: A yearly replenishment cycle and a minutely alert sweep
	// WHEN: Reading status
	// THEN: NextRun reports the cycle's fire time, not the sweep's

	store := memory.New()
	cfg := scheduler.DefaultConfig()
	cfg.Schedule = "0 0 1 1 *" // once a year
	cfg.AlertSchedule = "* * * * *"
	s := newSchedulerWithConfig(t, store, store, cfg)
	require.NoError(t, s.Start())

	st := s.Status()
	require.NotNil(t, st.NextRun)
	assert.Greater(t, time.Until(*st.NextRun), time.Hour,
		"the minutely alert sweep must not be reported as the cycle's next run")
}

// =============================================================================
// FULL CYCLE
// =============================================================================

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// seedShortfallScenario sets up an item at stock 30 against a reorder
// point of 50, consuming 5/day, with one supplier.
func seedShortfallScenario(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveItem(ctx, catalog.Item{
		ID: "itm-1", SKU: "SKU-1", Name: "Widget",
		ReorderPoint: dec(50), SafetyStock: dec(20), LeadTimeDays: 5,
		Active: true,
	}))

	// Receipt then 30 days of issuing 5/day nets out to 30 on hand.
	require.NoError(t, store.Append(ctx, ledger.Entry{
		ItemID: "itm-1", WarehouseID: "wh-main",
		Quantity: dec(180), Kind: ledger.TxReceipt,
		TxDate: now.AddDate(0, 0, -60),
	}))
	for d := 1; d <= 30; d++ {
		require.NoError(t, store.Append(ctx, ledger.Entry{
			ItemID: "itm-1", WarehouseID: "wh-main",
			Quantity: dec(-5), Kind: ledger.TxIssue,
			TxDate: now.AddDate(0, 0, -d),
		}))
	}

	rule := reorder.Rule{
		ID: "rule-1", ItemID: "itm-1", Kind: reorder.KindDynamic,
		AutoGenerate: true, Priority: reorder.PriorityMedium,
		MinOrderQty: dec(40), Active: true,
	}
	require.NoError(t, store.SaveRule(ctx, &rule))

	require.NoError(t, store.SaveQuote(ctx, catalog.Quote{
		Supplier: catalog.Supplier{
			ID: "sup-1", Name: "Acme Supply", Active: true,
			Rating: dec(4), LeadTimeDays: 5,
		},
		ItemID:    "itm-1",
		UnitPrice: decimal.NewFromFloat(9.50),
	}))
}

func TestRunNow_FullCycle_GeneratesRequisitionOnce(t *testing.T) {
	// GIVEN: An item below its reorder point with demand history and a
	//        supplier
	// WHEN: Running a full cycle, then running again
	// THEN: The first run scans, queues, and generates exactly one
	//       requisition with its alert; the second run stacks nothing

	store := memory.New()
	seedShortfallScenario(t, store)
	s := newScheduler(t, store, store)

	first := s.RunNow()
	require.True(t, first.Accepted)
	run := waitForRun(t, store, first.RunID)

	assert.Equal(t, scheduler.RunCompleted, run.Status)
	assert.Equal(t, 1, run.ItemsProcessed)
	assert.Equal(t, 1, run.ItemsEligible)
	assert.Equal(t, 1, run.RequisitionsCreated)

	ctx := context.Background()
	prs, err := store.ListRequisitions(ctx)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	require.Len(t, prs[0].Lines, 1)
	assert.True(t, prs[0].Lines[0].Quantity.GreaterThanOrEqual(dec(40)))
	assert.Equal(t, "sup-1", prs[0].SupplierID)
	assert.GreaterOrEqual(t, prs[0].PriorityScore, 70)

	alerts, err := store.ListAlerts(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.TypeReorder, alerts[0].Type)

	// Second cycle: the open requisition suppresses another one.
	second := s.RunNow()
	require.True(t, second.Accepted)
	waitForRun(t, store, second.RunID)

	prs, err = store.ListRequisitions(ctx)
	require.NoError(t, err)
	assert.Len(t, prs, 1, "open requisition must not be stacked")
}

// =============================================================================
// SHUTDOWN
// =============================================================================

func TestShutdown_WaitsForInFlightRun(t *testing.T) {
	// GIVEN: A run parked mid-scan
	// WHEN: Shutting down with a short timeout
	// THEN: Shutdown times out; after release it returns promptly

	store := memory.New()
	rules := &blockingRules{RuleStore: store, release: make(chan struct{})}
	s := newScheduler(t, store, rules)

	result := s.RunNow()
	require.True(t, result.Accepted)

	err := s.Shutdown(50 * time.Millisecond)
	assert.Error(t, err, "in-flight run should hold up shutdown")

	close(rules.release)
	waitForRun(t, store, result.RunID)
	assert.NoError(t, s.Shutdown(5*time.Second))
}
