package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func newEscalator(t *testing.T) (*alert.Escalator, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.SaveUser(context.Background(), catalog.User{
		ID: "usr-1", Name: "Morgan", Email: "morgan@example.com",
		Role: catalog.RoleManager, Active: true,
	}))

	e := alert.NewEscalator(store, store, nil)
	e.Now = func() time.Time { return testNow }
	return e, store
}

func seedAlert(t *testing.T, store *memory.Store, id string, severity alert.Severity, age time.Duration) {
	t.Helper()
	created := testNow.Add(-age)
	require.NoError(t, store.CreateAlert(context.Background(), &alert.Alert{
		ID:          id,
		Type:        alert.TypeLowStock,
		Severity:    severity,
		Title:       "Low stock",
		Message:     "stock below safety level",
		ItemID:      "itm-1",
		ReferenceID: id,
		CreatedAt:   created,
		UpdatedAt:   created,
	}))
}

// =============================================================================
// ESCALATION
// =============================================================================

func TestSweep_StaleUnreadAlertEscalatesOneStep(t *testing.T) {
	// GIVEN: A medium alert unread for 25 hours
	// WHEN: Sweeping with the default 24h staleness
	// THEN: Severity bumps to high, exactly one step

	e, store := newEscalator(t)
	seedAlert(t, store, "a-1", alert.SeverityMedium, 25*time.Hour)

	stats, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Escalated)

	a, ok := store.Alert("a-1")
	require.True(t, ok)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	require.NotNil(t, a.EscalatedAt)
	assert.Equal(t, testNow, *a.EscalatedAt)
}

func TestSweep_FreshAlertLeftAlone(t *testing.T) {
	// GIVEN: A medium alert only 2 hours old
	// WHEN: Sweeping
	// THEN: Nothing escalates

	e, store := newEscalator(t)
	seedAlert(t, store, "a-1", alert.SeverityMedium, 2*time.Hour)

	stats, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Escalated)

	a, _ := store.Alert("a-1")
	assert.Equal(t, alert.SeverityMedium, a.Severity)
}

func TestSweep_ReadAlertNeverEscalates(t *testing.T) {
	// GIVEN: A stale alert that has been acknowledged
	// WHEN: Sweeping
	// THEN: Reading froze it; severity stays put

	e, store := newEscalator(t)
	ctx := context.Background()
	seedAlert(t, store, "a-1", alert.SeverityMedium, 48*time.Hour)
	require.NoError(t, store.MarkAlertRead(ctx, "a-1"))

	stats, err := e.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)

	a, _ := store.Alert("a-1")
	assert.Equal(t, alert.SeverityMedium, a.Severity)
}

func TestSweep_AgeCountsFromLastEscalation(t *testing.T) {
	// GIVEN: An alert created 3 days ago but escalated 1 hour ago
	// WHEN: Sweeping
	// THEN: The recent escalation resets the clock; no further bump

	e, store := newEscalator(t)
	ctx := context.Background()
	seedAlert(t, store, "a-1", alert.SeverityMedium, 72*time.Hour)
	require.NoError(t, store.EscalateAlert(ctx, "a-1", alert.SeverityHigh, testNow.Add(-time.Hour)))

	stats, err := e.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Escalated)

	a, _ := store.Alert("a-1")
	assert.Equal(t, alert.SeverityHigh, a.Severity)
}

// =============================================================================
// CRITICAL RE-NOTIFICATION
// =============================================================================

func TestSweep_CriticalRenotifiesWithoutChangingSeverity(t *testing.T) {
	// GIVEN: A critical alert last touched 7 hours ago
	// WHEN: Sweeping with the default 6h re-notify interval
	// THEN: It is re-notified, stays critical, and EscalatedAt refreshes

	e, store := newEscalator(t)
	seedAlert(t, store, "a-1", alert.SeverityCritical, 7*time.Hour)

	var notified int
	e.Notifier = alert.NotifierFunc(func(_ context.Context, a alert.Alert, recipients []catalog.User) error {
		notified++
		assert.Len(t, recipients, 1)
		return nil
	})

	stats, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Renotified)
	assert.Zero(t, stats.Escalated)
	assert.Equal(t, 1, notified)

	a, _ := store.Alert("a-1")
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	require.NotNil(t, a.EscalatedAt)
	assert.Equal(t, testNow, *a.EscalatedAt)
}

func TestSweep_CriticalWithinIntervalIsQuiet(t *testing.T) {
	// GIVEN: A critical alert re-notified 2 hours ago
	// WHEN: Sweeping
	// THEN: No repeat notification yet

	e, store := newEscalator(t)
	seedAlert(t, store, "a-1", alert.SeverityCritical, 2*time.Hour)

	stats, err := e.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Renotified)

	a, _ := store.Alert("a-1")
	assert.Nil(t, a.EscalatedAt)
}

// =============================================================================
// SEVERITY MONOTONICITY
// =============================================================================

func TestSeverity_EscalationLadder(t *testing.T) {
	assert.Equal(t, alert.SeverityMedium, alert.SeverityLow.Escalated())
	assert.Equal(t, alert.SeverityHigh, alert.SeverityMedium.Escalated())
	assert.Equal(t, alert.SeverityCritical, alert.SeverityHigh.Escalated())
	assert.Equal(t, alert.SeverityCritical, alert.SeverityCritical.Escalated())
}

func TestEscalateAlert_RefusesToLowerSeverity(t *testing.T) {
	// GIVEN: A high-severity alert
	// WHEN: Attempting to persist a downgrade to low
	// THEN: The store refuses; severity is monotonic

	_, store := newEscalator(t)
	ctx := context.Background()
	seedAlert(t, store, "a-1", alert.SeverityHigh, time.Hour)

	err := store.EscalateAlert(ctx, "a-1", alert.SeverityLow, testNow)
	assert.Error(t, err)

	a, _ := store.Alert("a-1")
	assert.Equal(t, alert.SeverityHigh, a.Severity)
}
