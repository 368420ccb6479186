package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/warp/replenish-engine/alert"
)

// =============================================================================
// EXPIRY SWEEP - Alerts for expiring and expired batches
// =============================================================================

const (
	// expiryWarningDays is the early-warning horizon.
	expiryWarningDays = 30
	// expiryUrgentDays is the urgent horizon.
	expiryUrgentDays = 7
)

// ExpiryChecker raises alerts for batches approaching or past expiry.
// One unread alert per batch and type at a time; acknowledged alerts
// can recur on a later sweep.
type ExpiryChecker struct {
	Batches Store
	Alerts  alert.Store

	Now func() time.Time
}

func NewExpiryChecker(batches Store, alerts alert.Store) *ExpiryChecker {
	return &ExpiryChecker{Batches: batches, Alerts: alerts}
}

func (ec *ExpiryChecker) now() time.Time {
	if ec.Now != nil {
		return ec.Now()
	}
	return time.Now().UTC()
}

type ExpiryStats struct {
	Scanned  int
	Expiring int
	Expired  int
	Errors   int
}

// Sweep scans batches expiring within the warning horizon, raises
// expiry alerts, and marks past-expiry batches expired. Individual
// failures are counted and skipped.
func (ec *ExpiryChecker) Sweep(ctx context.Context) (ExpiryStats, error) {
	var stats ExpiryStats
	now := ec.now()

	cutoff := now.AddDate(0, 0, expiryWarningDays)
	batches, err := ec.Batches.ExpiringBatches(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("expiring batches: %w", err)
	}

	for _, b := range batches {
		stats.Scanned++
		if b.ExpiryDate == nil || !b.Quantity.IsPositive() {
			continue
		}

		if b.Expired(now) {
			if err := ec.handleExpired(ctx, b, now); err != nil {
				log.Printf("[Expiry] Batch %s: %v", b.ID, err)
				stats.Errors++
				continue
			}
			stats.Expired++
			continue
		}

		if err := ec.handleExpiring(ctx, b, now); err != nil {
			log.Printf("[Expiry] Batch %s: %v", b.ID, err)
			stats.Errors++
			continue
		}
		stats.Expiring++
	}

	if stats.Expiring > 0 || stats.Expired > 0 || stats.Errors > 0 {
		log.Printf("[Expiry] Sweep: %d scanned, %d expiring, %d expired, %d error(s)",
			stats.Scanned, stats.Expiring, stats.Expired, stats.Errors)
	}
	return stats, nil
}

func (ec *ExpiryChecker) handleExpiring(ctx context.Context, b Batch, now time.Time) error {
	exists, err := ec.Alerts.HasUnreadAlert(ctx, alert.TypeBatchExpiry, string(b.ID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	daysLeft := int(b.ExpiryDate.Sub(now).Hours() / 24)
	severity := alert.SeverityMedium
	if daysLeft <= expiryUrgentDays {
		severity = alert.SeverityHigh
	}

	warehouseID := b.WarehouseID
	return ec.Alerts.CreateAlert(ctx, &alert.Alert{
		ID:          uuid.New().String(),
		Type:        alert.TypeBatchExpiry,
		Severity:    severity,
		Title:       fmt.Sprintf("Batch %s expiring", b.Number),
		Message: fmt.Sprintf("Batch %s of item %s expires in %d day(s): %s on hand",
			b.Number, b.ItemID, daysLeft, b.Quantity.String()),
		ItemID:      b.ItemID,
		WarehouseID: &warehouseID,
		ReferenceID: string(b.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (ec *ExpiryChecker) handleExpired(ctx context.Context, b Batch, now time.Time) error {
	if b.Status == StatusActive {
		if err := ec.Batches.MarkBatchExpired(ctx, b.ID); err != nil {
			return err
		}
	}

	exists, err := ec.Alerts.HasUnreadAlert(ctx, alert.TypeBatchExpired, string(b.ID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	warehouseID := b.WarehouseID
	return ec.Alerts.CreateAlert(ctx, &alert.Alert{
		ID:          uuid.New().String(),
		Type:        alert.TypeBatchExpired,
		Severity:    alert.SeverityCritical,
		Title:       fmt.Sprintf("Batch %s expired", b.Number),
		Message: fmt.Sprintf("Batch %s of item %s expired on %s with %s still on hand",
			b.Number, b.ItemID, b.ExpiryDate.Format("2006-01-02"), b.Quantity.String()),
		ItemID:      b.ItemID,
		WarehouseID: &warehouseID,
		ReferenceID: string(b.ID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
