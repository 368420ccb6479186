package reorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// REORDER QUEUE - Triggered items awaiting requisition generation
// =============================================================================

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

// QueueEntry is a snapshot of the decision that triggered a reorder.
// The stock figures are captured at scan time so the generated
// requisition records what the engine saw.
type QueueEntry struct {
	ID          string
	ItemID      ledger.ItemID
	WarehouseID *ledger.WarehouseID
	RuleID      string

	CurrentStock      decimal.Decimal
	ReorderPoint      decimal.Decimal
	SafetyStock       decimal.Decimal
	SuggestedQty      decimal.Decimal
	PriorityScore     int
	DaysUntilStockout *decimal.Decimal

	Status        QueueStatus
	FailureReason string

	// RetryCount counts failed processing attempts for this entry.
	RetryCount int

	// RequisitionID and AlertID are set when the entry completes.
	RequisitionID string
	AlertID       string

	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// QueueStore persists reorder queue entries.
//
// NextPending returns entries ordered by priority score descending,
// then created time ascending, so the most urgent items are drained
// first.
type QueueStore interface {
	Enqueue(ctx context.Context, entry QueueEntry) error
	NextPending(ctx context.Context, limit int) ([]QueueEntry, error)
	MarkProcessing(ctx context.Context, id string) error
	CompleteQueueEntry(ctx context.Context, id, requisitionID, alertID string, at time.Time) error
	FailQueueEntry(ctx context.Context, id, reason string, at time.Time) error
}
