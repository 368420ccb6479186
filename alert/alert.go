/*
Package alert provides replenishment alerts with monotonic severity.

PURPOSE:
  Alerts are the engine's notification surface: low stock, generated
  requisitions, expiring batches. Severity only ever escalates while an
  alert is unread; acknowledging (marking read) freezes it.

KEY TYPES:
  - Alert: a single notification row, with read/assignment state
  - Severity: Low -> Medium -> High -> Critical, strictly one-way
  - Store: persistence interface (sqlite + memory implementations)

SEE ALSO:
  - escalator.go: Raises severity of stale unread alerts
  - reorder/requisition.go: Creates alerts atomically with requisitions
*/
package alert

import (
	"context"
	"time"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// SEVERITY - Monotonic escalation ladder
// =============================================================================

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparison. Unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Escalated returns the next severity up. Critical stays Critical -
// severity never decreases.
func (s Severity) Escalated() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// =============================================================================
// ALERT
// =============================================================================

type Type string

const (
	TypeReorder      Type = "reorder"       // Requisition generated
	TypeLowStock     Type = "low_stock"     // Below safety stock / stockout
	TypeBatchExpiry  Type = "batch_expiry"  // Batch within expiry threshold
	TypeBatchExpired Type = "batch_expired" // Batch past expiry
)

type Alert struct {
	ID       string
	Type     Type
	Severity Severity
	Title    string
	Message  string

	ItemID      ledger.ItemID
	WarehouseID *ledger.WarehouseID

	// ReferenceID links to the record this alert is about
	// (requisition id, batch id).
	ReferenceID string

	IsRead     bool
	AssignedTo string

	EscalatedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	CreateAlert(ctx context.Context, a *Alert) error

	// ListUnread returns all unread alerts, oldest first.
	ListUnread(ctx context.Context) ([]Alert, error)

	// EscalateAlert persists a severity bump. Implementations must refuse
	// to lower severity.
	EscalateAlert(ctx context.Context, id string, severity Severity, at time.Time) error

	// MarkAlertRead acknowledges an alert, which stops escalation.
	MarkAlertRead(ctx context.Context, id string) error

	// HasUnreadAlert reports whether an unread alert of the given type
	// already references the record. Used to avoid duplicate expiry
	// alerts for the same batch.
	HasUnreadAlert(ctx context.Context, typ Type, referenceID string) (bool, error)
}
