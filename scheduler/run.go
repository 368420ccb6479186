package scheduler

import (
	"context"
	"time"

	"github.com/warp/replenish-engine/reorder"
)

// =============================================================================
// RUN RECORDS - Audit trail for every scheduler cycle
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	// RunPartial means the run finished but some items errored.
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
	// RunCancelled marks runs abandoned mid-flight, e.g. rows still
	// running when the process died. The startup sweep assigns it.
	RunCancelled RunStatus = "cancelled"
)

type TriggeredBy string

const (
	TriggerCron   TriggeredBy = "cron"
	TriggerManual TriggeredBy = "manual"
)

type Run struct {
	ID          string
	TriggeredBy TriggeredBy
	Status      RunStatus

	ItemsProcessed      int
	ItemsEligible       int
	RequisitionsCreated int
	AlertsEscalated     int
	BatchAlertsRaised   int

	ItemErrors []reorder.ItemError
	Error      string

	StartedAt   time.Time
	CompletedAt *time.Time
}

func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunFilter narrows ListRuns; zero values mean no constraint.
type RunFilter struct {
	Status      RunStatus
	TriggeredBy TriggeredBy
	Limit       int
	Offset      int
}

// RunMetrics aggregates run history for the metrics endpoint.
type RunMetrics struct {
	TotalRuns           int
	CompletedRuns       int
	FailedRuns          int
	RequisitionsCreated int
	AvgDurationMillis   int64
	LastRunAt           *time.Time
}

type RunStore interface {
	// SaveRun inserts or replaces a run record by ID.
	SaveRun(ctx context.Context, run Run) error

	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Metrics(ctx context.Context) (RunMetrics, error)
}
