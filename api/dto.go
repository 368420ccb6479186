/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the control surface. Domain types stay internal;
  handlers convert at the boundary so wire format changes don't ripple
  into the engine.

CONVENTIONS:
  - Quantities and scores serialize as JSON numbers (float64); exact
    decimals stay inside the engine
  - Timestamps are RFC3339 strings
  - Optional fields are pointers with omitempty

SEE ALSO:
  - handlers.go: Where these are populated
*/
package api

import (
	"time"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/scheduler"
)

// =============================================================================
// SCHEDULER DTOs
// =============================================================================

type SchedulerStatusDTO struct {
	Enabled   bool       `json:"enabled"`
	Started   bool       `json:"started"`
	IsRunning bool       `json:"is_running"`
	Schedule  string     `json:"schedule"`
	BatchSize int        `json:"batch_size"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *RunDTO    `json:"last_run,omitempty"`
}

type ConfigDTO struct {
	Schedule      string `json:"schedule"`
	AlertSchedule string `json:"alert_schedule"`
	Enabled       bool   `json:"enabled"`
	BatchSize     int    `json:"batch_size"`
	Timezone      string `json:"timezone,omitempty"`
}

type RunNowResponseDTO struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type RunDTO struct {
	ID                  string         `json:"id"`
	TriggeredBy         string         `json:"triggered_by"`
	Status              string         `json:"status"`
	ItemsProcessed      int            `json:"items_processed"`
	ItemsEligible       int            `json:"items_eligible"`
	RequisitionsCreated int            `json:"requisitions_created"`
	AlertsEscalated     int            `json:"alerts_escalated"`
	BatchAlertsRaised   int            `json:"batch_alerts_raised"`
	ItemErrors          []ItemErrorDTO `json:"item_errors,omitempty"`
	Error               string         `json:"error,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	DurationMillis      int64          `json:"duration_ms"`
}

type ItemErrorDTO struct {
	ItemID  string `json:"item_id,omitempty"`
	Message string `json:"message"`
}

func toRunDTO(r scheduler.Run) RunDTO {
	dto := RunDTO{
		ID:                  r.ID,
		TriggeredBy:         string(r.TriggeredBy),
		Status:              string(r.Status),
		ItemsProcessed:      r.ItemsProcessed,
		ItemsEligible:       r.ItemsEligible,
		RequisitionsCreated: r.RequisitionsCreated,
		AlertsEscalated:     r.AlertsEscalated,
		BatchAlertsRaised:   r.BatchAlertsRaised,
		Error:               r.Error,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		DurationMillis:      r.Duration().Milliseconds(),
	}
	for _, ie := range r.ItemErrors {
		dto.ItemErrors = append(dto.ItemErrors, ItemErrorDTO{
			ItemID:  string(ie.ItemID),
			Message: ie.Message,
		})
	}
	return dto
}

type MetricsDTO struct {
	TotalRuns           int        `json:"total_runs"`
	CompletedRuns       int        `json:"completed_runs"`
	FailedRuns          int        `json:"failed_runs"`
	SuccessRate         float64    `json:"success_rate"`
	RequisitionsCreated int        `json:"requisitions_created"`
	AvgDurationMillis   int64      `json:"avg_duration_ms"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
}

// =============================================================================
// ALERT DTOs
// =============================================================================

type AlertDTO struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Title       string     `json:"title,omitempty"`
	Message     string     `json:"message,omitempty"`
	ItemID      string     `json:"item_id,omitempty"`
	WarehouseID string     `json:"warehouse_id,omitempty"`
	ReferenceID string     `json:"reference_id,omitempty"`
	IsRead      bool       `json:"is_read"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAlertDTO(a alert.Alert) AlertDTO {
	dto := AlertDTO{
		ID:          a.ID,
		Type:        string(a.Type),
		Severity:    string(a.Severity),
		Title:       a.Title,
		Message:     a.Message,
		ItemID:      string(a.ItemID),
		ReferenceID: a.ReferenceID,
		IsRead:      a.IsRead,
		EscalatedAt: a.EscalatedAt,
		CreatedAt:   a.CreatedAt,
	}
	if a.WarehouseID != nil {
		dto.WarehouseID = string(*a.WarehouseID)
	}
	return dto
}

// =============================================================================
// STOCK & DEMAND DTOs
// =============================================================================

type StockDTO struct {
	ItemID      string  `json:"item_id"`
	WarehouseID string  `json:"warehouse_id,omitempty"`
	Stock       float64 `json:"stock"`
}

type DemandDTO struct {
	ItemID              string  `json:"item_id"`
	AvgDailyConsumption float64 `json:"avg_daily_consumption"`
	VariabilityCV       float64 `json:"variability_cv"`
	DaysObserved        int     `json:"days_observed"`
	ForecastQty         float64 `json:"forecast_qty"`
	ForecastDays        int     `json:"forecast_days"`
	Confidence          string  `json:"confidence"`
	TrendDirection      string  `json:"trend_direction"`
	TrendChangePercent  float64 `json:"trend_change_percent"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
