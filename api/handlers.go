/*
handlers.go - HTTP control surface for the replenishment engine

PURPOSE:
  Exposes scheduler control, run history, metrics, alerts and read-only
  stock/demand lookups via REST. Handles HTTP request/response and JSON
  serialization, delegating everything else to the domain packages.

ENDPOINTS:
  Scheduler:
    GET    /api/scheduler/status       Current status + next/last run
    POST   /api/scheduler/start        Start cron triggering
    POST   /api/scheduler/stop         Stop cron, wait for in-flight run
    POST   /api/scheduler/run-now      Trigger an immediate cycle (202/409)
    PUT    /api/scheduler/config       Update schedule/batch size
    GET    /api/scheduler/runs         Run history (paginated, filtered)
    GET    /api/scheduler/runs/{id}    One run

  Metrics:
    GET    /api/metrics                Run aggregates

  Alerts:
    GET    /api/alerts                 List alerts (?unread=true&limit=N)
    POST   /api/alerts/{id}/read       Acknowledge (stops escalation)

  Rules:
    GET    /api/rules                  List active reorder rules
    GET    /api/rules/{id}             One rule
    PUT    /api/rules                  Create/replace a rule (JSON definition)

  Lookups:
    GET    /api/items/{id}/stock       Ledger-derived stock (?warehouse=)
    GET    /api/items/{id}/demand      Consumption stats + forecast

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (run already in progress)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The control surface is assumed to sit behind an
  internal gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/demand"
	"github.com/warp/replenish-engine/factory"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
	"github.com/warp/replenish-engine/scheduler"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AlertStore is the alert surface the API needs: the engine-facing
// store plus the list query both store implementations provide.
type AlertStore interface {
	alert.Store
	ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]alert.Alert, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Scheduler *scheduler.Scheduler
	Runs      scheduler.RunStore
	Alerts    AlertStore
	Rules     reorder.RuleStore
	Balance   *ledger.BalanceCalculator
	Demand    *demand.Engine

	ruleFactory *factory.RuleFactory
}

// NewHandler creates a new handler.
func NewHandler(sched *scheduler.Scheduler, runs scheduler.RunStore, alerts AlertStore, rules reorder.RuleStore, balance *ledger.BalanceCalculator, demandEngine *demand.Engine) *Handler {
	return &Handler{
		Scheduler:   sched,
		Runs:        runs,
		Alerts:      alerts,
		Rules:       rules,
		Balance:     balance,
		Demand:      demandEngine,
		ruleFactory: factory.NewRuleFactory(),
	}
}

// =============================================================================
// SCHEDULER HANDLERS
// =============================================================================

// GetStatus returns the scheduler's current state.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.Scheduler.Status()

	dto := SchedulerStatusDTO{
		Enabled:   st.Enabled,
		Started:   st.Started,
		IsRunning: st.IsRunning,
		Schedule:  st.Schedule,
		BatchSize: st.BatchSize,
		NextRun:   st.NextRun,
	}
	if st.LastRun != nil {
		last := toRunDTO(*st.LastRun)
		dto.LastRun = &last
	}
	writeJSON(w, http.StatusOK, dto)
}

// StartScheduler begins cron triggering.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.Start(); err != nil {
		writeError(w, http.StatusBadRequest, "could not start scheduler", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// StopScheduler stops cron triggering, waiting briefly for an
// in-flight run.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.Shutdown(10 * time.Second); err != nil {
		writeError(w, http.StatusInternalServerError, "scheduler did not stop cleanly", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// RunNow triggers an immediate cycle. 202 when accepted, 409 when a
// run is already in progress.
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	result := h.Scheduler.RunNow()

	dto := RunNowResponseDTO{
		Accepted: result.Accepted,
		RunID:    result.RunID,
		Reason:   result.Reason,
	}
	if !result.Accepted {
		writeJSON(w, http.StatusConflict, dto)
		return
	}
	writeJSON(w, http.StatusAccepted, dto)
}

// UpdateConfig replaces the scheduler configuration.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var dto ConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config JSON", err)
		return
	}

	cfg := scheduler.Config{
		Schedule:      dto.Schedule,
		AlertSchedule: dto.AlertSchedule,
		Enabled:       dto.Enabled,
		BatchSize:     dto.BatchSize,
	}
	if dto.Timezone != "" {
		loc, err := time.LoadLocation(dto.Timezone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timezone", err)
			return
		}
		cfg.Location = loc
	}

	if err := h.Scheduler.UpdateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ListRuns returns run history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := scheduler.RunFilter{
		Status:      scheduler.RunStatus(r.URL.Query().Get("status")),
		TriggeredBy: scheduler.TriggeredBy(r.URL.Query().Get("triggered_by")),
		Limit:       queryInt(r, "limit", 50),
		Offset:      queryInt(r, "offset", 0),
	}

	runs, err := h.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// GetMetrics returns run aggregates.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.Runs.Metrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not aggregate runs", err)
		return
	}

	dto := MetricsDTO{
		TotalRuns:           m.TotalRuns,
		CompletedRuns:       m.CompletedRuns,
		FailedRuns:          m.FailedRuns,
		RequisitionsCreated: m.RequisitionsCreated,
		AvgDurationMillis:   m.AvgDurationMillis,
		LastRunAt:           m.LastRunAt,
	}
	if m.TotalRuns > 0 {
		dto.SuccessRate = float64(m.CompletedRuns) / float64(m.TotalRuns)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns recent alerts, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := queryInt(r, "limit", 100)

	alerts, err := h.Alerts.ListAlerts(r.Context(), unreadOnly, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list alerts", err)
		return
	}

	dtos := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkAlertRead acknowledges an alert, which stops its escalation.
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Alerts.MarkAlertRead(r.Context(), id); err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "alert not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "could not mark alert read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// =============================================================================
// RULE ADMIN HANDLERS
// =============================================================================

// ListRules returns every active reorder rule.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.ListActiveRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list rules", err)
		return
	}

	dtos := make([]factory.RuleJSON, 0, len(rules))
	for i := range rules {
		dtos = append(dtos, h.ruleFactory.ToJSON(&rules[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns one rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.Rules.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load rule", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.ruleFactory.ToJSON(rule))
}

// SaveRule creates or replaces a rule from its JSON definition. The
// factory validates variant parameters before anything is persisted.
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule JSON", err)
		return
	}

	rule, err := h.ruleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	if err := h.Rules.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ruleFactory.ToJSON(rule))
}

// =============================================================================
// LOOKUP HANDLERS
// =============================================================================

// GetStock returns ledger-derived stock for an item, optionally scoped
// to a warehouse.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	itemID := ledger.ItemID(chi.URLParam(r, "id"))

	filter := ledger.Filter{ItemID: itemID}
	warehouse := r.URL.Query().Get("warehouse")
	if warehouse != "" {
		wh := ledger.WarehouseID(warehouse)
		filter.WarehouseID = &wh
	}

	stock, err := h.Balance.CurrentStock(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not calculate stock", err)
		return
	}

	val, _ := stock.Float64()
	writeJSON(w, http.StatusOK, StockDTO{
		ItemID:      string(itemID),
		WarehouseID: warehouse,
		Stock:       val,
	})
}

// GetDemand returns consumption statistics and the 90-day forecast.
func (h *Handler) GetDemand(w http.ResponseWriter, r *http.Request) {
	itemID := ledger.ItemID(chi.URLParam(r, "id"))

	var warehouseID *ledger.WarehouseID
	if wh := r.URL.Query().Get("warehouse"); wh != "" {
		id := ledger.WarehouseID(wh)
		warehouseID = &id
	}

	ctx := r.Context()
	adc, err := h.Demand.AverageDailyConsumption(ctx, itemID, warehouseID, 90)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not calculate consumption", err)
		return
	}
	variability, err := h.Demand.DemandVariability(ctx, itemID, warehouseID, 90)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not calculate variability", err)
		return
	}
	forecast, err := h.Demand.ForecastDemand(ctx, itemID, warehouseID, 90)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not forecast demand", err)
		return
	}
	trend, err := h.Demand.ConsumptionTrend(ctx, itemID, warehouseID, 6)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not calculate trend", err)
		return
	}

	dto := DemandDTO{
		ItemID:       string(itemID),
		DaysObserved: variability.DaysObserved,
		ForecastDays: forecast.ForecastDays,
		Confidence:   string(forecast.Confidence),
	}
	dto.AvgDailyConsumption, _ = adc.Float64()
	dto.VariabilityCV, _ = variability.CV.Float64()
	dto.ForecastQty, _ = forecast.Quantity.Float64()
	dto.TrendDirection = string(trend.Direction)
	dto.TrendChangePercent, _ = trend.ChangePercent.Float64()

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
