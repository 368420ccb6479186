package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/replenish-engine/reorder"
	"github.com/warp/replenish-engine/scheduler"
)

// =============================================================================
// SCHEDULER RUN STORE (scheduler.RunStore interface)
// =============================================================================

// SaveRun inserts or replaces a run record by ID. The scheduler writes
// the row once as running and again when the run finishes.
func (s *Store) SaveRun(ctx context.Context, run scheduler.Run) error {
	var errsJSON sql.NullString
	if len(run.ItemErrors) > 0 {
		b, err := json.Marshal(run.ItemErrors)
		if err != nil {
			return fmt.Errorf("failed to marshal item errors: %w", err)
		}
		errsJSON = nullString(string(b))
	}

	query := `
		INSERT OR REPLACE INTO scheduler_runs
		(id, triggered_by, status, items_processed, items_eligible, requisitions_created,
		 alerts_escalated, batch_alerts_raised, item_errors_json, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.TriggeredBy), string(run.Status),
		run.ItemsProcessed, run.ItemsEligible, run.RequisitionsCreated,
		run.AlertsEscalated, run.BatchAlertsRaised, errsJSON, nullString(run.Error),
		run.StartedAt.Format(time.RFC3339), nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, triggered_by, status, items_processed, items_eligible,
	requisitions_created, alerts_escalated, batch_alerts_raised, item_errors_json,
	error, started_at, completed_at`

// GetRun returns a run by ID, nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*scheduler.Run, error) {
	runs, err := s.queryRuns(ctx,
		fmt.Sprintf("SELECT %s FROM scheduler_runs WHERE id = ?", runColumns), id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter scheduler.RunFilter) ([]scheduler.Run, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduler_runs", runColumns)
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TriggeredBy != "" {
		clauses = append(clauses, "triggered_by = ?")
		args = append(args, string(filter.TriggeredBy))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	return s.queryRuns(ctx, query, args...)
}

// Metrics aggregates run history.
func (s *Store) Metrics(ctx context.Context) (scheduler.RunMetrics, error) {
	var m scheduler.RunMetrics

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(requisitions_created), 0)
		FROM scheduler_runs`,
	).Scan(&m.TotalRuns, &m.CompletedRuns, &m.FailedRuns, &m.RequisitionsCreated)
	if err != nil {
		return m, fmt.Errorf("failed to aggregate runs: %w", err)
	}

	// Average duration over finished runs; RFC3339 strings compare and
	// subtract correctly via julianday.
	var avgDays sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(julianday(completed_at) - julianday(started_at))
		FROM scheduler_runs WHERE completed_at IS NOT NULL`,
	).Scan(&avgDays)
	if err != nil {
		return m, fmt.Errorf("failed to average durations: %w", err)
	}
	if avgDays.Valid {
		m.AvgDurationMillis = int64(avgDays.Float64 * 24 * 60 * 60 * 1000)
	}

	var lastStarted sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT MAX(started_at) FROM scheduler_runs").Scan(&lastStarted)
	if err != nil {
		return m, fmt.Errorf("failed to read last run: %w", err)
	}
	m.LastRunAt = parseNullTime(lastStarted)

	return m, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]scheduler.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []scheduler.Run
	for rows.Next() {
		var (
			r                      scheduler.Run
			triggeredBy, status    string
			errsJSON, runErr       sql.NullString
			startedAt              string
			completedAt            sql.NullString
		)
		err := rows.Scan(&r.ID, &triggeredBy, &status, &r.ItemsProcessed, &r.ItemsEligible,
			&r.RequisitionsCreated, &r.AlertsEscalated, &r.BatchAlertsRaised,
			&errsJSON, &runErr, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.TriggeredBy = scheduler.TriggeredBy(triggeredBy)
		r.Status = scheduler.RunStatus(status)
		if errsJSON.Valid && errsJSON.String != "" {
			var itemErrs []reorder.ItemError
			if err := json.Unmarshal([]byte(errsJSON.String), &itemErrs); err == nil {
				r.ItemErrors = itemErrs
			}
		}
		r.Error = runErr.String
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
