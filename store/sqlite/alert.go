package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// ALERT STORE (alert.Store interface)
// =============================================================================

func (s *Store) createAlert(ctx context.Context, db execer, a *alert.Alert) error {
	var warehouseID sql.NullString
	if a.WarehouseID != nil {
		warehouseID = nullString(string(*a.WarehouseID))
	}

	query := `
		INSERT INTO alerts
		(id, type, severity, title, message, item_id, warehouse_id, reference_id,
		 is_read, assigned_to, escalated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, string(a.Type), string(a.Severity), nullString(a.Title), nullString(a.Message),
		nullString(string(a.ItemID)), warehouseID, nullString(a.ReferenceID),
		a.IsRead, nullString(a.AssignedTo), nullTime(a.EscalatedAt),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// CreateAlert inserts an alert.
func (s *Store) CreateAlert(ctx context.Context, a *alert.Alert) error {
	return s.createAlert(ctx, s.db, a)
}

const alertColumns = `id, type, severity, title, message, item_id, warehouse_id,
	reference_id, is_read, assigned_to, escalated_at, created_at, updated_at`

// ListUnread returns all unread alerts, oldest first.
func (s *Store) ListUnread(ctx context.Context) ([]alert.Alert, error) {
	return s.queryAlerts(ctx,
		fmt.Sprintf("SELECT %s FROM alerts WHERE NOT is_read ORDER BY created_at ASC", alertColumns))
}

// ListAlerts returns recent alerts, newest first, for the API surface.
func (s *Store) ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]alert.Alert, error) {
	query := fmt.Sprintf("SELECT %s FROM alerts", alertColumns)
	if unreadOnly {
		query += " WHERE NOT is_read"
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	return s.queryAlerts(ctx, query, limit)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]alert.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []alert.Alert
	for rows.Next() {
		var (
			a                      alert.Alert
			typ, severity          string
			title, message         sql.NullString
			itemID, warehouseID    sql.NullString
			referenceID, assigned  sql.NullString
			escalatedAt            sql.NullString
			createdAt, updatedAt   string
		)
		err := rows.Scan(&a.ID, &typ, &severity, &title, &message, &itemID, &warehouseID,
			&referenceID, &a.IsRead, &assigned, &escalatedAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = alert.Type(typ)
		a.Severity = alert.Severity(severity)
		a.Title = title.String
		a.Message = message.String
		a.ItemID = ledger.ItemID(itemID.String)
		if warehouseID.Valid {
			wh := ledger.WarehouseID(warehouseID.String)
			a.WarehouseID = &wh
		}
		a.ReferenceID = referenceID.String
		a.AssignedTo = assigned.String
		a.EscalatedAt = parseNullTime(escalatedAt)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// severityRank mirrors alert.Severity.Rank for the SQL guard below.
var severityRank = map[alert.Severity]int{
	alert.SeverityLow:      1,
	alert.SeverityMedium:   2,
	alert.SeverityHigh:     3,
	alert.SeverityCritical: 4,
}

// EscalateAlert persists a severity bump. Lowering severity is refused.
func (s *Store) EscalateAlert(ctx context.Context, id string, severity alert.Severity, at time.Time) error {
	rank, ok := severityRank[severity]
	if !ok {
		return fmt.Errorf("unknown severity %q", severity)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET severity = ?, escalated_at = ?, updated_at = ?
		WHERE id = ?
		  AND CASE severity
		        WHEN 'low' THEN 1 WHEN 'medium' THEN 2
		        WHEN 'high' THEN 3 ELSE 4 END <= ?`,
		string(severity), at.Format(time.RFC3339), at.Format(time.RFC3339), id, rank)
	if err != nil {
		return fmt.Errorf("failed to escalate alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s not escalated (missing or severity would decrease)", id)
	}
	return nil
}

// MarkAlertRead acknowledges an alert, which stops escalation.
func (s *Store) MarkAlertRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_read = TRUE, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// HasUnreadAlert reports whether an unread alert of the given type
// already references the record.
func (s *Store) HasUnreadAlert(ctx context.Context, typ alert.Type, referenceID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE type = ? AND reference_id = ? AND NOT is_read",
		string(typ), referenceID).Scan(&count)
	return count > 0, err
}
