package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
)

// =============================================================================
// RULE STORE (reorder.RuleStore interface)
// =============================================================================

// SaveRule validates and persists a rule (insert or update).
func (s *Store) SaveRule(ctx context.Context, r *reorder.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	var warehouseID sql.NullString
	if r.WarehouseID != nil {
		warehouseID = nullString(string(*r.WarehouseID))
	}
	var eoqDemand, eoqOrdering, eoqHolding sql.NullString
	if r.EOQ != nil {
		eoqDemand = nullString(r.EOQ.AnnualDemand.String())
		eoqOrdering = nullString(r.EOQ.OrderingCost.String())
		eoqHolding = nullString(r.EOQ.HoldingCost.String())
	}

	query := `
		INSERT OR REPLACE INTO reorder_rules
		(id, item_id, warehouse_id, kind, auto_generate, require_approval, priority,
		 reorder_point, safety_stock, fixed_qty, min_order_qty, max_order_qty, order_multiple,
		 seasonal_multiplier, eoq_annual_demand, eoq_ordering_cost, eoq_holding_cost,
		 lead_time_buffer, active, last_triggered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.ItemID), warehouseID, string(r.Kind),
		r.AutoGenerate, r.RequireApproval, string(r.Priority),
		nullDecimal(r.ReorderPoint), nullDecimal(r.SafetyStock), nullDecimal(r.FixedQty),
		r.MinOrderQty.String(), r.MaxOrderQty.String(), r.OrderMultiple.String(),
		r.SeasonalMultiplier.String(), eoqDemand, eoqOrdering, eoqHolding,
		r.LeadTimeBuffer, r.Active, nullTime(r.LastTriggered),
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

const ruleColumns = `id, item_id, warehouse_id, kind, auto_generate, require_approval,
	priority, reorder_point, safety_stock, fixed_qty, min_order_qty, max_order_qty,
	order_multiple, seasonal_multiplier, eoq_annual_demand, eoq_ordering_cost,
	eoq_holding_cost, lead_time_buffer, active, last_triggered, created_at, updated_at`

// GetRule fetches a rule by ID, nil when absent.
func (s *Store) GetRule(ctx context.Context, id string) (*reorder.Rule, error) {
	rules, err := s.queryRules(ctx,
		fmt.Sprintf("SELECT %s FROM reorder_rules WHERE id = ?", ruleColumns), id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// ActiveRuleFor resolves the effective rule for an item: the
// warehouse-specific rule wins over the global one.
func (s *Store) ActiveRuleFor(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID) (*reorder.Rule, error) {
	if warehouseID != nil {
		rules, err := s.queryRules(ctx,
			fmt.Sprintf("SELECT %s FROM reorder_rules WHERE item_id = ? AND warehouse_id = ? AND active", ruleColumns),
			string(itemID), string(*warehouseID))
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			return &rules[0], nil
		}
	}

	rules, err := s.queryRules(ctx,
		fmt.Sprintf("SELECT %s FROM reorder_rules WHERE item_id = ? AND warehouse_id IS NULL AND active", ruleColumns),
		string(itemID))
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// ListActiveRules returns every active rule.
func (s *Store) ListActiveRules(ctx context.Context) ([]reorder.Rule, error) {
	return s.queryRules(ctx,
		fmt.Sprintf("SELECT %s FROM reorder_rules WHERE active ORDER BY item_id", ruleColumns))
}

// MarkRuleTriggered stamps last_triggered.
func (s *Store) MarkRuleTriggered(ctx context.Context, ruleID string, at time.Time) error {
	return s.markRuleTriggered(ctx, s.db, ruleID, at)
}

func (s *Store) markRuleTriggered(ctx context.Context, db execer, ruleID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		"UPDATE reorder_rules SET last_triggered = ?, updated_at = ? WHERE id = ?",
		at.Format(time.RFC3339), at.Format(time.RFC3339), ruleID)
	if err != nil {
		return fmt.Errorf("failed to mark rule triggered: %w", err)
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]reorder.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []reorder.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanRule(rows *sql.Rows) (reorder.Rule, error) {
	var (
		r                                    reorder.Rule
		itemID, kind, priority               string
		warehouseID                          sql.NullString
		reorderPoint, safetyStock, fixedQty  sql.NullString
		minQty, maxQty, multiple, seasonal   string
		eoqDemand, eoqOrdering, eoqHolding   sql.NullString
		lastTriggered                        sql.NullString
		createdAt, updatedAt                 string
	)
	err := rows.Scan(&r.ID, &itemID, &warehouseID, &kind, &r.AutoGenerate, &r.RequireApproval,
		&priority, &reorderPoint, &safetyStock, &fixedQty, &minQty, &maxQty,
		&multiple, &seasonal, &eoqDemand, &eoqOrdering, &eoqHolding,
		&r.LeadTimeBuffer, &r.Active, &lastTriggered, &createdAt, &updatedAt)
	if err != nil {
		return r, fmt.Errorf("failed to scan rule: %w", err)
	}

	r.ItemID = ledger.ItemID(itemID)
	if warehouseID.Valid {
		wh := ledger.WarehouseID(warehouseID.String)
		r.WarehouseID = &wh
	}
	r.Kind = reorder.FormulaKind(kind)
	r.Priority = reorder.PriorityLevel(priority)
	r.ReorderPoint = parseNullDecimal(reorderPoint)
	r.SafetyStock = parseNullDecimal(safetyStock)
	r.FixedQty = parseNullDecimal(fixedQty)
	r.MinOrderQty = mustDecimal(minQty)
	r.MaxOrderQty = mustDecimal(maxQty)
	r.OrderMultiple = mustDecimal(multiple)
	r.SeasonalMultiplier = mustDecimal(seasonal)
	if eoqDemand.Valid {
		r.EOQ = &reorder.EOQParams{
			AnnualDemand: mustDecimal(eoqDemand.String),
			OrderingCost: mustDecimal(eoqOrdering.String),
			HoldingCost:  mustDecimal(eoqHolding.String),
		}
	}
	r.LastTriggered = parseNullTime(lastTriggered)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return r, nil
}

// =============================================================================
// QUEUE STORE (reorder.QueueStore interface)
// =============================================================================

// Enqueue inserts a queue entry.
func (s *Store) Enqueue(ctx context.Context, entry reorder.QueueEntry) error {
	var warehouseID sql.NullString
	if entry.WarehouseID != nil {
		warehouseID = nullString(string(*entry.WarehouseID))
	}

	query := `
		INSERT INTO reorder_queue
		(id, item_id, warehouse_id, rule_id, current_stock, reorder_point, safety_stock,
		 suggested_qty, priority_score, days_until_stockout, status, failure_reason,
		 retry_count, requisition_id, alert_id, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, string(entry.ItemID), warehouseID, entry.RuleID,
		entry.CurrentStock.String(), entry.ReorderPoint.String(), entry.SafetyStock.String(),
		entry.SuggestedQty.String(), entry.PriorityScore, nullDecimal(entry.DaysUntilStockout),
		string(entry.Status), nullString(entry.FailureReason),
		entry.RetryCount, nullString(entry.RequisitionID), nullString(entry.AlertID),
		entry.CreatedAt.Format(time.RFC3339), nullTime(entry.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}
	return nil
}

// NextPending returns pending entries, most urgent first.
func (s *Store) NextPending(ctx context.Context, limit int) ([]reorder.QueueEntry, error) {
	query := `
		SELECT id, item_id, warehouse_id, rule_id, current_stock, reorder_point, safety_stock,
		       suggested_qty, priority_score, days_until_stockout, status, failure_reason,
		       retry_count, requisition_id, alert_id, created_at, processed_at
		FROM reorder_queue
		WHERE status = 'pending'
		ORDER BY priority_score DESC, created_at ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var entries []reorder.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanQueueEntry(rows *sql.Rows) (reorder.QueueEntry, error) {
	var (
		e                                    reorder.QueueEntry
		itemID, status                       string
		warehouseID                          sql.NullString
		current, point, safety, suggested    string
		daysUntil                            sql.NullString
		failureReason, prID, alertID         sql.NullString
		createdAt                            string
		processedAt                          sql.NullString
	)
	err := rows.Scan(&e.ID, &itemID, &warehouseID, &e.RuleID, &current, &point, &safety,
		&suggested, &e.PriorityScore, &daysUntil, &status, &failureReason,
		&e.RetryCount, &prID, &alertID, &createdAt, &processedAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	e.ItemID = ledger.ItemID(itemID)
	if warehouseID.Valid {
		wh := ledger.WarehouseID(warehouseID.String)
		e.WarehouseID = &wh
	}
	e.CurrentStock = mustDecimal(current)
	e.ReorderPoint = mustDecimal(point)
	e.SafetyStock = mustDecimal(safety)
	e.SuggestedQty = mustDecimal(suggested)
	e.DaysUntilStockout = parseNullDecimal(daysUntil)
	e.Status = reorder.QueueStatus(status)
	e.FailureReason = failureReason.String
	e.RequisitionID = prID.String
	e.AlertID = alertID.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.ProcessedAt = parseNullTime(processedAt)
	return e, nil
}

// MarkProcessing transitions a pending entry to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reorder_queue SET status = 'processing' WHERE id = ? AND status = 'pending'", id)
	if err != nil {
		return fmt.Errorf("failed to mark processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue entry %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// CompleteQueueEntry records the generated requisition and alert.
func (s *Store) CompleteQueueEntry(ctx context.Context, id, requisitionID, alertID string, at time.Time) error {
	return s.completeQueueEntry(ctx, s.db, id, requisitionID, alertID, at)
}

func (s *Store) completeQueueEntry(ctx context.Context, db execer, id, requisitionID, alertID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE reorder_queue
		SET status = 'completed', requisition_id = ?, alert_id = ?, processed_at = ?
		WHERE id = ?`,
		requisitionID, alertID, at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to complete queue entry: %w", err)
	}
	return nil
}

// FailQueueEntry records a per-entry failure.
func (s *Store) FailQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	return s.setQueueTerminal(ctx, s.db, id, "failed", reason, at)
}

// CancelQueueEntry marks an entry skipped (e.g. open requisition exists).
func (s *Store) CancelQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	return s.setQueueTerminal(ctx, s.db, id, "cancelled", reason, at)
}

func (s *Store) setQueueTerminal(ctx context.Context, db execer, id, status, reason string, at time.Time) error {
	// A failed attempt bumps the retry counter; a cancellation does not.
	bump := 0
	if status == "failed" {
		bump = 1
	}
	_, err := db.ExecContext(ctx, `
		UPDATE reorder_queue
		SET status = ?, failure_reason = ?, retry_count = retry_count + ?, processed_at = ?
		WHERE id = ?`,
		status, nullString(reason), bump, at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update queue entry: %w", err)
	}
	return nil
}

// =============================================================================
// REQUISITIONS AND PENDING SUPPLY
// =============================================================================

func (s *Store) createRequisition(ctx context.Context, db execer, pr reorder.Requisition) error {
	query := `
		INSERT INTO purchase_requisitions
		(id, number, status, auto_generated, priority_score, notes, supplier_id,
		 requested_by, created_at, approved_at, approved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		pr.ID, pr.Number, string(pr.Status), pr.AutoGenerated, pr.PriorityScore,
		nullString(pr.Notes), nullString(pr.SupplierID), nullString(pr.RequestedBy),
		pr.CreatedAt.Format(time.RFC3339), nullTime(pr.ApprovedAt), nullString(pr.ApprovedBy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("requisition number %s taken: %w", pr.Number, err)
		}
		return fmt.Errorf("failed to create requisition: %w", err)
	}

	for _, line := range pr.Lines {
		var warehouseID sql.NullString
		if line.WarehouseID != nil {
			warehouseID = nullString(string(*line.WarehouseID))
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO pr_lines (id, requisition_id, item_id, warehouse_id, quantity, unit_price, supplier_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID, pr.ID, string(line.ItemID), warehouseID,
			line.Quantity.String(), line.UnitPrice.String(), nullString(line.SupplierID),
		)
		if err != nil {
			return fmt.Errorf("failed to create requisition line: %w", err)
		}
	}
	return nil
}

// CreateRequisition inserts a requisition with its lines.
func (s *Store) CreateRequisition(ctx context.Context, pr reorder.Requisition) error {
	return s.createRequisition(ctx, s.db, pr)
}

// RequisitionNumberExists checks for a number collision.
func (s *Store) RequisitionNumberExists(ctx context.Context, number string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM purchase_requisitions WHERE number = ?", number).Scan(&count)
	return count > 0, err
}

// CountRequisitionsOn counts requisitions created on the given day.
func (s *Store) CountRequisitionsOn(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM purchase_requisitions WHERE created_at >= ? AND created_at < ?",
		start.Format(time.RFC3339), end.Format(time.RFC3339)).Scan(&count)
	return count, err
}

// OpenRequisitionQty sums line quantities on open (pending/approved)
// requisitions for an item.
func (s *Store) OpenRequisitionQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	query := `
		SELECT l.quantity
		FROM pr_lines l
		JOIN purchase_requisitions p ON p.id = l.requisition_id
		WHERE l.item_id = ? AND p.status IN ('pending', 'approved')
	`
	return s.sumColumn(ctx, query, string(itemID))
}

// HasOpenRequisition backs the generator's idempotency guard.
func (s *Store) HasOpenRequisition(ctx context.Context, itemID ledger.ItemID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM pr_lines l
		JOIN purchase_requisitions p ON p.id = l.requisition_id
		WHERE l.item_id = ? AND p.status IN ('pending', 'approved')`,
		string(itemID)).Scan(&count)
	return count > 0, err
}

// SaveOrder inserts or replaces a purchase order.
func (s *Store) SaveOrder(ctx context.Context, po reorder.PurchaseOrder) error {
	var warehouseID sql.NullString
	if po.WarehouseID != nil {
		warehouseID = nullString(string(*po.WarehouseID))
	}
	query := `
		INSERT OR REPLACE INTO purchase_orders
		(id, number, item_id, warehouse_id, supplier_id, quantity, status, expected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		po.ID, po.Number, string(po.ItemID), warehouseID, nullString(po.SupplierID),
		po.Quantity.String(), string(po.Status), nullTime(po.ExpectedAt),
		po.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// ListOpenOrders returns issued/in-transit orders for an item.
func (s *Store) ListOpenOrders(ctx context.Context, itemID ledger.ItemID) ([]reorder.PurchaseOrder, error) {
	query := `
		SELECT id, number, item_id, warehouse_id, supplier_id, quantity, status, expected_at, created_at
		FROM purchase_orders
		WHERE item_id = ? AND status IN ('issued', 'in_transit')
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, string(itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []reorder.PurchaseOrder
	for rows.Next() {
		var (
			po                      reorder.PurchaseOrder
			itemStr, status, qty    string
			warehouseID, supplierID sql.NullString
			expectedAt              sql.NullString
			createdAt               string
		)
		err := rows.Scan(&po.ID, &po.Number, &itemStr, &warehouseID, &supplierID,
			&qty, &status, &expectedAt, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		po.ItemID = ledger.ItemID(itemStr)
		if warehouseID.Valid {
			wh := ledger.WarehouseID(warehouseID.String)
			po.WarehouseID = &wh
		}
		po.SupplierID = supplierID.String
		po.Quantity = mustDecimal(qty)
		po.Status = reorder.OrderStatus(status)
		po.ExpectedAt = parseNullTime(expectedAt)
		po.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// OpenOrderQty sums quantities on issued/in-transit orders for an item.
func (s *Store) OpenOrderQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	query := `
		SELECT quantity FROM purchase_orders
		WHERE item_id = ? AND status IN ('issued', 'in_transit')
	`
	return s.sumColumn(ctx, query, string(itemID))
}

// sumColumn sums a single decimal-string column in Go.
func (s *Store) sumColumn(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query quantities: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var qty string
		if err := rows.Scan(&qty); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan quantity: %w", err)
		}
		total = total.Add(mustDecimal(qty))
	}
	return total, rows.Err()
}

// =============================================================================
// GENERATOR FACADE (reorder.GeneratorStore interface)
// =============================================================================

// Generator returns a reorder.GeneratorStore backed by this store.
// The facade exists because GeneratorStore carries its own WithTx
// signature, which cannot live on Store next to the ledger WithTx.
func (s *Store) Generator() reorder.GeneratorStore {
	return &generatorStore{parent: s, db: s.db}
}

type generatorStore struct {
	parent *Store
	db     execer
	inTx   bool
}

func (g *generatorStore) OpenRequisitionQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	return g.parent.OpenRequisitionQty(ctx, itemID)
}

func (g *generatorStore) OpenOrderQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	return g.parent.OpenOrderQty(ctx, itemID)
}

func (g *generatorStore) HasOpenRequisition(ctx context.Context, itemID ledger.ItemID) (bool, error) {
	return g.parent.HasOpenRequisition(ctx, itemID)
}

func (g *generatorStore) CreateRequisition(ctx context.Context, pr reorder.Requisition) error {
	return g.parent.createRequisition(ctx, g.db, pr)
}

func (g *generatorStore) RequisitionNumberExists(ctx context.Context, number string) (bool, error) {
	return g.parent.RequisitionNumberExists(ctx, number)
}

func (g *generatorStore) CountRequisitionsOn(ctx context.Context, day time.Time) (int, error) {
	return g.parent.CountRequisitionsOn(ctx, day)
}

func (g *generatorStore) CreateAlert(ctx context.Context, a *alert.Alert) error {
	return g.parent.createAlert(ctx, g.db, a)
}

func (g *generatorStore) MarkRuleTriggered(ctx context.Context, ruleID string, at time.Time) error {
	return g.parent.markRuleTriggered(ctx, g.db, ruleID, at)
}

func (g *generatorStore) CompleteQueueEntry(ctx context.Context, id, requisitionID, alertID string, at time.Time) error {
	return g.parent.completeQueueEntry(ctx, g.db, id, requisitionID, alertID, at)
}

func (g *generatorStore) FailQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	return g.parent.setQueueTerminal(ctx, g.db, id, "failed", reason, at)
}

func (g *generatorStore) CancelQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	return g.parent.setQueueTerminal(ctx, g.db, id, "cancelled", reason, at)
}

// WithTx runs fn with all writes bound to one database transaction.
func (g *generatorStore) WithTx(ctx context.Context, fn func(reorder.GeneratorStore) error) error {
	if g.inTx {
		return fn(g)
	}

	sqlTx, err := g.parent.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&generatorStore{parent: g.parent, db: sqlTx, inTx: true}); err != nil {
		return err
	}
	return sqlTx.Commit()
}
