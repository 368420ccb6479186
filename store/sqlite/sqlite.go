/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the engine consumes using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TxStore:          Append-only stock ledger with SUM aggregation
  catalog.ItemStore:       Item lookups
  catalog.SupplierStore:   Supplier quotes
  catalog.UserStore:       Approver lookups
  reorder.RuleStore:       Reorder rules
  reorder.QueueStore:      Reorder queue
  reorder.OrderStore:      Purchase orders (pending supply)
  alert.Store:             Alerts
  batch.Store:             Batch/lot records
  scheduler.RunStore:      Scheduler run audit

  reorder.GeneratorStore and batch.IssueStore carry their own WithTx
  signatures, so they are exposed as facades: Store.Generator() and
  Store.Issue().

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for ledger_entries. Corrections
  are counter-entries of opposite sign.

KEY TABLES:
  ledger_entries:        Immutable ledger of all stock movements
  items, suppliers, supplier_offers, users: catalog reads
  reorder_rules:         One active rule per (item, warehouse|global)
  reorder_queue:         Triggered items awaiting generation
  purchase_requisitions, pr_lines: Generated requisitions
  purchase_orders:       Inbound supply, read for pending quantities
  alerts:                Reorder/low-stock/expiry alerts
  batches:               Lot-level stock for FEFO
  scheduler_runs:        One row per scheduler cycle

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/replenish.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		location_id TEXT,
		batch_id TEXT,
		quantity TEXT NOT NULL,
		tx_kind TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		balance_qty TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Stock aggregation (hot path: SUM over dimension filters)
	CREATE INDEX IF NOT EXISTS idx_ledger_item_warehouse
		ON ledger_entries(item_id, warehouse_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_item_date
		ON ledger_entries(item_id, tx_date);
	CREATE INDEX IF NOT EXISTS idx_ledger_batch
		ON ledger_entries(batch_id) WHERE batch_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_ledger_idempotency
		ON ledger_entries(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Items (catalog, read-mostly)
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		category_id TEXT,
		reorder_point TEXT NOT NULL DEFAULT '0',
		safety_stock TEXT NOT NULL DEFAULT '0',
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		unit_price TEXT NOT NULL DEFAULT '0',
		unit TEXT,
		batch_tracked BOOLEAN DEFAULT FALSE,
		active BOOLEAN DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_items_category
		ON items(category_id) WHERE category_id IS NOT NULL;

	-- Suppliers and per-item offers
	CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN DEFAULT TRUE,
		preferred BOOLEAN DEFAULT FALSE,
		rating TEXT NOT NULL DEFAULT '0',
		lead_time_days INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS supplier_offers (
		id TEXT PRIMARY KEY,
		supplier_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		min_order_qty TEXT NOT NULL DEFAULT '0',
		max_order_qty TEXT NOT NULL DEFAULT '0',
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		UNIQUE(supplier_id, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_offers_item
		ON supplier_offers(item_id);

	-- Users (alert recipients / approvers)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		active BOOLEAN DEFAULT TRUE
	);

	-- Reorder rules
	CREATE TABLE IF NOT EXISTS reorder_rules (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		warehouse_id TEXT,
		kind TEXT NOT NULL,
		auto_generate BOOLEAN DEFAULT TRUE,
		require_approval BOOLEAN DEFAULT TRUE,
		priority TEXT NOT NULL DEFAULT 'medium',
		reorder_point TEXT,
		safety_stock TEXT,
		fixed_qty TEXT,
		min_order_qty TEXT NOT NULL DEFAULT '0',
		max_order_qty TEXT NOT NULL DEFAULT '0',
		order_multiple TEXT NOT NULL DEFAULT '0',
		seasonal_multiplier TEXT NOT NULL DEFAULT '0',
		eoq_annual_demand TEXT,
		eoq_ordering_cost TEXT,
		eoq_holding_cost TEXT,
		lead_time_buffer INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN DEFAULT TRUE,
		last_triggered TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- At most one active rule per (item, warehouse|global)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_item_warehouse
		ON reorder_rules(item_id, COALESCE(warehouse_id, '')) WHERE active;

	-- Reorder queue
	CREATE TABLE IF NOT EXISTS reorder_queue (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		warehouse_id TEXT,
		rule_id TEXT NOT NULL,
		current_stock TEXT NOT NULL,
		reorder_point TEXT NOT NULL,
		safety_stock TEXT NOT NULL,
		suggested_qty TEXT NOT NULL,
		priority_score INTEGER NOT NULL,
		days_until_stockout TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		failure_reason TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		requisition_id TEXT,
		alert_id TEXT,
		created_at TEXT NOT NULL,
		processed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_queue_status_priority
		ON reorder_queue(status, priority_score DESC, created_at ASC);

	-- Purchase requisitions
	CREATE TABLE IF NOT EXISTS purchase_requisitions (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		auto_generated BOOLEAN DEFAULT FALSE,
		priority_score INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		supplier_id TEXT,
		requested_by TEXT,
		created_at TEXT NOT NULL,
		approved_at TEXT,
		approved_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pr_status
		ON purchase_requisitions(status);
	CREATE INDEX IF NOT EXISTS idx_pr_created
		ON purchase_requisitions(created_at);

	CREATE TABLE IF NOT EXISTS pr_lines (
		id TEXT PRIMARY KEY,
		requisition_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		warehouse_id TEXT,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		supplier_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pr_lines_requisition
		ON pr_lines(requisition_id);
	CREATE INDEX IF NOT EXISTS idx_pr_lines_item
		ON pr_lines(item_id);

	-- Purchase orders (read for pending supply)
	CREATE TABLE IF NOT EXISTS purchase_orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		item_id TEXT NOT NULL,
		warehouse_id TEXT,
		supplier_id TEXT,
		quantity TEXT NOT NULL,
		status TEXT NOT NULL,
		expected_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_po_item_status
		ON purchase_orders(item_id, status);

	-- Alerts
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT,
		message TEXT,
		item_id TEXT,
		warehouse_id TEXT,
		reference_id TEXT,
		is_read BOOLEAN DEFAULT FALSE,
		assigned_to TEXT,
		escalated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_unread
		ON alerts(is_read, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_reference
		ON alerts(type, reference_id) WHERE reference_id IS NOT NULL;

	-- Batches (lot-level stock for FEFO)
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		item_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		location_id TEXT,
		quantity TEXT NOT NULL,
		available_qty TEXT NOT NULL,
		expiry_date TEXT,
		received_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE INDEX IF NOT EXISTS idx_batches_item_warehouse
		ON batches(item_id, warehouse_id, status);
	CREATE INDEX IF NOT EXISTS idx_batches_expiry
		ON batches(expiry_date) WHERE expiry_date IS NOT NULL;

	-- Scheduler runs
	CREATE TABLE IF NOT EXISTS scheduler_runs (
		id TEXT PRIMARY KEY,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		items_processed INTEGER NOT NULL DEFAULT 0,
		items_eligible INTEGER NOT NULL DEFAULT 0,
		requisitions_created INTEGER NOT NULL DEFAULT 0,
		alerts_escalated INTEGER NOT NULL DEFAULT 0,
		batch_alerts_raised INTEGER NOT NULL DEFAULT 0,
		item_errors_json TEXT,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started
		ON scheduler_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status
		ON scheduler_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer abstracts *sql.DB and *sql.Tx so writes run in or out of a
// transaction with the same code.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER STORE (ledger.TxStore interface)
// =============================================================================

// Append adds an entry to the ledger.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	return s.appendEntry(ctx, s.db, e)
}

func (s *Store) appendEntry(ctx context.Context, db execer, e ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries
		(id, item_id, warehouse_id, location_id, batch_id, quantity, tx_kind, tx_date,
		 reference_type, reference_id, reason, idempotency_key, balance_qty, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, query,
		string(e.ID),
		string(e.ItemID),
		string(e.WarehouseID),
		nullString(string(e.LocationID)),
		nullString(string(e.BatchID)),
		e.Quantity.String(),
		string(e.Kind),
		e.TxDate.Format(time.RFC3339),
		nullString(e.ReferenceType),
		nullString(e.ReferenceID),
		nullString(e.Reason),
		nullString(e.IdempotencyKey),
		e.BalanceQty.String(),
		nullString(e.CreatedBy),
		createdAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	return nil
}

// AppendBatch adds multiple entries atomically.
func (s *Store) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey != "" {
			if keys[e.IdempotencyKey] {
				return ledger.ErrDuplicateIdempotencyKey
			}
			keys[e.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range entries {
		if err := s.appendEntry(ctx, sqlTx, e); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// filterClause builds the WHERE fragment for a dimension filter.
func filterClause(f ledger.Filter) (string, []any) {
	clauses := []string{"item_id = ?"}
	args := []any{string(f.ItemID)}

	if f.WarehouseID != nil {
		clauses = append(clauses, "warehouse_id = ?")
		args = append(args, string(*f.WarehouseID))
	}
	if f.LocationID != nil {
		clauses = append(clauses, "location_id = ?")
		args = append(args, string(*f.LocationID))
	}
	if f.BatchID != nil {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, string(*f.BatchID))
	}

	return strings.Join(clauses, " AND "), args
}

// Entries returns all entries matching the filter, ordered by TxDate.
func (s *Store) Entries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT id, item_id, warehouse_id, location_id, batch_id, quantity, tx_kind, tx_date,
		       reference_type, reference_id, reason, idempotency_key, balance_qty, created_by, created_at
		FROM ledger_entries
		WHERE %s
		ORDER BY tx_date ASC, created_at ASC
	`, where)

	return s.queryEntries(ctx, s.db, query, args...)
}

// EntriesInRange returns matching entries with TxDate in [from, to].
func (s *Store) EntriesInRange(ctx context.Context, f ledger.Filter, from, to time.Time) ([]ledger.Entry, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf(`
		SELECT id, item_id, warehouse_id, location_id, batch_id, quantity, tx_kind, tx_date,
		       reference_type, reference_id, reason, idempotency_key, balance_qty, created_by, created_at
		FROM ledger_entries
		WHERE %s AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date ASC, created_at ASC
	`, where)
	args = append(args, from.Format(time.RFC3339), to.Format(time.RFC3339))

	return s.queryEntries(ctx, s.db, query, args...)
}

// SumQuantity returns the sum of signed quantities over the filter.
// SQLite has no exact decimal type, so quantity strings are summed in
// Go rather than with SQL SUM over floats.
func (s *Store) SumQuantity(ctx context.Context, f ledger.Filter) (decimal.Decimal, error) {
	where, args := filterClause(f)
	query := fmt.Sprintf("SELECT quantity FROM ledger_entries WHERE %s", where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum quantities: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var qty string
		if err := rows.Scan(&qty); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan quantity: %w", err)
		}
		d, err := decimal.NewFromString(qty)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt quantity %q: %w", qty, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// SumByItem returns per-item quantity sums, optionally scoped to one
// warehouse.
func (s *Store) SumByItem(ctx context.Context, warehouseID *ledger.WarehouseID) (map[ledger.ItemID]decimal.Decimal, error) {
	query := "SELECT item_id, quantity FROM ledger_entries"
	var args []any
	if warehouseID != nil {
		query += " WHERE warehouse_id = ?"
		args = append(args, string(*warehouseID))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum by item: %w", err)
	}
	defer rows.Close()

	sums := make(map[ledger.ItemID]decimal.Decimal)
	for rows.Next() {
		var itemID, qty string
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("corrupt quantity %q: %w", qty, err)
		}
		id := ledger.ItemID(itemID)
		sums[id] = sums[id].Add(d)
	}
	return sums, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func (s *Store) queryEntries(ctx context.Context, db execer, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e              ledger.Entry
		id, itemID     string
		warehouseID    string
		locationID     sql.NullString
		batchID        sql.NullString
		quantity       string
		kind, txDate   string
		referenceType  sql.NullString
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		balanceQty     sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&id, &itemID, &warehouseID, &locationID, &batchID, &quantity, &kind, &txDate,
		&referenceType, &referenceID, &reason, &idempotencyKey, &balanceQty, &createdBy, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.ID = ledger.EntryID(id)
	e.ItemID = ledger.ItemID(itemID)
	e.WarehouseID = ledger.WarehouseID(warehouseID)
	e.LocationID = ledger.LocationID(locationID.String)
	e.BatchID = ledger.BatchID(batchID.String)
	e.Quantity, _ = decimal.NewFromString(quantity)
	e.Kind = ledger.TxKind(kind)
	e.TxDate, _ = time.Parse(time.RFC3339, txDate)
	e.ReferenceType = referenceType.String
	e.ReferenceID = referenceID.String
	e.Reason = reason.String
	e.IdempotencyKey = idempotencyKey.String
	if balanceQty.Valid {
		e.BalanceQty, _ = decimal.NewFromString(balanceQty.String)
	}
	e.CreatedBy = createdBy.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return e, nil
}

// =============================================================================
// TRANSACTIONAL LEDGER (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&ledgerTxStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type ledgerTxStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *ledgerTxStore) Append(ctx context.Context, e ledger.Entry) error {
	return ts.parent.appendEntry(ctx, ts.tx, e)
}

func (ts *ledgerTxStore) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if err := ts.parent.appendEntry(ctx, ts.tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (ts *ledgerTxStore) Entries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	return ts.parent.Entries(ctx, f)
}

func (ts *ledgerTxStore) EntriesInRange(ctx context.Context, f ledger.Filter, from, to time.Time) ([]ledger.Entry, error) {
	return ts.parent.EntriesInRange(ctx, f, from, to)
}

func (ts *ledgerTxStore) SumQuantity(ctx context.Context, f ledger.Filter) (decimal.Decimal, error) {
	return ts.parent.SumQuantity(ctx, f)
}

func (ts *ledgerTxStore) SumByItem(ctx context.Context, warehouseID *ledger.WarehouseID) (map[ledger.ItemID]decimal.Decimal, error) {
	return ts.parent.SumByItem(ctx, warehouseID)
}

func (ts *ledgerTxStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return ts.parent.Exists(ctx, idempotencyKey)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
