/*
Package memory provides an in-memory implementation of the storage interfaces.

PURPOSE:
  A map-backed store implementing everything the engine consumes, for
  tests and local development. Mirrors the sqlite store's interface
  surface, including the Generator() and Issue() transactional facades.

LIMITATIONS:
  WithTx provides atomicity against concurrent readers (it holds the
  write lock for the whole function) but NOT rollback: a failing fn may
  leave earlier writes applied. Tests that exercise rollback semantics
  belong to the sqlite store.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/sqlite: Production implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/batch"
	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/ledger"
	"github.com/warp/replenish-engine/reorder"
	"github.com/warp/replenish-engine/scheduler"
)

// Store implements all storage interfaces in memory.
type Store struct {
	mu sync.RWMutex

	entries  []ledger.Entry
	idemKeys map[string]bool

	items  map[ledger.ItemID]catalog.Item
	quotes map[ledger.ItemID][]catalog.Quote
	users  []catalog.User

	rules        map[string]reorder.Rule
	queue        map[string]reorder.QueueEntry
	requisitions map[string]reorder.Requisition
	orders       map[string]reorder.PurchaseOrder

	alerts  map[string]alert.Alert
	batches map[ledger.BatchID]batch.Batch
	runs    map[string]scheduler.Run
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		idemKeys:     make(map[string]bool),
		items:        make(map[ledger.ItemID]catalog.Item),
		quotes:       make(map[ledger.ItemID][]catalog.Quote),
		rules:        make(map[string]reorder.Rule),
		queue:        make(map[string]reorder.QueueEntry),
		requisitions: make(map[string]reorder.Requisition),
		orders:       make(map[string]reorder.PurchaseOrder),
		alerts:       make(map[string]alert.Alert),
		batches:      make(map[ledger.BatchID]batch.Batch),
		runs:         make(map[string]scheduler.Run),
	}
}

// =============================================================================
// LEDGER STORE (ledger.TxStore interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(e)
}

func (s *Store) appendLocked(e ledger.Entry) error {
	if e.IdempotencyKey != "" {
		if s.idemKeys[e.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		s.idemKeys[e.IdempotencyKey] = true
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject the whole batch before applying anything.
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if seen[e.IdempotencyKey] || s.idemKeys[e.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
	}
	for _, e := range entries {
		if err := s.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Entry
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TxDate.Before(out[j].TxDate) })
	return out, nil
}

func (s *Store) EntriesInRange(ctx context.Context, f ledger.Filter, from, to time.Time) ([]ledger.Entry, error) {
	all, err := s.Entries(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []ledger.Entry
	for _, e := range all {
		if e.TxDate.Before(from) || e.TxDate.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) SumQuantity(ctx context.Context, f ledger.Filter) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, e := range s.entries {
		if f.Matches(e) {
			total = total.Add(e.Quantity)
		}
	}
	return total, nil
}

func (s *Store) SumByItem(ctx context.Context, warehouseID *ledger.WarehouseID) (map[ledger.ItemID]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[ledger.ItemID]decimal.Decimal)
	for _, e := range s.entries {
		if warehouseID != nil && e.WarehouseID != *warehouseID {
			continue
		}
		sums[e.ItemID] = sums[e.ItemID].Add(e.Quantity)
	}
	return sums, nil
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idemKeys[idempotencyKey], nil
}

// WithTx runs fn against the store itself. See the package doc for the
// (lack of) rollback semantics.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(s)
}

// =============================================================================
// CATALOG (ItemStore, SupplierStore, UserStore interfaces)
// =============================================================================

// SaveItem seeds an item.
func (s *Store) SaveItem(ctx context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *Store) GetItem(ctx context.Context, id ledger.ItemID) (*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListActiveItems(ctx context.Context) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.Item
	for _, item := range s.items {
		if item.Active {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) ListActiveItemsInCategory(ctx context.Context, categoryID string) ([]catalog.Item, error) {
	all, err := s.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	var out []catalog.Item
	for _, item := range all {
		if item.CategoryID == categoryID {
			out = append(out, item)
		}
	}
	return out, nil
}

// SaveQuote seeds a supplier offer for an item.
func (s *Store) SaveQuote(ctx context.Context, q catalog.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ItemID] = append(s.quotes[q.ItemID], q)
	return nil
}

func (s *Store) QuotesForItem(ctx context.Context, itemID ledger.ItemID) ([]catalog.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.Quote
	for _, q := range s.quotes[itemID] {
		if q.Supplier.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

// SaveUser seeds a user.
func (s *Store) SaveUser(ctx context.Context, u catalog.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
	return nil
}

func (s *Store) ListActiveApprovers(ctx context.Context) ([]catalog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.User
	for _, u := range s.users {
		if u.Active && (u.Role == catalog.RoleAdmin || u.Role == catalog.RoleManager) {
			out = append(out, u)
		}
	}
	return out, nil
}

// =============================================================================
// RULE STORE (reorder.RuleStore interface)
// =============================================================================

func (s *Store) SaveRule(ctx context.Context, r *reorder.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.rules[r.ID] = *r
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (*reorder.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) ActiveRuleFor(ctx context.Context, itemID ledger.ItemID, warehouseID *ledger.WarehouseID) (*reorder.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var global *reorder.Rule
	for id := range s.rules {
		r := s.rules[id]
		if !r.Active || r.ItemID != itemID {
			continue
		}
		if r.WarehouseID == nil {
			global = &r
			continue
		}
		if warehouseID != nil && *r.WarehouseID == *warehouseID {
			return &r, nil
		}
	}
	return global, nil
}

func (s *Store) ListActiveRules(ctx context.Context) ([]reorder.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reorder.Rule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (s *Store) MarkRuleTriggered(ctx context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRuleTriggeredLocked(ruleID, at)
}

func (s *Store) markRuleTriggeredLocked(ruleID string, at time.Time) error {
	r, ok := s.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %s: %w", ruleID, ledger.ErrNotFound)
	}
	t := at
	r.LastTriggered = &t
	r.UpdatedAt = at
	s.rules[ruleID] = r
	return nil
}

// =============================================================================
// QUEUE STORE (reorder.QueueStore interface)
// =============================================================================

func (s *Store) Enqueue(ctx context.Context, entry reorder.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue[entry.ID] = entry
	return nil
}

func (s *Store) NextPending(ctx context.Context, limit int) ([]reorder.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reorder.QueueEntry
	for _, e := range s.queue {
		if e.Status == reorder.QueuePending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.queue[id]
	if !ok || e.Status != reorder.QueuePending {
		return fmt.Errorf("queue entry %s: %w", id, ledger.ErrNotFound)
	}
	e.Status = reorder.QueueProcessing
	s.queue[id] = e
	return nil
}

func (s *Store) CompleteQueueEntry(ctx context.Context, id, requisitionID, alertID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeQueueEntryLocked(id, requisitionID, alertID, at)
}

func (s *Store) completeQueueEntryLocked(id, requisitionID, alertID string, at time.Time) error {
	e, ok := s.queue[id]
	if !ok {
		return fmt.Errorf("queue entry %s: %w", id, ledger.ErrNotFound)
	}
	e.Status = reorder.QueueCompleted
	e.RequisitionID = requisitionID
	e.AlertID = alertID
	t := at
	e.ProcessedAt = &t
	s.queue[id] = e
	return nil
}

func (s *Store) FailQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setQueueTerminalLocked(id, reorder.QueueFailed, reason, at)
}

func (s *Store) CancelQueueEntry(ctx context.Context, id, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setQueueTerminalLocked(id, reorder.QueueCancelled, reason, at)
}

func (s *Store) setQueueTerminalLocked(id string, status reorder.QueueStatus, reason string, at time.Time) error {
	e, ok := s.queue[id]
	if !ok {
		return fmt.Errorf("queue entry %s: %w", id, ledger.ErrNotFound)
	}
	e.Status = status
	e.FailureReason = reason
	if status == reorder.QueueFailed {
		e.RetryCount++
	}
	t := at
	e.ProcessedAt = &t
	s.queue[id] = e
	return nil
}

// QueueEntry returns a queue entry by ID for test assertions.
func (s *Store) QueueEntry(id string) (reorder.QueueEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.queue[id]
	return e, ok
}

// =============================================================================
// REQUISITIONS AND PENDING SUPPLY
// =============================================================================

func (s *Store) CreateRequisition(ctx context.Context, pr reorder.Requisition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRequisitionLocked(pr)
}

func (s *Store) createRequisitionLocked(pr reorder.Requisition) error {
	for _, existing := range s.requisitions {
		if existing.Number == pr.Number {
			return fmt.Errorf("requisition number %s taken", pr.Number)
		}
	}
	s.requisitions[pr.ID] = pr
	return nil
}

// GetRequisition returns a requisition by ID for test assertions.
func (s *Store) GetRequisition(id string) (reorder.Requisition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.requisitions[id]
	return pr, ok
}

// ListRequisitions returns all requisitions, oldest first.
func (s *Store) ListRequisitions(ctx context.Context) ([]reorder.Requisition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reorder.Requisition
	for _, pr := range s.requisitions {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RequisitionNumberExists(ctx context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pr := range s.requisitions {
		if pr.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountRequisitionsOn(ctx context.Context, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pr := range s.requisitions {
		y1, m1, d1 := pr.CreatedAt.Date()
		y2, m2, d2 := day.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			count++
		}
	}
	return count, nil
}

func (s *Store) OpenRequisitionQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, pr := range s.requisitions {
		if pr.Status != reorder.RequisitionPending && pr.Status != reorder.RequisitionApproved {
			continue
		}
		for _, line := range pr.Lines {
			if line.ItemID == itemID {
				total = total.Add(line.Quantity)
			}
		}
	}
	return total, nil
}

func (s *Store) HasOpenRequisition(ctx context.Context, itemID ledger.ItemID) (bool, error) {
	qty, err := s.OpenRequisitionQty(ctx, itemID)
	if err != nil {
		return false, err
	}
	return qty.IsPositive(), nil
}

func (s *Store) SaveOrder(ctx context.Context, po reorder.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[po.ID] = po
	return nil
}

func (s *Store) ListOpenOrders(ctx context.Context, itemID ledger.ItemID) ([]reorder.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []reorder.PurchaseOrder
	for _, po := range s.orders {
		if po.ItemID == itemID && po.Status.Open() {
			out = append(out, po)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) OpenOrderQty(ctx context.Context, itemID ledger.ItemID) (decimal.Decimal, error) {
	orders, err := s.ListOpenOrders(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, po := range orders {
		total = total.Add(po.Quantity)
	}
	return total, nil
}

// Generator returns a reorder.GeneratorStore backed by this store.
func (s *Store) Generator() reorder.GeneratorStore {
	return &generatorStore{s}
}

type generatorStore struct{ *Store }

func (g *generatorStore) WithTx(ctx context.Context, fn func(reorder.GeneratorStore) error) error {
	return fn(g)
}

// =============================================================================
// ALERT STORE (alert.Store interface)
// =============================================================================

func (s *Store) CreateAlert(ctx context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = *a
	return nil
}

func (s *Store) ListUnread(ctx context.Context) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []alert.Alert
	for _, a := range s.alerts {
		if !a.IsRead {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListAlerts returns recent alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []alert.Alert
	for _, a := range s.alerts {
		if unreadOnly && a.IsRead {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) EscalateAlert(ctx context.Context, id string, severity alert.Severity, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s: %w", id, ledger.ErrNotFound)
	}
	if severity.Rank() < a.Severity.Rank() {
		return fmt.Errorf("alert %s: severity cannot decrease", id)
	}
	a.Severity = severity
	t := at
	a.EscalatedAt = &t
	a.UpdatedAt = at
	s.alerts[id] = a
	return nil
}

func (s *Store) MarkAlertRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %s: %w", id, ledger.ErrNotFound)
	}
	a.IsRead = true
	a.UpdatedAt = time.Now().UTC()
	s.alerts[id] = a
	return nil
}

func (s *Store) HasUnreadAlert(ctx context.Context, typ alert.Type, referenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if a.Type == typ && a.ReferenceID == referenceID && !a.IsRead {
			return true, nil
		}
	}
	return false, nil
}

// Alert returns an alert by ID for test assertions.
func (s *Store) Alert(id string) (alert.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	return a, ok
}

// =============================================================================
// BATCH STORE (batch.Store interface)
// =============================================================================

func (s *Store) SaveBatch(ctx context.Context, b batch.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	return nil
}

// Batch returns a batch by ID for test assertions.
func (s *Store) Batch(id ledger.BatchID) (batch.Batch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	return b, ok
}

func (s *Store) ActiveBatches(ctx context.Context, itemID ledger.ItemID, warehouseID ledger.WarehouseID) ([]batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []batch.Batch
	for _, b := range s.batches {
		if b.ItemID == itemID && b.WarehouseID == warehouseID &&
			b.Status == batch.StatusActive && b.AvailableQty.IsPositive() {
			out = append(out, b)
		}
	}
	batch.SortFEFO(out)
	return out, nil
}

func (s *Store) AllocateBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
	}
	available := b.AvailableQty.Sub(qty)
	if available.IsNegative() {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrInsufficientStock)
	}
	b.AvailableQty = available
	s.batches[id] = b
	return nil
}

func (s *Store) DecrementBatch(ctx context.Context, id ledger.BatchID, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementBatchLocked(id, qty)
}

func (s *Store) decrementBatchLocked(id ledger.BatchID, qty decimal.Decimal) error {
	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
	}
	remaining := b.Quantity.Sub(qty)
	available := b.AvailableQty.Sub(qty)
	if remaining.IsNegative() || available.IsNegative() {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrInsufficientStock)
	}
	b.Quantity = remaining
	b.AvailableQty = available
	s.batches[id] = b
	return nil
}

func (s *Store) ExpiringBatches(ctx context.Context, cutoff time.Time) ([]batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []batch.Batch
	for _, b := range s.batches {
		if b.ExpiryDate == nil || !b.Quantity.IsPositive() {
			continue
		}
		if b.Status != batch.StatusActive && b.Status != batch.StatusExpired {
			continue
		}
		if !b.ExpiryDate.After(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(*out[j].ExpiryDate) })
	return out, nil
}

func (s *Store) MarkBatchExpired(ctx context.Context, id ledger.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, ledger.ErrNotFound)
	}
	if b.Status == batch.StatusActive {
		b.Status = batch.StatusExpired
		s.batches[id] = b
	}
	return nil
}

// Issue returns a batch.IssueStore backed by this store.
func (s *Store) Issue() batch.IssueStore {
	return &issueStore{s}
}

type issueStore struct{ *Store }

func (is *issueStore) AppendLedger(ctx context.Context, e *ledger.Entry) error {
	return is.Store.Append(ctx, *e)
}

func (is *issueStore) WithTx(ctx context.Context, fn func(batch.IssueStore) error) error {
	return fn(is)
}

// =============================================================================
// SCHEDULER RUN STORE (scheduler.RunStore interface)
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run scheduler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*scheduler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *Store) ListRuns(ctx context.Context, filter scheduler.RunFilter) ([]scheduler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scheduler.Run
	for _, r := range s.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.TriggeredBy != "" && r.TriggeredBy != filter.TriggeredBy {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Metrics(ctx context.Context) (scheduler.RunMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m scheduler.RunMetrics
	var totalDuration time.Duration
	finished := 0
	for _, r := range s.runs {
		m.TotalRuns++
		switch r.Status {
		case scheduler.RunCompleted:
			m.CompletedRuns++
		case scheduler.RunFailed:
			m.FailedRuns++
		}
		m.RequisitionsCreated += r.RequisitionsCreated
		if r.CompletedAt != nil {
			totalDuration += r.Duration()
			finished++
		}
		if m.LastRunAt == nil || r.StartedAt.After(*m.LastRunAt) {
			t := r.StartedAt
			m.LastRunAt = &t
		}
	}
	if finished > 0 {
		m.AvgDurationMillis = totalDuration.Milliseconds() / int64(finished)
	}
	return m, nil
}
