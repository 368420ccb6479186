/*
requisition.go - Purchase requisition generation

PURPOSE:
  Drains the reorder queue and turns each pending entry into a purchase
  requisition with one line, a best-supplier pick, and a reorder alert.
  Each entry is processed inside a single transaction so a half-created
  requisition can never be observed.

SUPPLIER SCORING (0-100):
  preferred flag            x 30
  price competitiveness     x 25  (cheapest / this)
  lead time competitiveness x 20  (shortest / this)
  rating                    x 15  (rating / 5)
  reliability               x 10  (rating / 5 proxy)
  Quotes whose quantity bounds exclude the suggested quantity are
  filtered out first; when that filter empties the list, all quotes
  compete.

IDEMPOTENCY:
  An item with an open requisition (Pending or Approved) is skipped and
  its queue entry is cancelled rather than completed.

SEE ALSO:
  - queue.go: The entries drained here
  - decision.go: Where entries come from
  - alert/: Alerts raised alongside each requisition
*/
package reorder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/alert"
	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// REQUISITION TYPES
// =============================================================================

type RequisitionStatus string

const (
	RequisitionPending  RequisitionStatus = "pending"
	RequisitionApproved RequisitionStatus = "approved"
	RequisitionRejected RequisitionStatus = "rejected"
	RequisitionClosed   RequisitionStatus = "closed"
)

type Requisition struct {
	ID     string
	Number string
	Status RequisitionStatus

	// AutoGenerated marks engine-created requisitions apart from
	// manually entered ones.
	AutoGenerated bool
	PriorityScore int
	Notes         string

	SupplierID string

	// RequestedBy is the active approver recorded as the requesting
	// user on generated requisitions.
	RequestedBy string

	Lines []RequisitionLine

	CreatedAt  time.Time
	ApprovedAt *time.Time
	ApprovedBy string
}

type RequisitionLine struct {
	ID            string
	RequisitionID string
	ItemID        ledger.ItemID
	WarehouseID   *ledger.WarehouseID
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	SupplierID    string
}

// =============================================================================
// GENERATOR STORE - Transactional facade
// =============================================================================

// GeneratorStore bundles everything requisition generation touches so
// one WithTx call covers the whole unit of work: the requisition, its
// line, the alert, the rule's last-triggered stamp and the queue entry
// transition commit or roll back together.
type GeneratorStore interface {
	PendingOrderStore

	CreateRequisition(ctx context.Context, pr Requisition) error
	RequisitionNumberExists(ctx context.Context, number string) (bool, error)
	CountRequisitionsOn(ctx context.Context, day time.Time) (int, error)

	CreateAlert(ctx context.Context, a *alert.Alert) error
	MarkRuleTriggered(ctx context.Context, ruleID string, at time.Time) error

	CompleteQueueEntry(ctx context.Context, id, requisitionID, alertID string, at time.Time) error
	FailQueueEntry(ctx context.Context, id, reason string, at time.Time) error
	CancelQueueEntry(ctx context.Context, id, reason string, at time.Time) error

	WithTx(ctx context.Context, fn func(GeneratorStore) error) error
}

// =============================================================================
// GENERATOR
// =============================================================================

type Generator struct {
	Queue     QueueStore
	Store     GeneratorStore
	Suppliers catalog.SupplierStore
	Rules     RuleStore
	Users     catalog.UserStore

	Now func() time.Time
}

func NewGenerator(queue QueueStore, store GeneratorStore, suppliers catalog.SupplierStore, rules RuleStore, users catalog.UserStore) *Generator {
	return &Generator{Queue: queue, Store: store, Suppliers: suppliers, Rules: rules, Users: users}
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

type DrainResult struct {
	Processed int
	Generated int
	Skipped   int
	Errors    []ItemError
}

// Drain processes up to batchSize pending queue entries in priority
// order. A failure in one entry marks it failed and moves on.
func (g *Generator) Drain(ctx context.Context, batchSize int) (DrainResult, error) {
	var result DrainResult

	entries, err := g.Queue.NextPending(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("next pending: %w", err)
	}

	for _, entry := range entries {
		result.Processed++

		if err := g.Queue.MarkProcessing(ctx, entry.ID); err != nil {
			result.Errors = append(result.Errors, ItemError{ItemID: entry.ItemID, Message: err.Error()})
			continue
		}

		generated, err := g.processEntry(ctx, entry)
		if err != nil {
			log.Printf("[Requisition] Entry %s (item %s) failed: %v", entry.ID, entry.ItemID, err)
			result.Errors = append(result.Errors, ItemError{ItemID: entry.ItemID, Message: err.Error()})
			if failErr := g.Store.FailQueueEntry(ctx, entry.ID, err.Error(), g.now()); failErr != nil {
				log.Printf("[Requisition] Could not mark entry %s failed: %v", entry.ID, failErr)
			}
			continue
		}
		if generated {
			result.Generated++
		} else {
			result.Skipped++
		}
	}

	if result.Generated > 0 || len(result.Errors) > 0 {
		log.Printf("[Requisition] Drain: %d processed, %d generated, %d skipped, %d error(s)",
			result.Processed, result.Generated, result.Skipped, len(result.Errors))
	}
	return result, nil
}

// processEntry creates the requisition, alert and bookkeeping rows for
// one queue entry inside a single transaction. Returns false when the
// entry was skipped by the idempotency guard.
func (g *Generator) processEntry(ctx context.Context, entry QueueEntry) (bool, error) {
	now := g.now()

	// Idempotency guard: never stack a second open requisition.
	open, err := g.Store.HasOpenRequisition(ctx, entry.ItemID)
	if err != nil {
		return false, fmt.Errorf("open requisition check: %w", err)
	}
	if open {
		if err := g.Store.CancelQueueEntry(ctx, entry.ID, "open requisition exists", now); err != nil {
			return false, fmt.Errorf("cancel queue entry: %w", err)
		}
		return false, nil
	}

	rule, err := g.Rules.GetRule(ctx, entry.RuleID)
	if err != nil {
		return false, fmt.Errorf("load rule %s: %w", entry.RuleID, err)
	}

	// Generated requisitions need a requesting user on record. Without
	// an active approver this item cannot be generated.
	approvers, err := g.Users.ListActiveApprovers(ctx)
	if err != nil {
		return false, fmt.Errorf("list approvers: %w", err)
	}
	if len(approvers) == 0 {
		return false, fmt.Errorf("no active approver to request requisition for item %s", entry.ItemID)
	}

	quote, err := g.pickSupplier(ctx, entry.ItemID, entry.SuggestedQty)
	if err != nil {
		return false, err
	}

	number, err := g.nextNumber(ctx, now)
	if err != nil {
		return false, err
	}

	status := RequisitionPending
	if rule == nil || !rule.RequireApproval || entry.PriorityScore >= 90 {
		status = RequisitionApproved
	}

	pr := Requisition{
		ID:            uuid.New().String(),
		Number:        number,
		Status:        status,
		AutoGenerated: true,
		PriorityScore: entry.PriorityScore,
		SupplierID:    quote.Supplier.ID,
		RequestedBy:   approvers[0].ID,
		CreatedAt:     now,
		Notes: fmt.Sprintf("Auto-generated: stock %s at reorder point %s",
			entry.CurrentStock.String(), entry.ReorderPoint.String()),
	}
	if status == RequisitionApproved {
		at := now
		pr.ApprovedAt = &at
		pr.ApprovedBy = "system"
	}
	pr.Lines = []RequisitionLine{{
		ID:            uuid.New().String(),
		RequisitionID: pr.ID,
		ItemID:        entry.ItemID,
		WarehouseID:   entry.WarehouseID,
		Quantity:      entry.SuggestedQty,
		UnitPrice:     quote.UnitPrice,
		SupplierID:    quote.Supplier.ID,
	}}

	a := &alert.Alert{
		ID:          uuid.New().String(),
		Type:        alert.TypeReorder,
		Severity:    severityFor(entry),
		Title:       fmt.Sprintf("Reorder: %s", entry.ItemID),
		ItemID:      entry.ItemID,
		WarehouseID: entry.WarehouseID,
		ReferenceID: pr.ID,
		Message: fmt.Sprintf("Reorder triggered for %s: requisition %s for %s units",
			entry.ItemID, pr.Number, entry.SuggestedQty.String()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = g.Store.WithTx(ctx, func(tx GeneratorStore) error {
		if err := tx.CreateRequisition(ctx, pr); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}
		if err := tx.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}
		if err := tx.MarkRuleTriggered(ctx, entry.RuleID, now); err != nil {
			return fmt.Errorf("mark rule triggered: %w", err)
		}
		if err := tx.CompleteQueueEntry(ctx, entry.ID, pr.ID, a.ID, now); err != nil {
			return fmt.Errorf("complete queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Printf("[Requisition] Generated %s for item %s (qty %s, score %d, supplier %s)",
		pr.Number, entry.ItemID, entry.SuggestedQty.String(), entry.PriorityScore, quote.Supplier.Name)
	return true, nil
}

// =============================================================================
// SUPPLIER SELECTION
// =============================================================================

// pickSupplier scores every quote for the item and returns the best.
// Quotes whose min/max bounds exclude qty are filtered first; an empty
// result falls back to all quotes.
func (g *Generator) pickSupplier(ctx context.Context, itemID ledger.ItemID, qty decimal.Decimal) (catalog.Quote, error) {
	quotes, err := g.Suppliers.QuotesForItem(ctx, itemID)
	if err != nil {
		return catalog.Quote{}, fmt.Errorf("quotes for %s: %w", itemID, err)
	}
	if len(quotes) == 0 {
		return catalog.Quote{}, fmt.Errorf("no supplier quotes for item %s", itemID)
	}

	candidates := make([]catalog.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.SatisfiesQuantity(qty) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = quotes
	}

	best := candidates[0]
	bestScore := scoreQuote(best, candidates)
	for _, q := range candidates[1:] {
		if s := scoreQuote(q, candidates); s.GreaterThan(bestScore) {
			best, bestScore = q, s
		}
	}
	return best, nil
}

func scoreQuote(q catalog.Quote, all []catalog.Quote) decimal.Decimal {
	cheapest := all[0].UnitPrice
	shortest := all[0].EffectiveLeadTime()
	for _, c := range all[1:] {
		if c.UnitPrice.LessThan(cheapest) {
			cheapest = c.UnitPrice
		}
		if lt := c.EffectiveLeadTime(); lt < shortest {
			shortest = lt
		}
	}

	score := decimal.Zero
	if q.Supplier.Preferred {
		score = score.Add(decimal.NewFromInt(30))
	}
	if q.UnitPrice.IsPositive() {
		score = score.Add(cheapest.Div(q.UnitPrice).Mul(decimal.NewFromInt(25)))
	}
	if lt := q.EffectiveLeadTime(); lt > 0 {
		ratio := decimal.NewFromInt(int64(shortest)).Div(decimal.NewFromInt(int64(lt)))
		score = score.Add(ratio.Mul(decimal.NewFromInt(20)))
	}
	ratingRatio := q.Supplier.Rating.Div(decimal.NewFromInt(5))
	score = score.Add(ratingRatio.Mul(decimal.NewFromInt(15)))
	score = score.Add(ratingRatio.Mul(decimal.NewFromInt(10)))
	return score
}

// =============================================================================
// REQUISITION NUMBERS
// =============================================================================

const numberRetries = 5

// nextNumber produces PR-YYYYMMDD-NNNN, NNNN being a zero-padded daily
// sequence. Concurrent generators can race on the count, so collisions
// retry with the next sequence number.
func (g *Generator) nextNumber(ctx context.Context, now time.Time) (string, error) {
	count, err := g.Store.CountRequisitionsOn(ctx, now)
	if err != nil {
		return "", fmt.Errorf("count requisitions: %w", err)
	}

	for i := 0; i < numberRetries; i++ {
		number := fmt.Sprintf("PR-%s-%04d", now.Format("20060102"), count+1+i)
		exists, err := g.Store.RequisitionNumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("number exists check: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("could not allocate requisition number after %d attempts", numberRetries)
}

// =============================================================================
// SEVERITY
// =============================================================================

func severityFor(entry QueueEntry) alert.Severity {
	days := decimal.NewFromInt(9999)
	if entry.DaysUntilStockout != nil {
		days = *entry.DaysUntilStockout
	}

	switch {
	case entry.PriorityScore >= 90 || days.LessThan(decimal.NewFromInt(3)):
		return alert.SeverityCritical
	case entry.PriorityScore >= 75 || days.LessThan(decimal.NewFromInt(7)):
		return alert.SeverityHigh
	case entry.PriorityScore >= 50 || days.LessThan(decimal.NewFromInt(14)):
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}
