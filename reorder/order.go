package reorder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// PURCHASE ORDER - Inbound supply counted against reorder triggers
// =============================================================================

type OrderStatus string

const (
	OrderIssued    OrderStatus = "issued"
	OrderInTransit OrderStatus = "in_transit"
	OrderReceived  OrderStatus = "received"
	OrderCancelled OrderStatus = "cancelled"
)

// Open reports whether the order still counts as pending supply.
func (s OrderStatus) Open() bool {
	return s == OrderIssued || s == OrderInTransit
}

// PurchaseOrder is the slice of a PO this engine cares about: quantity
// on its way in. Full PO lifecycle lives in the purchasing module.
type PurchaseOrder struct {
	ID          string
	Number      string
	ItemID      ledger.ItemID
	WarehouseID *ledger.WarehouseID
	SupplierID  string
	Quantity    decimal.Decimal
	Status      OrderStatus
	ExpectedAt  *time.Time
	CreatedAt   time.Time
}

type OrderStore interface {
	SaveOrder(ctx context.Context, po PurchaseOrder) error
	ListOpenOrders(ctx context.Context, itemID ledger.ItemID) ([]PurchaseOrder, error)
}
