package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/replenish-engine/catalog"
	"github.com/warp/replenish-engine/ledger"
)

// =============================================================================
// ITEM STORE (catalog.ItemStore interface)
// =============================================================================

// SaveItem inserts or replaces an item. The engine only reads items;
// this writer exists for seeding and the admin surface.
func (s *Store) SaveItem(ctx context.Context, item catalog.Item) error {
	query := `
		INSERT OR REPLACE INTO items
		(id, sku, name, category_id, reorder_point, safety_stock, lead_time_days,
		 unit_price, unit, batch_tracked, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(item.ID), item.SKU, item.Name, nullString(item.CategoryID),
		item.ReorderPoint.String(), item.SafetyStock.String(), item.LeadTimeDays,
		item.UnitPrice.String(), nullString(item.Unit), item.BatchTracked, item.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

const itemColumns = `id, sku, name, category_id, reorder_point, safety_stock,
	lead_time_days, unit_price, unit, batch_tracked, active`

// GetItem returns an item by ID, nil when absent.
func (s *Store) GetItem(ctx context.Context, id ledger.ItemID) (*catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM items WHERE id = ?", itemColumns), string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	item, err := scanItem(rows)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListActiveItems returns all active items.
func (s *Store) ListActiveItems(ctx context.Context) ([]catalog.Item, error) {
	return s.queryItems(ctx,
		fmt.Sprintf("SELECT %s FROM items WHERE active ORDER BY sku", itemColumns))
}

// ListActiveItemsInCategory returns active items in the category.
func (s *Store) ListActiveItemsInCategory(ctx context.Context, categoryID string) ([]catalog.Item, error) {
	return s.queryItems(ctx,
		fmt.Sprintf("SELECT %s FROM items WHERE active AND category_id = ? ORDER BY sku", itemColumns),
		categoryID)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(rows *sql.Rows) (catalog.Item, error) {
	var (
		item                     catalog.Item
		id                       string
		categoryID, unit         sql.NullString
		reorderPoint             string
		safetyStock, unitPrice   string
	)
	err := rows.Scan(&id, &item.SKU, &item.Name, &categoryID, &reorderPoint,
		&safetyStock, &item.LeadTimeDays, &unitPrice, &unit, &item.BatchTracked, &item.Active)
	if err != nil {
		return item, fmt.Errorf("failed to scan item: %w", err)
	}
	item.ID = ledger.ItemID(id)
	item.CategoryID = categoryID.String
	item.ReorderPoint = mustDecimal(reorderPoint)
	item.SafetyStock = mustDecimal(safetyStock)
	item.UnitPrice = mustDecimal(unitPrice)
	item.Unit = unit.String
	return item, nil
}

// =============================================================================
// SUPPLIER STORE (catalog.SupplierStore interface)
// =============================================================================

// SaveSupplier inserts or replaces a supplier.
func (s *Store) SaveSupplier(ctx context.Context, sup catalog.Supplier) error {
	query := `
		INSERT OR REPLACE INTO suppliers
		(id, code, name, active, preferred, rating, lead_time_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sup.ID, sup.Code, sup.Name, sup.Active, sup.Preferred,
		sup.Rating.String(), sup.LeadTimeDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save supplier: %w", err)
	}
	return nil
}

// SaveOffer inserts or replaces a supplier's offer for an item.
func (s *Store) SaveOffer(ctx context.Context, id string, supplierID string, itemID ledger.ItemID, offer catalog.Quote) error {
	query := `
		INSERT OR REPLACE INTO supplier_offers
		(id, supplier_id, item_id, unit_price, min_order_qty, max_order_qty, lead_time_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		id, supplierID, string(itemID),
		offer.UnitPrice.String(), offer.MinOrderQty.String(), offer.MaxOrderQty.String(),
		offer.LeadTimeDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// QuotesForItem returns offers from active suppliers for the item.
func (s *Store) QuotesForItem(ctx context.Context, itemID ledger.ItemID) ([]catalog.Quote, error) {
	query := `
		SELECT s.id, s.code, s.name, s.active, s.preferred, s.rating, s.lead_time_days,
		       o.unit_price, o.min_order_qty, o.max_order_qty, o.lead_time_days
		FROM supplier_offers o
		JOIN suppliers s ON s.id = o.supplier_id
		WHERE o.item_id = ? AND s.active
		ORDER BY s.code
	`
	rows, err := s.db.QueryContext(ctx, query, string(itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []catalog.Quote
	for rows.Next() {
		var (
			q                                catalog.Quote
			rating, price, minQty, maxQty    string
		)
		err := rows.Scan(&q.Supplier.ID, &q.Supplier.Code, &q.Supplier.Name,
			&q.Supplier.Active, &q.Supplier.Preferred, &rating, &q.Supplier.LeadTimeDays,
			&price, &minQty, &maxQty, &q.LeadTimeDays)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		q.ItemID = itemID
		q.Supplier.Rating = mustDecimal(rating)
		q.UnitPrice = mustDecimal(price)
		q.MinOrderQty = mustDecimal(minQty)
		q.MaxOrderQty = mustDecimal(maxQty)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// =============================================================================
// USER STORE (catalog.UserStore interface)
// =============================================================================

// SaveUser inserts or replaces a user.
func (s *Store) SaveUser(ctx context.Context, u catalog.User) error {
	query := `
		INSERT OR REPLACE INTO users (id, name, email, role, active)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Name, nullString(u.Email), string(u.Role), u.Active)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// ListActiveApprovers returns active Admin/Manager users, stable order.
func (s *Store) ListActiveApprovers(ctx context.Context) ([]catalog.User, error) {
	query := `
		SELECT id, name, email, role, active FROM users
		WHERE active AND role IN ('admin', 'manager')
		ORDER BY role, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []catalog.User
	for rows.Next() {
		var (
			u     catalog.User
			email sql.NullString
			role  string
		)
		if err := rows.Scan(&u.ID, &u.Name, &email, &role, &u.Active); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email = email.String
		u.Role = catalog.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}
