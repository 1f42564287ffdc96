package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/orderrouter/internal/order/domain"
	orderdb "github.com/davicafu/orderrouter/internal/order/infra/outbound/db"
)

type OrderRepoSQLite struct {
	db *sql.DB
}

func NewOrderRepoSQLite(db *sql.DB) *OrderRepoSQLite {
	return &OrderRepoSQLite{db: db}
}

var _ domain.RecordStore = (*OrderRepoSQLite)(nil)

// ClaimNew pasa de N a P y devuelve los ids en una única sentencia UPDATE ... RETURNING.
// La condición sobre el estado previo impide que dos pollers reclamen el mismo pedido.
func (r *OrderRepoSQLite) ClaimNew(ctx context.Context, limit int) ([]domain.ClaimedRow, error) {
	if limit <= 0 {
		limit = -1 // sin límite en SQLite
	}

	rows, err := r.db.QueryContext(ctx,
		`UPDATE orders SET status = ?, last_update = ?
		 WHERE status = ? AND id IN (SELECT id FROM orders WHERE status = ? ORDER BY id LIMIT ?)
		 RETURNING id`,
		string(domain.OrderProcessing), time.Now().UTC(),
		string(domain.OrderNew), string(domain.OrderNew), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return orderdb.CollectClaimed(rows)
}

func (r *OrderRepoSQLite) Fetch(ctx context.Context, id int64) (*domain.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT o.id, o.status, o.customer_id, o.order_number, o.fulfillment_center,
		        o.time_order_placed, o.last_update,
		        c.id, c.first_name, c.last_name, c.email
		 FROM orders o JOIN customers c ON c.id = o.customer_id
		 WHERE o.id = ?`, id)

	var o domain.OrderRecord
	var status string
	if err := row.Scan(&o.ID, &status, &o.CustomerRef, &o.OrderNumber, &o.FulfillmentCenter,
		&o.PlacedAt, &o.LastUpdate,
		&o.Customer.ID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	items, err := r.fetchItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepoSQLite) fetchItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.status, i.price, i.quantity, i.last_update,
		        ci.id, ci.item_number, ci.item_name, ci.item_type
		 FROM order_items i JOIN catalog_items ci ON ci.id = i.catalog_item_id
		 WHERE i.order_id = ? ORDER BY i.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var status string
		var price decimal.Decimal
		if err := rows.Scan(&it.ID, &status, &price, &it.Quantity, &it.LastUpdate,
			&it.CatalogItem.ID, &it.CatalogItem.ItemNumber, &it.CatalogItem.ItemName, &it.CatalogItem.ItemType,
		); err != nil {
			return nil, err
		}
		it.Status = domain.OrderStatus(status)
		it.Price = price
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepoSQLite) MarkFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, last_update = ? WHERE id = ? AND status = ?`,
		string(domain.OrderFailed), time.Now().UTC(), id, string(domain.OrderProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to mark order %d as failed: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected for order %d: %w", id, err)
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea el esquema de pedidos si no existe.
func InitSQLite(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id INTEGER PRIMARY KEY,
			item_number TEXT NOT NULL,
			item_name TEXT NOT NULL,
			item_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			order_number TEXT NOT NULL,
			fulfillment_center TEXT NOT NULL DEFAULT '',
			time_order_placed DATETIME NOT NULL,
			last_update DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'N'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY,
			order_id INTEGER NOT NULL REFERENCES orders(id),
			catalog_item_id INTEGER NOT NULL REFERENCES catalog_items(id),
			status TEXT NOT NULL,
			price TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			last_update DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
