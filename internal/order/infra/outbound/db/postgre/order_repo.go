package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	"github.com/shopspring/decimal"

	"github.com/davicafu/orderrouter/internal/order/domain"
	orderdb "github.com/davicafu/orderrouter/internal/order/infra/outbound/db"
)

// OrderRepoPostgres implementa RecordStore para PostgreSQL.
type OrderRepoPostgres struct {
	db *sql.DB
}

func NewOrderRepoPostgres(db *sql.DB) *OrderRepoPostgres {
	return &OrderRepoPostgres{db: db}
}

var _ domain.RecordStore = (*OrderRepoPostgres)(nil)

// ClaimNew bloquea las filas N con SKIP LOCKED, así varias instancias pueden
// reclamar en paralelo sin esperarse ni solaparse.
func (r *OrderRepoPostgres) ClaimNew(ctx context.Context, limit int) ([]domain.ClaimedRow, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.QueryContext(ctx,
		`UPDATE orders.orders SET status = $1, last_update = now()
		 WHERE id IN (
		     SELECT id FROM orders.orders WHERE status = $2
		     ORDER BY id LIMIT $3
		     FOR UPDATE SKIP LOCKED)
		 RETURNING id`,
		string(domain.OrderProcessing), string(domain.OrderNew), lim,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return orderdb.CollectClaimed(rows)
}

func (r *OrderRepoPostgres) Fetch(ctx context.Context, id int64) (*domain.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT o.id, o.status, o.customer_id, o.order_number, o.fulfillment_center,
		        o.time_order_placed, o.last_update,
		        c.id, c.first_name, c.last_name, c.email
		 FROM orders.orders o JOIN orders.customers c ON c.id = o.customer_id
		 WHERE o.id = $1`, id)

	var o domain.OrderRecord
	var status string
	if err := row.Scan(&o.ID, &status, &o.CustomerRef, &o.OrderNumber, &o.FulfillmentCenter,
		&o.PlacedAt, &o.LastUpdate,
		&o.Customer.ID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.status, i.price, i.quantity, i.last_update,
		        ci.id, ci.item_number, ci.item_name, ci.item_type
		 FROM orders.order_items i JOIN orders.catalog_items ci ON ci.id = i.catalog_item_id
		 WHERE i.order_id = $1 ORDER BY i.id`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		var itemStatus string
		var price decimal.Decimal
		if err := rows.Scan(&it.ID, &itemStatus, &price, &it.Quantity, &it.LastUpdate,
			&it.CatalogItem.ID, &it.CatalogItem.ItemNumber, &it.CatalogItem.ItemName, &it.CatalogItem.ItemType,
		); err != nil {
			return nil, err
		}
		it.Status = domain.OrderStatus(itemStatus)
		it.Price = price
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepoPostgres) MarkFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders.orders SET status = $1, last_update = now() WHERE id = $2 AND status = $3`,
		string(domain.OrderFailed), id, string(domain.OrderProcessing),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// InitPostgres crea el esquema "orders" si no existe.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS orders;
		CREATE TABLE IF NOT EXISTS orders.customers (
			id BIGINT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS orders.catalog_items (
			id BIGINT PRIMARY KEY,
			item_number TEXT NOT NULL,
			item_name TEXT NOT NULL,
			item_type TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS orders.orders (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL REFERENCES orders.customers(id),
			order_number TEXT NOT NULL,
			fulfillment_center TEXT NOT NULL DEFAULT '',
			time_order_placed TIMESTAMPTZ NOT NULL,
			last_update TIMESTAMPTZ NOT NULL,
			status CHAR(1) NOT NULL DEFAULT 'N'
		);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders.orders(status);
		CREATE TABLE IF NOT EXISTS orders.order_items (
			id BIGINT PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders.orders(id),
			catalog_item_id BIGINT NOT NULL REFERENCES orders.catalog_items(id),
			status CHAR(1) NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			quantity INT NOT NULL,
			last_update TIMESTAMPTZ NOT NULL
		);`)
	return err
}
