package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type seedStmt struct {
	query string
	args  []interface{}
}

// SeedDemo inserta un cliente, un artículo y un pedido NEW por centro, para
// ver el ciclo completo en local. Es idempotente.
func SeedDemo(ctx context.Context, db *sql.DB, centers []string) error {
	now := time.Now().UTC()
	stmts := []seedStmt{
		{`INSERT OR IGNORE INTO customers (id, first_name, last_name, email) VALUES (1, 'Larry', 'Horse', 'larry@hello.com')`, nil},
		{`INSERT OR IGNORE INTO catalog_items (id, item_number, item_name, item_type)
			VALUES (1, '078-1344200444', 'Build Your Own JavaScript Framework in Just 24 Hours', 'Book')`, nil},
	}
	for i, center := range centers {
		id := int64(i + 1)
		stmts = append(stmts,
			seedStmt{`INSERT OR IGNORE INTO orders (id, customer_id, order_number, fulfillment_center, time_order_placed, last_update, status)
				VALUES (?, 1, ?, ?, ?, ?, 'N')`, []interface{}{id, fmt.Sprintf("%d", 1000+id), center, now, now}},
			seedStmt{`INSERT OR IGNORE INTO order_items (id, order_id, catalog_item_id, status, price, quantity, last_update)
				VALUES (?, ?, 1, 'N', '20.00', 1, ?)`, []interface{}{id, id, now}},
		)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return tx.Commit()
}
