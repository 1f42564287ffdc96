package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/orderrouter/internal/order/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// una sola conexión: cada conexión :memory: es una base distinta
	db.SetMaxOpenConns(1)
	require.NoError(t, InitSQLite(db))

	_, err = db.Exec(`INSERT INTO customers (id, first_name, last_name, email) VALUES (1, 'Larry', 'Horse', 'larry@hello.com')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO catalog_items (id, item_number, item_name, item_type)
		VALUES (1, '078-1344200444', 'Build Your Own JavaScript Framework in Just 24 Hours', 'Book')`)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertOrder(t *testing.T, db *sql.DB, id int64, center string, status domain.OrderStatus) {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO orders (id, customer_id, order_number, fulfillment_center, time_order_placed, last_update, status)
		VALUES (?, 1, ?, ?, ?, ?, ?)`, id, fmt.Sprintf("%d", 1000+id), center, now, now, string(status))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO order_items (id, order_id, catalog_item_id, status, price, quantity, last_update)
		VALUES (?, ?, 1, 'N', '20.00', 1, ?)`, id, id, now)
	require.NoError(t, err)
}

func statusOf(t *testing.T, db *sql.DB, id int64) domain.OrderStatus {
	var s string
	require.NoError(t, db.QueryRow(`SELECT status FROM orders WHERE id = ?`, id).Scan(&s))
	return domain.OrderStatus(s)
}

func TestOrderRepoSQLite_ClaimNew_OnceOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepoSQLite(db)
	ctx := context.Background()

	insertOrder(t, db, 1, "ABC_FULFILLMENT_CENTER", domain.OrderNew)
	insertOrder(t, db, 2, "UNKNOWN_CENTER", domain.OrderNew)
	insertOrder(t, db, 3, "ABC_FULFILLMENT_CENTER", domain.OrderProcessing)

	rows, err := repo.ClaimNew(ctx, 0)
	require.NoError(t, err)

	var ids []int64
	for _, r := range rows {
		id, ok := r.ClaimedID()
		require.True(t, ok)
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
	assert.Equal(t, domain.OrderProcessing, statusOf(t, db, 1))
	assert.Equal(t, domain.OrderProcessing, statusOf(t, db, 2))

	// idempotencia: sin pedidos nuevos no se reclama nada
	rows, err = repo.ClaimNew(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOrderRepoSQLite_ClaimNew_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepoSQLite(db)
	for id := int64(1); id <= 3; id++ {
		insertOrder(t, db, id, "ABC_FULFILLMENT_CENTER", domain.OrderNew)
	}

	rows, err := repo.ClaimNew(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ClaimNew(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOrderRepoSQLite_ClaimNew_ConcurrentClaimers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepoSQLite(db)
	for id := int64(1); id <= 5; id++ {
		insertOrder(t, db, id, "ABC_FULFILLMENT_CENTER", domain.OrderNew)
	}

	var mu sync.Mutex
	seen := map[int64]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := repo.ClaimNew(context.Background(), 0)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, r := range rows {
				id, _ := r.ClaimedID()
				seen[id]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, "order %d claimed %d times", id, n)
	}
}

func TestOrderRepoSQLite_Fetch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepoSQLite(db)
	insertOrder(t, db, 1, "ABC_FULFILLMENT_CENTER", domain.OrderNew)

	o, err := repo.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ABC_FULFILLMENT_CENTER", o.FulfillmentCenter)
	assert.Equal(t, domain.OrderNew, o.Status)
	assert.Equal(t, "Larry", o.Customer.FirstName)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "20.00", o.Items[0].Price.StringFixed(2))
	assert.Equal(t, "Book", o.Items[0].CatalogItem.ItemType)

	_, err = repo.Fetch(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepoSQLite_MarkFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepoSQLite(db)
	insertOrder(t, db, 1, "ABC_FULFILLMENT_CENTER", domain.OrderNew)

	// solo desde PROCESSING
	assert.ErrorIs(t, repo.MarkFailed(context.Background(), 1), domain.ErrOrderNotFound)

	_, err := repo.ClaimNew(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(context.Background(), 1))
	assert.Equal(t, domain.OrderFailed, statusOf(t, db, 1))
}
