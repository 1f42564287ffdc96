package clickhouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/orderrouter/internal/routing/domain"
)

// RouteAuditRepo escribe el histórico de enrutado en ClickHouse.
type RouteAuditRepo struct {
	db *sql.DB
}

var _ domain.RouteAuditRepository = (*RouteAuditRepo)(nil)

func NewRouteAuditRepo(ctx context.Context, addr, dbName string) (*RouteAuditRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &RouteAuditRepo{db: conn}, nil
}

func (r *RouteAuditRepo) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS route_audit (
			message_id  String,
			order_key   String,
			routing_key String,
			destination LowCardinality(String),
			outcome     LowCardinality(String),
			routed_at   DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (destination, routed_at)`)
	return err
}

// LogBatch inserta el lote completo en una transacción; ClickHouse funciona
// mejor con inserciones en lotes.
func (r *RouteAuditRepo) LogBatch(ctx context.Context, entries []domain.RouteAudit) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO route_audit (message_id, order_key, routing_key, destination, outcome, routed_at)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.MessageID,
			e.OrderKey,
			e.RoutingKey,
			e.Destination,
			string(e.Outcome),
			e.RoutedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for message %s: %w", e.MessageID, err)
		}
	}

	return tx.Commit()
}

func (r *RouteAuditRepo) Close() error { return r.db.Close() }
