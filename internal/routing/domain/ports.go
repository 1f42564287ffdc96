package domain

import (
	"context"
	"time"
)

// RouteAudit es el registro de un mensaje despachado.
type RouteAudit struct {
	MessageID   string
	OrderKey    string
	RoutingKey  string
	Destination string
	Outcome     Outcome
	RoutedAt    time.Time
}

type RouteAuditRepository interface {
	LogBatch(ctx context.Context, entries []RouteAudit) error
}
