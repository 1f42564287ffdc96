package mocks

import (
	"context"
	"sync"

	routingDomain "github.com/davicafu/orderrouter/internal/routing/domain"
)

// MemoryAuditRepo acumula registros de auditoría en memoria.
type MemoryAuditRepo struct {
	mu      sync.Mutex
	Entries []routingDomain.RouteAudit
	Err     error
}

var _ routingDomain.RouteAuditRepository = (*MemoryAuditRepo)(nil)

func (r *MemoryAuditRepo) LogBatch(ctx context.Context, entries []routingDomain.RouteAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Entries = append(r.Entries, entries...)
	return nil
}

func (r *MemoryAuditRepo) Snapshot() []routingDomain.RouteAudit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]routingDomain.RouteAudit(nil), r.Entries...)
}
