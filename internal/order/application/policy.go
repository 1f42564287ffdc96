package application

import (
	"context"
	"fmt"
)

// FailurePolicy decide qué pasa con un pedido ya reclamado (P) cuando su
// traducción o publicación falla.
type FailurePolicy string

const (
	// LeaveProcessing deja el pedido en P para reconciliación manual.
	LeaveProcessing FailurePolicy = "leave-processing"
	// MarkFailed mueve el pedido a F.
	MarkFailed FailurePolicy = "mark-failed"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", LeaveProcessing:
		return LeaveProcessing, nil
	case MarkFailed:
		return MarkFailed, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

type failureMarker interface {
	MarkFailed(ctx context.Context, id int64) error
}

func (p FailurePolicy) apply(ctx context.Context, store failureMarker, id int64) error {
	if p != MarkFailed {
		return nil
	}
	return store.MarkFailed(ctx, id)
}
