// Package db agrupa lo común a los adapters SQL del RecordStore.
package db

import (
	"fmt"

	"github.com/davicafu/orderrouter/internal/order/domain"
)

// ClaimRows es la parte de *sql.Rows que usa CollectClaimed.
type ClaimRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// CollectClaimed lee los ids de un UPDATE ... RETURNING. El UPDATE ya se aplicó
// cuando se lee la primera fila, así que ante un error se devuelven los ids
// leídos hasta entonces junto a ErrStoreUnavailable.
func CollectClaimed(rows ClaimRows) ([]domain.ClaimedRow, error) {
	var claimed []domain.ClaimedRow
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return claimed, fmt.Errorf("%w: scan claimed id: %v", domain.ErrStoreUnavailable, err)
		}
		claimed = append(claimed, domain.ClaimedRow{"id": id})
	}
	if err := rows.Err(); err != nil {
		return claimed, fmt.Errorf("%w: read claimed ids: %v", domain.ErrStoreUnavailable, err)
	}
	return claimed, nil
}
