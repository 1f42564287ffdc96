package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davicafu/orderrouter/internal/order/domain"
)

// MockRecordStore simula el RecordStore con testify/mock.
type MockRecordStore struct {
	mock.Mock
}

var _ domain.RecordStore = (*MockRecordStore)(nil)

func (m *MockRecordStore) ClaimNew(ctx context.Context, limit int) ([]domain.ClaimedRow, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]domain.ClaimedRow)
	return rows, args.Error(1)
}

func (m *MockRecordStore) Fetch(ctx context.Context, id int64) (*domain.OrderRecord, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*domain.OrderRecord)
	return order, args.Error(1)
}

func (m *MockRecordStore) MarkFailed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
