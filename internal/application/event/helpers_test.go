package event

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *mockOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *mockOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *mockOutboxRepository) FindByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, aggregateID)
	entries, _ := args.Get(0).([]*shared.OutboxEntry)
	return entries, args.Error(1)
}

func (m *mockOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*shared.OutboxEntry), args.Error(1)
}

func (m *mockOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockAvailabilityRepository struct {
	mock.Mock
}

func (m *mockAvailabilityRepository) Find(ctx context.Context, key inventory.StockKey) (*inventory.ItemWarehouseAvailability, error) {
	args := m.Called(ctx, key)
	row, _ := args.Get(0).(*inventory.ItemWarehouseAvailability)
	return row, args.Error(1)
}

func (m *mockAvailabilityRepository) FindForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.ItemWarehouseAvailability, error) {
	args := m.Called(ctx, key)
	row, _ := args.Get(0).(*inventory.ItemWarehouseAvailability)
	return row, args.Error(1)
}

func (m *mockAvailabilityRepository) FindByItem(ctx context.Context, itemCode string) ([]*inventory.ItemWarehouseAvailability, error) {
	args := m.Called(ctx, itemCode)
	rows, _ := args.Get(0).([]*inventory.ItemWarehouseAvailability)
	return rows, args.Error(1)
}

func (m *mockAvailabilityRepository) FindBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]*inventory.ItemWarehouseAvailability, error) {
	args := m.Called(ctx, filter)
	rows, _ := args.Get(0).([]*inventory.ItemWarehouseAvailability)
	return rows, args.Error(1)
}

func (m *mockAvailabilityRepository) SaveWithLock(ctx context.Context, row *inventory.ItemWarehouseAvailability) error {
	return m.Called(ctx, row).Error(0)
}

type recordingNotifier struct {
	alerts []ReorderAlert
	err    error
}

func (n *recordingNotifier) SendAlert(_ context.Context, alert ReorderAlert) error {
	n.alerts = append(n.alerts, alert)
	return n.err
}
