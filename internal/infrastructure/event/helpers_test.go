package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sharedEvent(eventType string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, sales.AggregateTypeDocument, uuid.New())
}

func newStatusEvent() *sales.DocumentStatusChangedEvent {
	return &sales.DocumentStatusChangedEvent{
		BaseDomainEvent: sharedEvent(sales.EventTypeDocumentStatusChanged),
		DocumentType:    sales.DocumentTypeOrder,
		Number:          "SO-2026-00001",
		FromStatus:      sales.StatusDraft,
		ToStatus:        sales.StatusOpen,
	}
}

func setupOutboxDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

// recordingHandler records what it was handed and fails while err is set
type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
}

func newRecordingHandler(types ...string) *recordingHandler {
	return &recordingHandler{types: types}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// memoryStore is a map-backed shared.IdempotencyStore
type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemoryStore() *memoryStore { return &memoryStore{keys: make(map[string]bool)} }

func (s *memoryStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memoryStore) Close() error { return nil }
