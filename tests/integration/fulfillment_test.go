//go:build integration

package integration

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	appsales "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

const warehouse = "WH-MAIN"

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

type services struct {
	documents    *appsales.DocumentService
	conversions  *appsales.ConversionService
	availability *appsales.AvailabilityService
	items        *appsales.ItemService
	rules        *appsales.RuleService
}

func newServices(t *testing.T, tdb *TestDB) *services {
	t.Helper()

	log := zaptest.NewLogger(t)
	serializer := event.NewEventSerializer()
	event.RegisterFulfillmentEvents(serializer)
	scope := persistence.NewGormTransactionScope(tdb.DB, event.NewOutboxPublisher(serializer),
		persistence.WithLockTimeout(5*time.Second),
	)
	docRepo := persistence.NewGormDocumentRepository(tdb.DB)
	itemRepo := persistence.NewGormItemRepository(tdb.DB)

	ledger := appsales.NewLedger(appsales.LedgerConfig{EnforceAvailability: true}, log)
	engine := appsales.NewFreeItemEngine(log)
	tracker := appsales.NewFulfillmentTracker(log)
	retry := appsales.DefaultRetryConfig()

	s := &services{
		documents:   appsales.NewDocumentService(docRepo, scope, ledger, engine, tracker, retry, log),
		conversions: appsales.NewConversionService(docRepo, scope, ledger, engine, tracker, retry, log),
		availability: appsales.NewAvailabilityService(
			persistence.NewGormAvailabilityRepository(tdb.DB),
			persistence.NewGormInventoryTransactionRepository(tdb.DB),
			scope, retry, log,
		),
		items: appsales.NewItemService(itemRepo),
		rules: appsales.NewRuleService(persistence.NewGormFreeItemRuleRepository(tdb.DB), itemRepo, log),
	}

	ctx := context.Background()
	for _, code := range []string{"ITEM-A", "ITEM-B"} {
		_, err := s.items.Save(ctx, appsales.SaveItemRequest{
			Code: code, Name: code, DefaultUOM: "Nos", DefaultWarehouse: warehouse,
		})
		require.NoError(t, err)
	}
	return s
}

func (s *services) stock(t *testing.T, item string, qty int64) {
	t.Helper()
	_, err := s.availability.AdjustStock(context.Background(), appsales.AdjustStockRequest{
		ItemCode: item, Warehouse: warehouse, InStock: decimal.NewFromInt(qty),
	})
	require.NoError(t, err)
}

func (s *services) row(t *testing.T, item string) *appsales.AvailabilityResponse {
	t.Helper()
	row, err := s.availability.Get(context.Background(), item, warehouse)
	require.NoError(t, err)
	return row
}

func orderLine(item string, qty, price int64) appsales.LineInput {
	return appsales.LineInput{ItemCode: item, Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(price)}
}

func assertQty(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), append([]any{"want %d, got %s", want, got}, msgAndArgs...)...)
}

func TestFulfillmentPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	s := newServices(t, tdb)
	ctx := context.Background()

	s.stock(t, "ITEM-A", 50)
	s.stock(t, "ITEM-B", 50)

	_, err := s.rules.Create(ctx, appsales.CreateFreeItemRuleRequest{
		TriggerItem: "ITEM-A", BuyQuantity: decimal.NewFromInt(5),
		RewardItem: "ITEM-B", FreeQuantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	quote, err := s.documents.CreateDocument(ctx, appsales.CreateDocumentRequest{
		Type: sales.DocumentTypeQuotation, CustomerID: "CUST-001", Status: sales.StatusOpen,
		Lines: []appsales.LineInput{orderLine("ITEM-A", 10, 4)},
	})
	require.NoError(t, err)
	assertQty(t, 40, quote.TotalAmount)

	t.Run("quotation converts to an order that commits stock", func(t *testing.T) {
		payload, err := s.conversions.PrepareConversion(ctx, quote.ID, sales.DocumentTypeOrder)
		require.NoError(t, err)
		order, err := s.conversions.CommitConversion(ctx, *payload)
		require.NoError(t, err)

		assert.Equal(t, sales.StatusOpen, order.Status)
		var free int
		for _, l := range order.Lines {
			if l.IsAuto {
				free++
				assert.Equal(t, "ITEM-B", l.ItemCode)
				assertQty(t, 2, l.Quantity)
			}
		}
		assert.Equal(t, 1, free, "one free line for ITEM-B")
		assertQty(t, 10, s.row(t, "ITEM-A").Committed)

		converted, err := s.documents.GetByID(ctx, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, sales.StatusConverted, converted.Status)

		t.Run("deliveries post stock until the order is exhausted", func(t *testing.T) {
			payload, err := s.conversions.PrepareConversion(ctx, order.ID, sales.DocumentTypeDelivery)
			require.NoError(t, err)
			for i := range payload.Lines {
				if payload.Lines[i].ItemCode == "ITEM-A" {
					payload.Lines[i].Quantity = decimal.NewFromInt(4)
				}
			}
			_, err = s.conversions.CommitConversion(ctx, *payload)
			require.NoError(t, err)

			partial, err := s.documents.GetByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, sales.StatusPartiallyDelivered, partial.Status)

			payload, err = s.conversions.PrepareConversion(ctx, order.ID, sales.DocumentTypeDelivery)
			require.NoError(t, err)
			_, err = s.conversions.CommitConversion(ctx, *payload)
			require.NoError(t, err)

			_, err = s.conversions.PrepareConversion(ctx, order.ID, sales.DocumentTypeDelivery)
			assert.True(t, shared.IsExhausted(err))

			rowA := s.row(t, "ITEM-A")
			assertQty(t, 40, rowA.InStock)
			assertQty(t, 0, rowA.Committed)
		})
	})

	var outboxRows int64
	require.NoError(t, tdb.DB.Table("outbox_events").Count(&outboxRows).Error)
	assert.Positive(t, outboxRows, "document events are written to the outbox")
}

// Concurrent orders for the same row serialize on the ledger row lock, so
// availability never goes negative.
func TestLedger_ConcurrentOrders_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	s := newServices(t, tdb)
	s.stock(t, "ITEM-A", 10)

	var placed, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := s.documents.CreateDocument(context.Background(), appsales.CreateDocumentRequest{
				Type: sales.DocumentTypeOrder, CustomerID: "CUST-001", Status: sales.StatusOpen,
				Lines: []appsales.LineInput{orderLine("ITEM-A", 1, 1)},
			})
			switch {
			case err == nil:
				placed.Add(1)
			case shared.HasCode(err, shared.CodeInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 10, placed.Load())
	assert.EqualValues(t, 10, rejected.Load())

	row := s.row(t, "ITEM-A")
	assertQty(t, 10, row.Committed)
	assertQty(t, 0, row.Available)
}

func TestOutboxRelay_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	s := newServices(t, tdb)
	s.stock(t, "ITEM-A", 10)

	log := zaptest.NewLogger(t)
	serializer := event.NewEventSerializer()
	event.RegisterFulfillmentEvents(serializer)
	bus := event.NewInMemoryEventBus(log)
	recorder := testutil.NewRecordingHandler(sales.EventTypeDocumentStatusChanged)
	bus.Subscribe(recorder, recorder.EventTypes()...)

	cfg := event.DefaultOutboxProcessorConfig()
	cfg.PollInterval = 50 * time.Millisecond
	cfg.CleanupEnabled = false
	processor := event.NewOutboxProcessor(event.NewGormOutboxRepository(tdb.DB), bus, serializer, cfg, log)
	require.NoError(t, processor.Start(context.Background()))
	t.Cleanup(func() { _ = processor.Stop(context.Background()) })

	order, err := s.documents.CreateDocument(context.Background(), appsales.CreateDocumentRequest{
		Type: sales.DocumentTypeOrder, CustomerID: "CUST-001", Status: sales.StatusDraft,
		Lines: []appsales.LineInput{orderLine("ITEM-A", 2, 3)},
	})
	require.NoError(t, err)
	_, err = s.documents.Open(context.Background(), order.ID)
	require.NoError(t, err)
	_, err = s.documents.Cancel(context.Background(), order.ID)
	require.NoError(t, err)

	require.True(t, testutil.WaitForCondition(t, func() bool {
		return recorder.CountOf(sales.EventTypeDocumentStatusChanged) >= 2
	}, 10*time.Second, 50*time.Millisecond), "status changes relayed from the outbox")
	for _, e := range recorder.Handled() {
		assert.Equal(t, order.ID, e.AggregateID())
	}
}

func TestMigrations_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)

	for _, table := range []string{
		"items", "item_warehouse_availability", "inventory_transactions",
		"sales_documents", "sales_document_lines", "free_item_rules", "outbox_events",
	} {
		assert.True(t, tdb.DB.Migrator().HasTable(table), table)
	}
}
