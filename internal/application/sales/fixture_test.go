package sales_test

import (
	"context"
	"testing"

	appsales "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const warehouse = "WH-MAIN"

// fixture wires the services to a migrated in-memory sqlite database
type fixture struct {
	db           *gorm.DB
	documents    *appsales.DocumentService
	conversions  *appsales.ConversionService
	availability *appsales.AvailabilityService
	rules        *appsales.RuleService
	items        *appsales.ItemService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	log := zap.NewNop()
	scope := persistence.NewGormTransactionScope(db, event.NewOutboxPublisher(event.NewEventSerializer()))
	docRepo := persistence.NewGormDocumentRepository(db)
	itemRepo := persistence.NewGormItemRepository(db)

	ledger := appsales.NewLedger(appsales.LedgerConfig{EnforceAvailability: true}, log)
	engine := appsales.NewFreeItemEngine(log)
	tracker := appsales.NewFulfillmentTracker(log)
	retry := appsales.DefaultRetryConfig()

	f := &fixture{
		db:          db,
		documents:   appsales.NewDocumentService(docRepo, scope, ledger, engine, tracker, retry, log),
		conversions: appsales.NewConversionService(docRepo, scope, ledger, engine, tracker, retry, log),
		availability: appsales.NewAvailabilityService(
			persistence.NewGormAvailabilityRepository(db),
			persistence.NewGormInventoryTransactionRepository(db),
			scope, retry, log,
		),
		rules: appsales.NewRuleService(persistence.NewGormFreeItemRuleRepository(db), itemRepo, log),
		items: appsales.NewItemService(itemRepo),
	}

	for _, code := range []string{"ITEM-A", "ITEM-B", "ITEM-C"} {
		_, err := f.items.Save(context.Background(), appsales.SaveItemRequest{
			Code: code, Name: code, DefaultUOM: "Nos", DefaultWarehouse: warehouse,
		})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) stock(t *testing.T, item string, qty int64) {
	t.Helper()
	_, err := f.availability.AdjustStock(context.Background(), appsales.AdjustStockRequest{
		ItemCode: item, Warehouse: warehouse, InStock: decimal.NewFromInt(qty),
	})
	require.NoError(t, err)
}

func (f *fixture) row(t *testing.T, item string) *appsales.AvailabilityResponse {
	t.Helper()
	row, err := f.availability.Get(context.Background(), item, warehouse)
	require.NoError(t, err)
	return row
}

func (f *fixture) createOrder(t *testing.T, lines ...appsales.LineInput) *appsales.DocumentResponse {
	t.Helper()
	doc, err := f.documents.CreateDocument(context.Background(), appsales.CreateDocumentRequest{
		Type:       sales.DocumentTypeOrder,
		CustomerID: "CUST-001",
		Status:     sales.StatusOpen,
		Lines:      lines,
	})
	require.NoError(t, err)
	return doc
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *appsales.DocumentResponse {
	t.Helper()
	doc, err := f.documents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return doc
}

// convertAll prepares a conversion and commits it unedited
func (f *fixture) convertAll(t *testing.T, sourceID uuid.UUID, target sales.DocumentType) *appsales.DocumentResponse {
	t.Helper()
	payload, err := f.conversions.PrepareConversion(context.Background(), sourceID, target)
	require.NoError(t, err)
	doc, err := f.conversions.CommitConversion(context.Background(), *payload)
	require.NoError(t, err)
	return doc
}

func line(item string, qty int64, price int64) appsales.LineInput {
	return appsales.LineInput{ItemCode: item, Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(price)}
}

func keepLine(l appsales.LineResponse) appsales.LineInput {
	id := l.ID
	return appsales.LineInput{ID: &id, ItemCode: l.ItemCode, UOM: l.UOM, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Warehouse: l.Warehouse}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func autoLines(doc *appsales.DocumentResponse) []appsales.LineResponse {
	var out []appsales.LineResponse
	for _, l := range doc.Lines {
		if l.IsAuto {
			out = append(out, l)
		}
	}
	return out
}

// createOpen creates an open document of docType
func (f *fixture) createOpen(t *testing.T, docType sales.DocumentType, lines ...appsales.LineInput) *appsales.DocumentResponse {
	t.Helper()
	doc, err := f.documents.CreateDocument(context.Background(), appsales.CreateDocumentRequest{
		Type:       docType,
		CustomerID: "CUST-001",
		Status:     sales.StatusOpen,
		Lines:      lines,
	})
	require.NoError(t, err)
	return doc
}

// convertPart converts qty of the single line left on the source
func (f *fixture) convertPart(t *testing.T, sourceID uuid.UUID, target sales.DocumentType, qty int64) *appsales.DocumentResponse {
	t.Helper()
	payload, err := f.conversions.PrepareConversion(context.Background(), sourceID, target)
	require.NoError(t, err)
	require.Len(t, payload.Lines, 1)
	payload.Lines[0].Quantity = dec(qty)
	doc, err := f.conversions.CommitConversion(context.Background(), *payload)
	require.NoError(t, err)
	return doc
}

// setQty rewrites the first manual line of doc to qty
func (f *fixture) setQty(doc *appsales.DocumentResponse, qty int64) (*appsales.DocumentResponse, error) {
	for _, l := range doc.Lines {
		if l.IsAuto {
			continue
		}
		edited := keepLine(l)
		edited.Quantity = dec(qty)
		return f.documents.UpdateDocument(context.Background(), doc.ID, appsales.UpdateDocumentRequest{
			Lines: []appsales.LineInput{edited},
		})
	}
	return nil, nil
}
