package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory sqlite database
func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// newMockPostgres opens a postgres-dialect gorm DB on top of sqlmock
func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

type testLine struct {
	item string
	qty  int64
}

func newTestDocument(t *testing.T, docType sales.DocumentType, number string, lines ...testLine) *sales.Document {
	t.Helper()

	doc, err := sales.NewDocument(docType, "CUST-001", sales.StatusDraft)
	require.NoError(t, err)
	doc.Number = number
	for _, l := range lines {
		line, err := sales.NewLine(l.item, "Nos", decimal.NewFromInt(l.qty), decimal.NewFromInt(10))
		require.NoError(t, err)
		line.Warehouse = "WH-MAIN"
		require.NoError(t, doc.AddLine(*line))
	}
	doc.ClearDomainEvents()
	return doc
}

// recordingOutbox collects events saved through any transaction
type recordingOutbox struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (o *recordingOutbox) Saver(*gorm.DB) shared.EventSaver {
	return o
}

func (o *recordingOutbox) SaveEvents(_ context.Context, events ...shared.DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
	return nil
}
