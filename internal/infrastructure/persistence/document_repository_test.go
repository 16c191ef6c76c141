package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDocumentRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00001",
		testLine{"ITEM-A", 5}, testLine{"ITEM-B", 3}, testLine{"ITEM-C", 1})
	require.NoError(t, repo.Create(ctx, doc))

	t.Run("by id with lines in position order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)

		assert.Equal(t, doc.Number, found.Number)
		assert.Equal(t, sales.DocumentTypeOrder, found.Type)
		assert.Equal(t, 1, found.Version)
		require.Len(t, found.Lines, 3)
		for i, line := range found.Lines {
			assert.Equal(t, i+1, line.Position)
			assert.Equal(t, doc.ID, line.DocumentID)
		}
		assert.Equal(t, "ITEM-A", found.Lines[0].ItemCode)
		assert.True(t, found.Lines[0].Quantity.Equal(decimal.NewFromInt(5)))
		assert.True(t, found.TotalAmount.Equal(doc.TotalAmount))
	})

	t.Run("by number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, "SO-2026-00001")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, found.ID)
	})

	t.Run("for update on sqlite", func(t *testing.T) {
		found, err := repo.FindByIDForUpdate(ctx, doc.ID)
		require.NoError(t, err)
		assert.Len(t, found.Lines, 3)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByNumber(ctx, "SO-2026-99999")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormDocumentRepository_CreateDuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00001", testLine{"ITEM-A", 1})))

	err := repo.Create(ctx, newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00001", testLine{"ITEM-A", 1}))
	require.Error(t, err)
	assert.True(t, shared.IsConcurrency(err), "duplicate numbers must be retryable, got %v", err)
}

func TestGormDocumentRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	doc := newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00001",
		testLine{"ITEM-A", 5}, testLine{"ITEM-B", 3})
	require.NoError(t, repo.Create(ctx, doc))

	t.Run("replaces lines and bumps version", func(t *testing.T) {
		kept := doc.Lines[0]
		kept.Quantity = decimal.NewFromInt(8)
		added, err := sales.NewLine("ITEM-C", "Nos", decimal.NewFromInt(2), decimal.Zero)
		require.NoError(t, err)
		require.NoError(t, doc.ReplaceLines([]sales.Line{kept, *added}))
		doc.Remark = "changed"

		require.NoError(t, repo.SaveWithLock(ctx, doc))
		assert.Equal(t, 2, doc.Version)

		found, err := repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, found.Version)
		assert.Equal(t, "changed", found.Remark)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, kept.ID, found.Lines[0].ID)
		assert.True(t, found.Lines[0].Quantity.Equal(decimal.NewFromInt(8)))
		assert.Equal(t, "ITEM-C", found.Lines[1].ItemCode)
	})

	t.Run("stale version is a concurrency conflict", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, doc.ID)
		require.NoError(t, err)
		stale.Version = 1

		err = repo.SaveWithLock(ctx, stale)
		require.Error(t, err)
		assert.True(t, shared.IsConcurrency(err))
		assert.Equal(t, 1, stale.Version)
	})

	t.Run("unknown document", func(t *testing.T) {
		ghost := newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00042")
		err := repo.SaveWithLock(ctx, ghost)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormDocumentRepository_NextNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	number, err := repo.NextNumber(ctx, sales.DocumentTypeDelivery, at)
	require.NoError(t, err)
	assert.Equal(t, "DL-2026-00001", number)

	require.NoError(t, repo.Create(ctx, newTestDocument(t, sales.DocumentTypeDelivery, "DL-2026-00001")))
	require.NoError(t, repo.Create(ctx, newTestDocument(t, sales.DocumentTypeDelivery, "DL-2026-00002")))
	require.NoError(t, repo.Create(ctx, newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00007")))

	number, err = repo.NextNumber(ctx, sales.DocumentTypeDelivery, at)
	require.NoError(t, err)
	assert.Equal(t, "DL-2026-00003", number)

	number, err = repo.NextNumber(ctx, sales.DocumentTypeOrder, at)
	require.NoError(t, err)
	assert.Equal(t, "SO-2026-00008", number)

	number, err = repo.NextNumber(ctx, sales.DocumentTypeDelivery, at.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "DL-2027-00001", number)
}

func TestGormDocumentRepository_FindDownstream(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	order := newTestDocument(t, sales.DocumentTypeOrder, "SO-2026-00001", testLine{"ITEM-A", 10})
	require.NoError(t, repo.Create(ctx, order))

	delivery := newTestDocument(t, sales.DocumentTypeDelivery, "DL-2026-00001", testLine{"ITEM-A", 4})
	delivery.SetSource(sales.DocumentTypeOrder, order.ID, &order.ID)
	require.NoError(t, repo.Create(ctx, delivery))

	invoice := newTestDocument(t, sales.DocumentTypeInvoice, "IV-2026-00001", testLine{"ITEM-A", 4})
	invoice.SetSource(sales.DocumentTypeDelivery, delivery.ID, &order.ID)
	require.NoError(t, repo.Create(ctx, invoice))

	t.Run("by order", func(t *testing.T) {
		invoices, err := repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeInvoice, OrderID: &order.ID})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, invoice.ID, invoices[0].ID)
		require.NotNil(t, invoices[0].Source)
		assert.Equal(t, delivery.ID, invoices[0].Source.ID)
		assert.Len(t, invoices[0].Lines, 1)
	})

	t.Run("by direct source", func(t *testing.T) {
		invoices, err := repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeInvoice, SourceID: &delivery.ID})
		require.NoError(t, err)
		assert.Len(t, invoices, 1)

		deliveries, err := repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeDelivery, SourceID: &delivery.ID})
		require.NoError(t, err)
		assert.Empty(t, deliveries)
	})

	t.Run("requires a reference", func(t *testing.T) {
		_, err := repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeInvoice})
		assert.Error(t, err)
	})
}

func TestGormDocumentRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDocumentRepository(db)
	ctx := context.Background()

	for i, number := range []string{"SO-2026-00001", "SO-2026-00002", "SO-2026-00003"} {
		doc := newTestDocument(t, sales.DocumentTypeOrder, number, testLine{"ITEM-A", int64(i + 1)})
		require.NoError(t, repo.Create(ctx, doc))
	}
	require.NoError(t, repo.Create(ctx, newTestDocument(t, sales.DocumentTypeQuotation, "QT-2026-00001")))

	docs, total, err := repo.List(ctx, sales.DocumentFilter{
		Filter: shared.Filter{Page: 1, PageSize: 2, OrderBy: "number", OrderDir: "asc"},
		Type:   sales.DocumentTypeOrder,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, docs, 2)
	assert.Equal(t, "SO-2026-00001", docs[0].Number)
	assert.Equal(t, "SO-2026-00002", docs[1].Number)

	docs, total, err = repo.List(ctx, sales.DocumentFilter{
		Filter: shared.Filter{Search: "QT-", OrderBy: "number; DROP TABLE sales_documents"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, sales.DocumentTypeQuotation, docs[0].Type)
}

func TestGormDocumentRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock, mockDB := newMockPostgres(t)
	defer mockDB.Close()
	repo := NewGormDocumentRepository(gormDB)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "sales_documents" WHERE id = \$1 ORDER BY "sales_documents"."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "number", "status", "customer_id", "version"}).
			AddRow(id, "ORDER", "SO-2026-00001", "OPEN", "CUST-001", 3))
	mock.ExpectQuery(`SELECT \* FROM "sales_document_lines" WHERE document_id = \$1 ORDER BY position ASC`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "position", "item_code", "uom", "quantity"}).
			AddRow(uuid.New(), id, 1, "ITEM-A", "Nos", "5"))

	doc, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)
	require.Len(t, doc.Lines, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
