package sales_test

import (
	"context"
	"errors"
	"testing"

	appsales "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func assertDecimal(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), append([]any{"want %d, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestLedger_CommitAndReleaseOnLineDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, "ITEM-A", 100)

	order := f.createOrder(t, line("ITEM-A", 30, 5), line("ITEM-B", 1, 1))

	row := f.row(t, "ITEM-A")
	assertDecimal(t, 100, row.InStock)
	assertDecimal(t, 30, row.Committed)
	assertDecimal(t, 70, row.Available)

	var keep appsales.LineResponse
	for _, l := range order.Lines {
		if l.ItemCode == "ITEM-B" {
			keep = l
		}
	}
	_, err := f.documents.UpdateDocument(ctx, order.ID, appsales.UpdateDocumentRequest{
		Lines: []appsales.LineInput{keepLine(keep)},
	})
	require.NoError(t, err)

	row = f.row(t, "ITEM-A")
	assertDecimal(t, 0, row.Committed)
	assertDecimal(t, 100, row.Available)
}

func TestLedger_LineUpdateCommitsDifference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, "ITEM-A", 100)

	order := f.createOrder(t, line("ITEM-A", 30, 5))
	edited := keepLine(order.Lines[0])
	edited.Quantity = dec(45)

	updated, err := f.documents.UpdateDocument(ctx, order.ID, appsales.UpdateDocumentRequest{
		Version: &order.Version,
		Lines:   []appsales.LineInput{edited},
	})
	require.NoError(t, err)
	assert.Equal(t, order.Lines[0].ID, updated.Lines[0].ID)

	row := f.row(t, "ITEM-A")
	assertDecimal(t, 45, row.Committed)
	assertDecimal(t, 55, row.Available)

	journal, err := f.availability.Journal(ctx, "ITEM-A", warehouse, shared.Filter{})
	require.NoError(t, err)
	require.Len(t, journal, 2)
	total := decimal.Zero
	for _, j := range journal {
		total = total.Add(j.Quantity)
		assert.Contains(t, j.Reference, "SO-"+order.Number)
	}
	assertDecimal(t, 45, total, "journal sums to the committed quantity")
}

func TestLedger_StaleVersionIsRejected(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "ITEM-A", 100)
	order := f.createOrder(t, line("ITEM-A", 10, 5))

	stale := order.Version - 1
	_, err := f.documents.UpdateDocument(context.Background(), order.ID, appsales.UpdateDocumentRequest{
		Version: &stale,
		Lines:   []appsales.LineInput{keepLine(order.Lines[0])},
	})
	assert.True(t, shared.IsConcurrency(err))
}

func TestLedger_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, "ITEM-A", 100)
	f.stock(t, "ITEM-B", 5)

	_, err := f.documents.CreateDocument(ctx, appsales.CreateDocumentRequest{
		Type:       "ORDER",
		CustomerID: "CUST-001",
		Status:     "OPEN",
		Lines:      []appsales.LineInput{line("ITEM-A", 30, 5), line("ITEM-B", 6, 5)},
	})
	require.Error(t, err)

	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "ITEM-B", stockErr.ItemCode)
	assert.Equal(t, warehouse, stockErr.Warehouse)
	assertDecimal(t, 5, stockErr.Available)
	assertDecimal(t, 6, stockErr.Required)

	assertDecimal(t, 0, f.row(t, "ITEM-A").Committed, "earlier line is rolled back")
	docs, total, err := f.documents.List(ctx, appsales.DocumentListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func TestLedger_DraftOrdersDoNotCommitUntilOpened(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, "ITEM-A", 100)

	draft, err := f.documents.CreateDocument(ctx, appsales.CreateDocumentRequest{
		Type: "ORDER", CustomerID: "CUST-001", Status: "DRAFT",
		Lines: []appsales.LineInput{line("ITEM-A", 20, 5)},
	})
	require.NoError(t, err)
	assertDecimal(t, 0, f.row(t, "ITEM-A").Committed)

	opened, err := f.documents.Open(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", string(opened.Status))
	assertDecimal(t, 20, f.row(t, "ITEM-A").Committed)
}

func TestLedger_CancelReleasesUndeliveredCommitment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.stock(t, "ITEM-A", 100)

	order := f.createOrder(t, line("ITEM-A", 10, 5))
	payload, err := f.conversions.PrepareConversion(ctx, order.ID, "DELIVERY")
	require.NoError(t, err)
	payload.Lines[0].Quantity = dec(4)
	_, err = f.conversions.CommitConversion(ctx, *payload)
	require.NoError(t, err)

	row := f.row(t, "ITEM-A")
	assertDecimal(t, 96, row.InStock)
	assertDecimal(t, 6, row.Committed)

	cancelled, err := f.documents.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", string(cancelled.Status))

	row = f.row(t, "ITEM-A")
	assertDecimal(t, 0, row.Committed)
	assertDecimal(t, 96, row.Available)
}

func TestLedger_ConcurrentOrdersKeepInvariant(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "ITEM-A", 1000)
	f.stock(t, "ITEM-B", 1000)

	const workers = 8
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			lines := []appsales.LineInput{line("ITEM-A", 10, 1), line("ITEM-B", 5, 1)}
			if i%2 == 1 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			order, err := f.documents.CreateDocument(ctx, appsales.CreateDocumentRequest{
				Type: "ORDER", CustomerID: "CUST-001", Status: "OPEN", Lines: lines,
			})
			if err != nil {
				return err
			}
			if i%4 == 0 {
				_, err = f.documents.Cancel(ctx, order.ID)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	a, b := f.row(t, "ITEM-A"), f.row(t, "ITEM-B")
	assertDecimal(t, 60, a.Committed)
	assertDecimal(t, 30, b.Committed)
	for _, row := range []*appsales.AvailabilityResponse{a, b} {
		assert.True(t, row.Available.Equal(row.InStock.Sub(row.Committed)), "available == in_stock - committed")
	}
}

func TestLedger_CancellingPostedDocuments(t *testing.T) {
	tests := []struct {
		name string
		// setup returns the document to cancel and the order behind it, if any
		setup      func(t *testing.T, f *fixture) (cancel uuid.UUID, order *appsales.DocumentResponse)
		inStock    int64
		committed  int64
		wantStatus sales.DocumentStatus
	}{
		{
			name: "delivery of an open order",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, *appsales.DocumentResponse) {
				order := f.createOrder(t, line("ITEM-A", 10, 5))
				return f.convertPart(t, order.ID, sales.DocumentTypeDelivery, 4).ID, order
			},
			inStock: 100, committed: 10, wantStatus: sales.StatusOpen,
		},
		{
			name: "delivery of a closed order",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, *appsales.DocumentResponse) {
				order := f.createOrder(t, line("ITEM-A", 10, 5))
				d1 := f.convertPart(t, order.ID, sales.DocumentTypeDelivery, 4)
				_, err := f.documents.Close(context.Background(), order.ID)
				require.NoError(t, err)
				assertDecimal(t, 0, f.row(t, "ITEM-A").Committed)
				return d1.ID, order
			},
			inStock: 100, committed: 0, wantStatus: sales.StatusClosed,
		},
		{
			name: "delivery of a cancelled order",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, *appsales.DocumentResponse) {
				order := f.createOrder(t, line("ITEM-A", 10, 5))
				d1 := f.convertPart(t, order.ID, sales.DocumentTypeDelivery, 4)
				_, err := f.documents.Cancel(context.Background(), order.ID)
				require.NoError(t, err)
				return d1.ID, order
			},
			inStock: 100, committed: 0, wantStatus: sales.StatusCancelled,
		},
		{
			name: "delivery without an order",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, *appsales.DocumentResponse) {
				other := f.createOrder(t, line("ITEM-A", 10, 5))
				d := f.createOpen(t, sales.DocumentTypeDelivery, line("ITEM-A", 4, 5))
				row := f.row(t, "ITEM-A")
				assertDecimal(t, 96, row.InStock)
				assertDecimal(t, 10, row.Committed, "another order's commitment is untouched")
				return d.ID, other
			},
			inStock: 100, committed: 10, wantStatus: sales.StatusOpen,
		},
		{
			name: "return of a delivery",
			setup: func(t *testing.T, f *fixture) (uuid.UUID, *appsales.DocumentResponse) {
				order := f.createOrder(t, line("ITEM-A", 10, 5))
				d1 := f.convertPart(t, order.ID, sales.DocumentTypeDelivery, 4)
				ret := f.convertAll(t, d1.ID, sales.DocumentTypeReturn)
				assertDecimal(t, 100, f.row(t, "ITEM-A").InStock)
				return ret.ID, order
			},
			inStock: 96, committed: 6, wantStatus: sales.StatusPartiallyDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.stock(t, "ITEM-A", 100)
			id, order := tt.setup(t, f)

			_, err := f.documents.Cancel(context.Background(), id)
			require.NoError(t, err)

			row := f.row(t, "ITEM-A")
			assertDecimal(t, tt.inStock, row.InStock)
			assertDecimal(t, tt.committed, row.Committed)
			assert.True(t, row.Available.Equal(row.InStock.Sub(row.Committed)))
			assert.Equal(t, tt.wantStatus, f.get(t, order.ID).Status)
		})
	}
}

func TestLedger_LineOps(t *testing.T) {
	ledger := appsales.NewLedger(appsales.LedgerConfig{}, nil)
	l, err := sales.NewLine("ITEM-A", "Nos", dec(15), dec(2))
	require.NoError(t, err)
	l.Warehouse = warehouse

	tests := []struct {
		name string
		op   appsales.StockOp
		want int64
	}{
		{"created", ledger.OnLineCreated(appsales.StockOpCommit, l), 15},
		{"updated up", ledger.OnLineUpdated(appsales.StockOpCommit, l, dec(10)), 5},
		{"updated down", ledger.OnLineUpdated(appsales.StockOpCommit, l, dec(30)), -15},
		{"deleted", ledger.OnLineDeleted(appsales.StockOpIssue, l), -15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, tt.op.Quantity)
			assert.Equal(t, "ITEM-A", tt.op.Key.ItemCode)
			assert.Equal(t, warehouse, tt.op.Key.Warehouse)
			assert.Equal(t, l.ID, tt.op.LineID)
		})
	}
}
