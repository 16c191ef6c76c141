package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FulfillmentTracker keeps the progress statuses of documents in step with
// the documents converted from them
type FulfillmentTracker struct {
	logger *zap.Logger
}

// NewFulfillmentTracker creates a new FulfillmentTracker
func NewFulfillmentTracker(logger *zap.Logger) *FulfillmentTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentTracker{logger: logger}
}

// RecomputeFulfillmentStatus scans the downstream documents of doc and moves
// it to the status they imply. The caller persists doc. It reports whether
// the status changed.
func (t *FulfillmentTracker) RecomputeFulfillmentStatus(ctx context.Context, repos TransactionalRepositories, doc *sales.Document) (bool, error) {
	if doc.Status.IsTerminalFor(doc.Type) {
		return false, nil
	}
	view, err := t.loadView(ctx, repos, doc)
	if err != nil {
		return false, err
	}

	from := doc.Status
	changed, err := doc.ApplyFulfillmentStatus(sales.FulfillmentStatus(doc, view))
	if err != nil {
		return false, err
	}
	if changed {
		t.logger.Info("Fulfillment status changed",
			zap.String("document_id", doc.ID.String()),
			zap.String("number", doc.Number),
			zap.String("from", string(from)),
			zap.String("to", string(doc.Status)),
		)
	}
	return changed, nil
}

// FinalizeConversion runs after doc was persisted. It refreshes the status of
// the document doc was converted from and, when different, of the sales
// order it descends from.
func (t *FulfillmentTracker) FinalizeConversion(ctx context.Context, repos TransactionalRepositories, doc *sales.Document) error {
	if doc.Source == nil {
		return nil
	}
	if err := t.refresh(ctx, repos, doc.Source.ID); err != nil {
		return err
	}
	if doc.OrderID != nil && *doc.OrderID != doc.Source.ID {
		return t.refresh(ctx, repos, *doc.OrderID)
	}
	return nil
}

func (t *FulfillmentTracker) refresh(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) error {
	doc, err := repos.DocumentRepo().FindByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}
	changed, err := t.RecomputeFulfillmentStatus(ctx, repos, doc)
	if err != nil || !changed {
		return err
	}
	if err := repos.DocumentRepo().SaveWithLock(ctx, doc); err != nil {
		return err
	}
	return flushEvents(ctx, repos, doc)
}

func (t *FulfillmentTracker) loadView(ctx context.Context, repos TransactionalRepositories, doc *sales.Document) (sales.FulfillmentView, error) {
	var view sales.FulfillmentView
	var err error
	id := doc.ID

	switch doc.Type {
	case sales.DocumentTypeQuotation:
		view.Orders, err = repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
			Type: sales.DocumentTypeOrder, SourceID: &id,
		})
	case sales.DocumentTypeOrder:
		view.Deliveries, err = repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
			Type: sales.DocumentTypeDelivery, OrderID: &id,
		})
		if err != nil {
			return view, err
		}
		view.Invoices, err = repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
			Type: sales.DocumentTypeInvoice, OrderID: &id,
		})
	case sales.DocumentTypeDelivery:
		view.Invoices, err = repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
			Type: sales.DocumentTypeInvoice, SourceID: &id,
		})
	}
	return view, err
}

// flushEvents hands the aggregate's pending events to the outbox and clears them
func flushEvents(ctx context.Context, repos TransactionalRepositories, agg shared.EventRecorder) error {
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := repos.EventSaver().SaveEvents(ctx, events...); err != nil {
		return err
	}
	agg.ClearDomainEvents()
	return nil
}
