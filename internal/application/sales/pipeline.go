package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"go.uber.org/zap"
)

// pipeline is the explicit post-persist orchestration shared by document
// writes and conversions: rule engine, numbering, ledger, status tracking
// and outbox, always in that order and always inside the caller's transaction.
type pipeline struct {
	ledger  *Ledger
	engine  *FreeItemEngine
	tracker *FulfillmentTracker
	logger  *zap.Logger
}

// requiresWarehouse reports whether lines of docType touch the ledger
func requiresWarehouse(docType sales.DocumentType) bool {
	switch docType {
	case sales.DocumentTypeOrder, sales.DocumentTypeDelivery, sales.DocumentTypeReturn:
		return true
	default:
		return false
	}
}

// resolveLines builds domain lines from inputs, filling item name, default
// uom and default warehouse from the item master. Inputs carrying an id must
// name a line of existing; ids of auto lines are ignored since those lines
// are owned by the rule engine.
func (p *pipeline) resolveLines(ctx context.Context, repos TransactionalRepositories, docType sales.DocumentType, inputs []LineInput, existing *sales.Document) ([]sales.Line, error) {
	codes := make([]string, 0, len(inputs))
	for _, in := range inputs {
		codes = append(codes, strings.TrimSpace(in.ItemCode))
	}
	items, err := repos.ItemRepo().FindByCodes(ctx, dedupe(codes))
	if err != nil {
		return nil, err
	}

	var fields []shared.FieldError
	lines := make([]sales.Line, 0, len(inputs))
	for i, in := range inputs {
		path := fmt.Sprintf("lines[%d]", i)

		var prev *sales.Line
		if in.ID != nil {
			var found bool
			if existing != nil {
				prev, found = existing.FindLine(*in.ID)
			}
			if !found {
				fields = append(fields, shared.FieldError{Field: path + ".id", Message: "Line does not belong to this document"})
				continue
			}
			if prev.IsAuto {
				continue
			}
		}

		item, ok := items[strings.TrimSpace(in.ItemCode)]
		if !ok {
			fields = append(fields, shared.FieldError{Field: path + ".item_code", Message: "Unknown item"})
			continue
		}
		uom := strings.TrimSpace(in.UOM)
		if uom == "" {
			uom = item.DefaultUOM
		}

		line, err := sales.NewLine(item.Code, uom, in.Quantity, in.UnitPrice)
		if err != nil {
			var verr *shared.ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			for _, f := range verr.Fields {
				fields = append(fields, shared.FieldError{Field: path + "." + f.Field, Message: f.Message})
			}
			continue
		}

		line.ItemName = item.Name
		line.Warehouse = item.ResolveWarehouse(in.Warehouse)
		if line.Warehouse == "" && requiresWarehouse(docType) {
			fields = append(fields, shared.FieldError{Field: path + ".warehouse", Message: "No warehouse given and the item has no default"})
			continue
		}
		line.SourceLineID = in.SourceLineID
		line.Remark = in.Remark
		if in.IsActive != nil {
			line.IsActive = *in.IsActive
		}
		if prev != nil {
			line.ID = prev.ID
			line.CreatedAt = prev.CreatedAt
			if line.SourceLineID == nil {
				line.SourceLineID = prev.SourceLineID
			}
		}
		lines = append(lines, *line)
	}

	if len(fields) > 0 {
		return nil, shared.NewValidationError("Invalid document lines", fields...)
	}
	return lines, nil
}

// persistNew numbers and inserts doc, then runs the ledger, status tracking
// and outbox for it
func (p *pipeline) persistNew(ctx context.Context, repos TransactionalRepositories, doc *sales.Document) error {
	if doc.CommitsStock() {
		if _, err := p.engine.Recompute(ctx, repos, NewRecomputeScope(), doc); err != nil {
			return err
		}
	}

	number, err := repos.DocumentRepo().NextNumber(ctx, doc.Type, doc.DocumentDate)
	if err != nil {
		return err
	}
	doc.Number = number

	ops, err := p.stockOps(ctx, repos, doc, stockState{})
	if err != nil {
		return err
	}
	if _, err := p.tracker.RecomputeFulfillmentStatus(ctx, repos, doc); err != nil {
		return err
	}

	if err := repos.DocumentRepo().Create(ctx, doc); err != nil {
		return err
	}
	if err := p.ledger.Apply(ctx, repos, doc, ops); err != nil {
		return err
	}
	if err := p.tracker.FinalizeConversion(ctx, repos, doc); err != nil {
		return err
	}
	if err := flushEvents(ctx, repos, doc); err != nil {
		return err
	}

	p.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("type", string(doc.Type)),
		zap.String("status", string(doc.Status)),
		zap.Int("lines", len(doc.Lines)),
	)
	return nil
}

// stockOps derives the ledger ops of doc moving from before to its current
// state. A delivery also settles the commitments of its order, whose row is
// locked here so orders are always locked before ledger rows.
func (p *pipeline) stockOps(ctx context.Context, repos TransactionalRepositories, doc *sales.Document, before stockState) ([]StockOp, error) {
	after := stockStateOf(doc)
	ops := p.ledger.diffOps(before, after)
	if doc.Type != sales.DocumentTypeDelivery || doc.OrderID == nil || (!before.active && !after.active) {
		return ops, nil
	}

	order, err := repos.DocumentRepo().FindByIDForUpdate(ctx, *doc.OrderID)
	if err != nil {
		return nil, err
	}
	deliveries, err := repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
		Type:    sales.DocumentTypeDelivery,
		OrderID: doc.OrderID,
	})
	if err != nil {
		return nil, err
	}
	others := make([]*sales.Document, 0, len(deliveries))
	for _, d := range deliveries {
		if d.ID != doc.ID {
			others = append(others, d)
		}
	}
	return append(ops, settleOps(order, others, before, after)...), nil
}

// persistChanges saves an existing doc and applies ops to the ledger
func (p *pipeline) persistChanges(ctx context.Context, repos TransactionalRepositories, doc *sales.Document, ops []StockOp) error {
	if err := repos.DocumentRepo().SaveWithLock(ctx, doc); err != nil {
		return err
	}
	if err := p.ledger.Apply(ctx, repos, doc, ops); err != nil {
		return err
	}
	if err := p.tracker.FinalizeConversion(ctx, repos, doc); err != nil {
		return err
	}
	return flushEvents(ctx, repos, doc)
}
