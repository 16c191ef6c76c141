package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DocumentService handles document writes and status operations. Every write
// is one transaction covering the document, its ledger effects, the status
// of the documents it was converted from and its outbox events.
type DocumentService struct {
	docRepo sales.DocumentRepository
	uow     *unitOfWork
	flow    *pipeline
	logger  *zap.Logger
	metrics *telemetry.FulfillmentMetrics
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docRepo sales.DocumentRepository,
	txScope TransactionScope,
	ledger *Ledger,
	engine *FreeItemEngine,
	tracker *FulfillmentTracker,
	retry RetryConfig,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docRepo: docRepo,
		uow:     &unitOfWork{txScope: txScope, cfg: retry, logger: logger},
		flow:    &pipeline{ledger: ledger, engine: engine, tracker: tracker, logger: logger},
		logger:  logger,
	}
}

// SetMetrics sets the metrics recorder (optional)
func (s *DocumentService) SetMetrics(m *telemetry.FulfillmentMetrics) {
	s.metrics = m
	s.uow.metrics = m
}

// CreateDocument creates a document with its lines
func (s *DocumentService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentType, string(req.Type),
		telemetry.SpanAttrCustomerID, req.CustomerID,
	)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var created *sales.Document
	err := s.uow.run(ctx, "create_document", func(repos TransactionalRepositories) error {
		doc, err := sales.NewDocument(req.Type, req.CustomerID, req.Status)
		if err != nil {
			return err
		}
		if req.DocumentDate != nil {
			doc.DocumentDate = *req.DocumentDate
		}
		doc.DueDate = req.DueDate
		doc.Remark = req.Remark

		lines, err := s.flow.resolveLines(ctx, repos, doc.Type, req.Lines, nil)
		if err != nil {
			return err
		}
		if err := doc.ReplaceLines(lines); err != nil {
			return err
		}
		if err := doc.SetAmounts(req.DiscountAmount, req.TaxAmount, req.PaidAmount); err != nil {
			return err
		}

		if err := s.flow.persistNew(ctx, repos, doc); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordDocumentCreated(ctx, string(created.Type))
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, created.Number)
	telemetry.SetOK(span)

	resp := ToDocumentResponse(created)
	return &resp, nil
}

// UpdateDocument replaces the header fields set in req and the full manual
// line set of a Draft or Open document. Lines are matched by id; the ledger
// receives the created, updated and deleted deltas. A converted document may
// not take more than its source has left, and a source may not drop below
// what was already converted from it.
func (s *DocumentService) UpdateDocument(ctx context.Context, id uuid.UUID, req UpdateDocumentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "update")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, id.String())

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var updated *sales.Document
	err := s.uow.run(ctx, "update_document", func(repos TransactionalRepositories) error {
		doc, err := repos.DocumentRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != doc.Version {
			return shared.NewConcurrencyError("%s %s was modified by another request (version %d, expected %d)",
				doc.Type, doc.Number, doc.Version, *req.Version)
		}
		if !doc.IsEditable() {
			return shared.NewInvalidStateError("Cannot edit %s %s in %s status", doc.Type, doc.Number, doc.Status)
		}

		before := stockStateOf(doc)
		manualBefore := doc.ManualLines()

		lines, err := s.flow.resolveLines(ctx, repos, doc.Type, req.Lines, doc)
		if err != nil {
			return err
		}
		if err := doc.ReplaceLines(append(lines, doc.AutoLines()...)); err != nil {
			return err
		}

		if req.CustomerID != nil {
			doc.CustomerID = *req.CustomerID
		}
		if req.DocumentDate != nil {
			doc.DocumentDate = *req.DocumentDate
		}
		if req.DueDate != nil {
			doc.DueDate = req.DueDate
		}
		if req.Remark != nil {
			doc.Remark = *req.Remark
		}
		if err := doc.SetAmounts(
			valueOr(req.DiscountAmount, doc.DiscountAmount),
			valueOr(req.TaxAmount, doc.TaxAmount),
			valueOr(req.PaidAmount, doc.PaidAmount),
		); err != nil {
			return err
		}

		if doc.CommitsStock() && manualLinesChanged(manualBefore, doc.ManualLines()) {
			if _, err := s.flow.engine.Recompute(ctx, repos, NewRecomputeScope(), doc); err != nil {
				return err
			}
		}

		if doc.Source != nil {
			if err := checkAgainstSource(ctx, repos.DocumentRepo(), doc); err != nil {
				return err
			}
		}
		if err := checkAgainstDownstream(ctx, repos.DocumentRepo(), doc); err != nil {
			return err
		}

		ops, err := s.flow.stockOps(ctx, repos, doc, before)
		if err != nil {
			return err
		}
		if _, err := s.flow.tracker.RecomputeFulfillmentStatus(ctx, repos, doc); err != nil {
			return err
		}
		if err := s.flow.persistChanges(ctx, repos, doc, ops); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Document updated",
		zap.String("document_id", updated.ID.String()),
		zap.String("number", updated.Number),
		zap.Int("version", updated.Version),
	)
	telemetry.SetOK(span)

	resp := ToDocumentResponse(updated)
	return &resp, nil
}

// Open moves a draft document to Open. Opening an order commits its lines
// and generates its free lines.
func (s *DocumentService) Open(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.changeStatus(ctx, id, sales.StatusOpen)
}

// Cancel cancels a document. Cancelling an order releases the commitments
// not yet consumed by deliveries; cancelling a delivery or return reverses
// its stock movement.
func (s *DocumentService) Cancel(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.changeStatus(ctx, id, sales.StatusCancelled)
}

// Close closes a document. Closing an order releases its remaining commitments.
func (s *DocumentService) Close(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	return s.changeStatus(ctx, id, sales.StatusClosed)
}

// Transition applies a manual status change validated by the document's
// state machine
func (s *DocumentService) Transition(ctx context.Context, id uuid.UUID, req TransitionDocumentRequest) (*DocumentResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, id, req.Status)
}

func (s *DocumentService) changeStatus(ctx context.Context, id uuid.UUID, target sales.DocumentStatus) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "change_status")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, id.String(),
		telemetry.SpanAttrDocumentStatus, string(target),
	)

	var changed *sales.Document
	var from sales.DocumentStatus
	err := s.uow.run(ctx, "change_status", func(repos TransactionalRepositories) error {
		doc, err := repos.DocumentRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = doc.Status
		if target == sales.StatusOpen && doc.Status != sales.StatusDraft {
			return shared.NewInvalidStateError("Only draft documents can be opened, %s is %s", doc.Number, doc.Status)
		}
		if !doc.Status.CanTransitionTo(doc.Type, target) {
			return shared.NewInvalidStateError("Cannot move %s %s from %s to %s", doc.Type, doc.Number, doc.Status, target)
		}

		var ops []StockOp
		switch {
		case doc.Type == sales.DocumentTypeOrder && doc.Status != sales.StatusDraft &&
			(target == sales.StatusCancelled || target == sales.StatusClosed):
			posted, err := s.postedDeliveries(ctx, repos, doc)
			if err != nil {
				return err
			}
			ops = releaseOps(doc, posted)
			if err := doc.TransitionTo(target); err != nil {
				return err
			}

		default:
			before := stockStateOf(doc)
			if err := doc.TransitionTo(target); err != nil {
				return err
			}
			if doc.CommitsStock() {
				if _, err := s.flow.engine.Recompute(ctx, repos, NewRecomputeScope(), doc); err != nil {
					return err
				}
			}
			if target == sales.StatusOpen {
				if _, err := s.flow.tracker.RecomputeFulfillmentStatus(ctx, repos, doc); err != nil {
					return err
				}
			}
			ops, err = s.flow.stockOps(ctx, repos, doc, before)
			if err != nil {
				return err
			}
		}

		if err := s.flow.persistChanges(ctx, repos, doc, ops); err != nil {
			return err
		}
		changed = doc
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Document status changed",
		zap.String("document_id", changed.ID.String()),
		zap.String("number", changed.Number),
		zap.String("from", string(from)),
		zap.String("to", string(changed.Status)),
	)
	telemetry.SetOK(span)

	resp := ToDocumentResponse(changed)
	return &resp, nil
}

// postedDeliveries returns the deliveries of order that issued stock
func (s *DocumentService) postedDeliveries(ctx context.Context, repos TransactionalRepositories, order *sales.Document) ([]*sales.Document, error) {
	id := order.ID
	deliveries, err := repos.DocumentRepo().FindDownstream(ctx, sales.DownstreamFilter{
		Type:    sales.DocumentTypeDelivery,
		OrderID: &id,
	})
	if err != nil {
		return nil, err
	}
	posted := make([]*sales.Document, 0, len(deliveries))
	for _, d := range deliveries {
		if d.PostsStock() {
			posted = append(posted, d)
		}
	}
	return posted, nil
}

// RecordPayment adds amount to the paid amount of an invoice and moves it to
// PartiallyPaid or Paid
func (s *DocumentService) RecordPayment(ctx context.Context, id uuid.UUID, req RecordPaymentRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, id.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("Payment amount must be positive",
			shared.FieldError{Field: "amount", Message: "Must be greater than 0"})
	}

	var paid *sales.Document
	err := s.uow.run(ctx, "record_payment", func(repos TransactionalRepositories) error {
		doc, err := repos.DocumentRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Type != sales.DocumentTypeInvoice {
			return shared.NewInvalidStateError("Payments can only be recorded on invoices, %s is a %s", doc.Number, doc.Type)
		}
		if doc.Status == sales.StatusDraft || doc.Status.IsTerminalFor(doc.Type) {
			return shared.NewInvalidStateError("Cannot record a payment on invoice %s in %s status", doc.Number, doc.Status)
		}
		if err := doc.SetAmounts(doc.DiscountAmount, doc.TaxAmount, doc.PaidAmount.Add(req.Amount)); err != nil {
			return err
		}
		if _, err := s.flow.tracker.RecomputeFulfillmentStatus(ctx, repos, doc); err != nil {
			return err
		}
		if err := s.flow.persistChanges(ctx, repos, doc, nil); err != nil {
			return err
		}
		paid = doc
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	resp := ToDocumentResponse(paid)
	return &resp, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := s.docRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// GetByNumber retrieves a document by its document number
func (s *DocumentService) GetByNumber(ctx context.Context, number string) (*DocumentResponse, error) {
	doc, err := s.docRepo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

// List retrieves documents with filtering and pagination
func (s *DocumentService) List(ctx context.Context, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	if err := validateRequest(filter); err != nil {
		return nil, 0, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	docs, total, err := s.docRepo.List(ctx, sales.DocumentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Type:       filter.Type,
		Status:     filter.Status,
		CustomerID: filter.CustomerID,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = ToDocumentResponse(d)
	}
	return out, total, nil
}

// checkAgainstSource rejects manual lines taking more from doc's source than
// the source has left once doc's own stored lines are set aside. The source
// header is locked so concurrent conversions see the result.
func checkAgainstSource(ctx context.Context, repo sales.DocumentRepository, doc *sales.Document) error {
	source, err := repo.FindByIDForUpdate(ctx, doc.Source.ID)
	if err != nil {
		return err
	}
	open, err := openQuantities(ctx, repo, source, doc.Type, doc.ID)
	if err != nil {
		return err
	}
	return checkRequested(source, sales.QuantitiesByKey(doc.ManualLines()), open, nil)
}

// checkAgainstDownstream rejects edits leaving doc with less of a key than
// the documents converted from it already took. Order returns are bounded by
// deliveries, which the delivery check already covers.
func checkAgainstDownstream(ctx context.Context, repo sales.DocumentRepository, doc *sales.Document) error {
	for _, target := range doc.Type.ConversionTargets() {
		if returnsAgainstDeliveries(doc, target) {
			continue
		}
		downstream, err := downstreamOf(ctx, repo, doc, target, uuid.Nil)
		if err != nil {
			return err
		}
		if err := sales.CheckCoversConverted(doc, downstream); err != nil {
			return err
		}
	}
	return nil
}

type ruleInput struct {
	quantity decimal.Decimal
	active   bool
}

// manualLinesChanged reports whether the rule-relevant part of the manual
// lines differs
func manualLinesChanged(before, after []sales.Line) bool {
	if len(before) != len(after) {
		return true
	}
	prev := make(map[string]ruleInput, len(before))
	for i := range before {
		prev[before[i].ID.String()+"|"+before[i].ItemCode] = ruleInput{before[i].Quantity, before[i].IsActive}
	}
	for i := range after {
		in, ok := prev[after[i].ID.String()+"|"+after[i].ItemCode]
		if !ok || in.active != after[i].IsActive || !in.quantity.Equal(after[i].Quantity) {
			return true
		}
	}
	return false
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
