package sales

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConversionService stages and commits document conversions along the
// Quotation, Order, Delivery, Return and Invoice chain
type ConversionService struct {
	docRepo sales.DocumentRepository
	uow     *unitOfWork
	flow    *pipeline
	logger  *zap.Logger
	metrics *telemetry.FulfillmentMetrics
}

// NewConversionService creates a new ConversionService
func NewConversionService(
	docRepo sales.DocumentRepository,
	txScope TransactionScope,
	ledger *Ledger,
	engine *FreeItemEngine,
	tracker *FulfillmentTracker,
	retry RetryConfig,
	logger *zap.Logger,
) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionService{
		docRepo: docRepo,
		uow:     &unitOfWork{txScope: txScope, cfg: retry, logger: logger},
		flow:    &pipeline{ledger: ledger, engine: engine, tracker: tracker, logger: logger},
		logger:  logger,
	}
}

// SetMetrics sets the metrics recorder (optional)
func (s *ConversionService) SetMetrics(m *telemetry.FulfillmentMetrics) {
	s.metrics = m
	s.uow.metrics = m
}

// PrepareConversion stages an unsaved targetType document holding what is
// left to convert from the source. Nothing is written.
func (s *ConversionService) PrepareConversion(ctx context.Context, sourceID uuid.UUID, targetType sales.DocumentType) (*ConversionPayload, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "conversion", "prepare")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSourceID, sourceID.String(),
		telemetry.SpanAttrTargetType, string(targetType),
	)

	source, err := s.docRepo.FindByID(ctx, sourceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := checkTarget(source, targetType); err != nil {
		return nil, err
	}

	remaining, err := reconcile(ctx, s.docRepo, source, targetType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payload := stagePayload(source, targetType, remaining)
	telemetry.SetOK(span)
	return &payload, nil
}

// CommitConversion creates the downstream document described by payload and
// finalizes the source in the same transaction. The source row is locked and
// reconciliation re-run, so two concurrent commits can never convert more
// than the source holds.
func (s *ConversionService) CommitConversion(ctx context.Context, payload ConversionPayload) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "conversion", "commit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSourceID, payload.SourceID.String(),
		telemetry.SpanAttrTargetType, string(payload.TargetType),
	)

	if err := validateRequest(payload); err != nil {
		return nil, err
	}

	var created *sales.Document
	var source *sales.Document
	err := s.uow.run(ctx, "commit_conversion", func(repos TransactionalRepositories) error {
		var err error
		source, err = repos.DocumentRepo().FindByIDForUpdate(ctx, payload.SourceID)
		if err != nil {
			return err
		}
		if err := checkTarget(source, payload.TargetType); err != nil {
			return err
		}
		// the order is locked ahead of any ledger row, as status changes do
		if source.OrderID != nil {
			if _, err := repos.DocumentRepo().FindByIDForUpdate(ctx, *source.OrderID); err != nil {
				return err
			}
		}

		remaining, err := reconcile(ctx, repos.DocumentRepo(), source, payload.TargetType)
		if err != nil {
			return err
		}
		if err := checkWithinRemaining(source, payload.Lines, remaining); err != nil {
			return err
		}

		doc, err := sales.NewDocument(payload.TargetType, payload.CustomerID, payload.Status)
		if err != nil {
			return err
		}
		doc.SetSource(source.Type, source.ID, descendsFrom(source))
		doc.DueDate = payload.DueDate
		doc.Remark = payload.Remark

		inputs := make([]LineInput, len(payload.Lines))
		for i, l := range payload.Lines {
			inputs[i] = LineInput{
				ItemCode:     l.ItemCode,
				UOM:          l.UOM,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				Warehouse:    l.Warehouse,
				SourceLineID: l.SourceLineID,
				Remark:       l.Remark,
			}
		}
		lines, err := s.flow.resolveLines(ctx, repos, doc.Type, inputs, nil)
		if err != nil {
			return err
		}
		if err := doc.ReplaceLines(lines); err != nil {
			return err
		}
		if err := doc.SetAmounts(payload.DiscountAmount, payload.TaxAmount, decimal.Zero); err != nil {
			return err
		}

		if err := s.flow.persistNew(ctx, repos, doc); err != nil {
			return err
		}
		if err := repos.EventSaver().SaveEvents(ctx, sales.NewDocumentConvertedEvent(source, doc)); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordConversion(ctx, string(source.Type), string(created.Type))
	s.logger.Info("Document converted",
		zap.String("source_id", source.ID.String()),
		zap.String("source_number", source.Number),
		zap.String("document_id", created.ID.String()),
		zap.String("number", created.Number),
		zap.String("type", string(created.Type)),
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, created.Number)
	telemetry.SetOK(span)

	resp := ToDocumentResponse(created)
	return &resp, nil
}

// ConversionTargets lists the document types source can still be converted
// into, skipping exhausted ones
func (s *ConversionService) ConversionTargets(ctx context.Context, sourceID uuid.UUID) ([]sales.DocumentType, error) {
	source, err := s.docRepo.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	targets := make([]sales.DocumentType, 0)
	for _, t := range source.Type.ConversionTargets() {
		if _, err := reconcile(ctx, s.docRepo, source, t); err != nil {
			if shared.IsExhausted(err) || shared.HasCode(err, shared.CodeInvalidState) {
				continue
			}
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func checkTarget(source *sales.Document, target sales.DocumentType) error {
	if !source.Type.CanConvertTo(target) {
		return shared.NewValidationError(
			fmt.Sprintf("A %s cannot be converted into a %s", source.Type, target),
			shared.FieldError{Field: "target_type", Message: "Invalid value"})
	}
	return nil
}

// descendsFrom returns the sales order a document converted from source
// belongs to
func descendsFrom(source *sales.Document) *uuid.UUID {
	if source.Type == sales.DocumentTypeOrder {
		id := source.ID
		return &id
	}
	return source.OrderID
}

// reconcile computes what remains to convert from source into target
func reconcile(ctx context.Context, repo sales.DocumentRepository, source *sales.Document, target sales.DocumentType) ([]sales.RemainingLine, error) {
	if returnsAgainstDeliveries(source, target) {
		deliveries, returns, err := orderReturns(ctx, repo, source.ID, uuid.Nil)
		if err != nil {
			return nil, err
		}
		return sales.ComputeReturnable(source, deliveries, returns)
	}

	downstream, err := downstreamOf(ctx, repo, source, target, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return sales.ComputeRemaining(source, downstream)
}

// openQuantities returns per (item, uom) what source can still hand to
// target documents other than exclude, whatever its status
func openQuantities(ctx context.Context, repo sales.DocumentRepository, source *sales.Document, target sales.DocumentType, exclude uuid.UUID) (map[sales.LineKey]decimal.Decimal, error) {
	if returnsAgainstDeliveries(source, target) {
		deliveries, returns, err := orderReturns(ctx, repo, source.ID, exclude)
		if err != nil {
			return nil, err
		}
		return sales.ReturnableQuantities(source, deliveries, returns), nil
	}

	downstream, err := downstreamOf(ctx, repo, source, target, exclude)
	if err != nil {
		return nil, err
	}
	return sales.OpenQuantities(source, downstream), nil
}

// returnsAgainstDeliveries reports whether target documents of source are
// bounded by what was delivered rather than by the source lines
func returnsAgainstDeliveries(source *sales.Document, target sales.DocumentType) bool {
	return source.Type == sales.DocumentTypeOrder && target == sales.DocumentTypeReturn
}

// downstreamOf loads the target documents drawing on source, leaving out
// exclude. Quotations and deliveries count documents created directly from
// them, orders every document descending from them.
func downstreamOf(ctx context.Context, repo sales.DocumentRepository, source *sales.Document, target sales.DocumentType, exclude uuid.UUID) ([]*sales.Document, error) {
	id := source.ID
	filter := sales.DownstreamFilter{Type: target, SourceID: &id}
	if source.Type == sales.DocumentTypeOrder {
		filter = sales.DownstreamFilter{Type: target, OrderID: &id}
	}
	docs, err := repo.FindDownstream(ctx, filter)
	if err != nil {
		return nil, err
	}
	return without(docs, exclude), nil
}

// orderReturns loads the deliveries and returns of an order, leaving out exclude
func orderReturns(ctx context.Context, repo sales.DocumentRepository, orderID, exclude uuid.UUID) (deliveries, returns []*sales.Document, err error) {
	deliveries, err = repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeDelivery, OrderID: &orderID})
	if err != nil {
		return nil, nil, err
	}
	returns, err = repo.FindDownstream(ctx, sales.DownstreamFilter{Type: sales.DocumentTypeReturn, OrderID: &orderID})
	if err != nil {
		return nil, nil, err
	}
	return deliveries, without(returns, exclude), nil
}

func without(docs []*sales.Document, id uuid.UUID) []*sales.Document {
	if id == uuid.Nil {
		return docs
	}
	out := make([]*sales.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

// checkWithinRemaining rejects payload lines that reference foreign source
// lines or ask for more of an (item, uom) key than remains
func checkWithinRemaining(source *sales.Document, lines []ConversionLine, remaining []sales.RemainingLine) error {
	var fields []shared.FieldError
	requested := make(map[sales.LineKey]decimal.Decimal)
	for i, l := range lines {
		if l.SourceLineID != nil {
			if _, ok := source.FindLine(*l.SourceLineID); !ok {
				fields = append(fields, shared.FieldError{
					Field:   fmt.Sprintf("lines[%d].source_line_id", i),
					Message: "Line does not belong to " + source.Number,
				})
			}
		}
		key := sales.LineKey{ItemCode: l.ItemCode, UOM: l.UOM}
		requested[key] = requested[key].Add(l.Quantity)
	}
	return checkRequested(source, requested, sales.RemainingByKey(remaining), fields)
}

// checkRequested appends a field error for every key asking for more than
// available and fails when any field error was collected
func checkRequested(source *sales.Document, requested, available map[sales.LineKey]decimal.Decimal, fields []shared.FieldError) error {
	for _, key := range sales.SortedKeys(requested) {
		if requested[key].GreaterThan(available[key]) {
			fields = append(fields, shared.FieldError{
				Field: "lines",
				Message: fmt.Sprintf("%s (%s): requested %s, remaining %s",
					key.ItemCode, key.UOM, requested[key].String(), decimal.Max(available[key], decimal.Zero).String()),
			})
		}
	}

	if len(fields) > 0 {
		return shared.NewValidationError("Conversion exceeds the quantity left on "+source.Number, fields...)
	}
	return nil
}

// stagePayload copies the header and remaining lines of source into a payload
func stagePayload(source *sales.Document, target sales.DocumentType, remaining []sales.RemainingLine) ConversionPayload {
	payload := ConversionPayload{
		SourceID:       source.ID,
		SourceType:     source.Type,
		SourceNumber:   source.Number,
		TargetType:     target,
		CustomerID:     source.CustomerID,
		Status:         sales.StatusOpen,
		DiscountAmount: source.DiscountAmount,
		TaxAmount:      source.TaxAmount,
		Remark:         source.Remark,
		Lines:          make([]ConversionLine, 0, len(remaining)),
	}
	if target == sales.DocumentTypeInvoice {
		payload.DueDate = source.DueDate
	}
	if source.Type == sales.DocumentTypeOrder && target == sales.DocumentTypeDelivery {
		payload.Remark = "Delivery for Sales Order " + source.Number
	}

	for _, r := range remaining {
		lineID := r.SourceLineID
		payload.Lines = append(payload.Lines, ConversionLine{
			SourceLineID: &lineID,
			ItemCode:     r.ItemCode,
			ItemName:     r.ItemName,
			UOM:          r.UOM,
			Quantity:     r.Quantity,
			UnitPrice:    r.UnitPrice,
			Warehouse:    r.Warehouse,
			Remark:       r.Remark,
		})
	}
	return payload
}
