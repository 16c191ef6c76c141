package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeDocument is the aggregate type name for sales documents
const AggregateTypeDocument = "Document"

// SourceRef points at the document a converted document was created from
type SourceRef struct {
	Type DocumentType
	ID   uuid.UUID
}

// Document is the aggregate root for every document in the chain. It owns
// its lines and keeps the header totals in step with them.
type Document struct {
	shared.BaseAggregateRoot
	Type           DocumentType
	Number         string
	Status         DocumentStatus
	CustomerID     string
	DocumentDate   time.Time
	DueDate        *time.Time
	Source         *SourceRef
	OrderID        *uuid.UUID // sales order the document descends from
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	PaidAmount     decimal.Decimal
	TotalAmount    decimal.Decimal
	PayableAmount  decimal.Decimal
	DueAmount      decimal.Decimal
	Remark         string
	Lines          []Line
	ClosedAt       *time.Time
	CancelledAt    *time.Time
}

// NewDocument creates a new document in the given initial status
func NewDocument(docType DocumentType, customerID string, status DocumentStatus) (*Document, error) {
	if !docType.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Unknown document type %q", docType),
			shared.FieldError{Field: "type", Message: "Invalid value"})
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, shared.NewValidationError("Customer cannot be empty",
			shared.FieldError{Field: "customer_id", Message: "This field is required"})
	}
	if status == "" {
		status = StatusDraft
	}
	if !status.IsInitialFor(docType) {
		return nil, shared.NewValidationError(fmt.Sprintf("A %s cannot be created in status %s", docType, status),
			shared.FieldError{Field: "status", Message: "Must be one of: DRAFT OPEN"})
	}

	return &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              docType,
		Status:            status,
		CustomerID:        customerID,
		DocumentDate:      time.Now(),
		DiscountAmount:    decimal.Zero,
		TaxAmount:         decimal.Zero,
		PaidAmount:        decimal.Zero,
		TotalAmount:       decimal.Zero,
		PayableAmount:     decimal.Zero,
		DueAmount:         decimal.Zero,
		Lines:             make([]Line, 0),
	}, nil
}

// IsEditable returns true if lines and header money may still change
func (d *Document) IsEditable() bool {
	return d.Status == StatusDraft || d.Status == StatusOpen
}

// CommitsStock returns true if the document's lines hold commitments in the ledger
func (d *Document) CommitsStock() bool {
	return d.Type == DocumentTypeOrder && d.Status == StatusOpen
}

// HoldsCommitments returns true for an order whose undelivered quantities
// are committed in the ledger: opened, and not yet closed or cancelled
func (d *Document) HoldsCommitments() bool {
	return d.Type == DocumentTypeOrder && d.Status != StatusDraft && !d.Status.IsTerminalFor(d.Type)
}

// PostsStock returns true if the document's lines move stock in the ledger
func (d *Document) PostsStock() bool {
	if d.Type != DocumentTypeDelivery && d.Type != DocumentTypeReturn {
		return false
	}
	return d.Status != StatusDraft && d.Status != StatusCancelled
}

// SetSource links the document to the document it was converted from
func (d *Document) SetSource(sourceType DocumentType, sourceID uuid.UUID, orderID *uuid.UUID) {
	d.Source = &SourceRef{Type: sourceType, ID: sourceID}
	d.OrderID = orderID
}

// SetAmounts sets discount, tax and paid amounts and recomputes totals
func (d *Document) SetAmounts(discount, tax, paid decimal.Decimal) error {
	var fields []shared.FieldError
	if discount.IsNegative() {
		fields = append(fields, shared.FieldError{Field: "discount_amount", Message: "Must be greater than or equal to 0"})
	}
	if tax.IsNegative() {
		fields = append(fields, shared.FieldError{Field: "tax_amount", Message: "Must be greater than or equal to 0"})
	}
	if paid.IsNegative() {
		fields = append(fields, shared.FieldError{Field: "paid_amount", Message: "Must be greater than or equal to 0"})
	}
	if len(fields) > 0 {
		return shared.NewValidationError("Header amounts cannot be negative", fields...)
	}

	d.DiscountAmount = discount.Round(HeaderPrecision)
	d.TaxAmount = tax.Round(HeaderPrecision)
	d.PaidAmount = paid.Round(HeaderPrecision)
	d.RecalculateTotals()
	return nil
}

// ReplaceLines swaps the full line set, keeping ids of lines the caller
// passed back. Totals are recomputed.
func (d *Document) ReplaceLines(lines []Line) error {
	if !d.IsEditable() {
		return shared.NewInvalidStateError("Cannot change lines of %s %s in %s status", d.Type, d.Number, d.Status)
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	next := make([]Line, 0, len(lines))
	for i, line := range lines {
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		if _, dup := seen[line.ID]; dup {
			return shared.NewValidationError("Duplicate line id",
				shared.FieldError{Field: fmt.Sprintf("lines[%d].id", i), Message: "Line appears twice"})
		}
		seen[line.ID] = struct{}{}
		line.DocumentID = d.ID
		line.Position = i + 1
		line.Recalculate()
		next = append(next, line)
	}
	d.Lines = next
	d.RecalculateTotals()
	return nil
}

// AddLine appends a line and recomputes totals
func (d *Document) AddLine(line Line) error {
	if !d.IsEditable() {
		return shared.NewInvalidStateError("Cannot add lines to %s %s in %s status", d.Type, d.Number, d.Status)
	}
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.DocumentID = d.ID
	line.Position = len(d.Lines) + 1
	line.Recalculate()
	d.Lines = append(d.Lines, line)
	d.RecalculateTotals()
	return nil
}

// RemoveAutoLines drops every auto-generated line and returns the removed ones
func (d *Document) RemoveAutoLines() []Line {
	removed := make([]Line, 0)
	kept := make([]Line, 0, len(d.Lines))
	for _, line := range d.Lines {
		if line.IsAuto {
			removed = append(removed, line)
			continue
		}
		kept = append(kept, line)
	}
	d.Lines = kept
	d.renumber()
	d.RecalculateTotals()
	return removed
}

// ManualLines returns the caller-supplied lines
func (d *Document) ManualLines() []Line {
	out := make([]Line, 0, len(d.Lines))
	for _, line := range d.Lines {
		if !line.IsAuto {
			out = append(out, line)
		}
	}
	return out
}

// AutoLines returns the lines generated by free-item rules
func (d *Document) AutoLines() []Line {
	out := make([]Line, 0)
	for _, line := range d.Lines {
		if line.IsAuto {
			out = append(out, line)
		}
	}
	return out
}

// FindLine returns the line with the given id
func (d *Document) FindLine(id uuid.UUID) (*Line, bool) {
	for i := range d.Lines {
		if d.Lines[i].ID == id {
			return &d.Lines[i], true
		}
	}
	return nil, false
}

// RecalculateTotals recomputes the header money fields from the lines
func (d *Document) RecalculateTotals() {
	totals := CalculateTotals(d.Lines, d.DiscountAmount, d.TaxAmount, d.PaidAmount)
	d.TotalAmount = totals.Total
	d.PayableAmount = totals.Payable
	d.DueAmount = totals.Due
	d.UpdatedAt = time.Now()
}

// TransitionTo moves the document to status target and records a
// DocumentStatusChanged event
func (d *Document) TransitionTo(target DocumentStatus) error {
	if !d.Status.CanTransitionTo(d.Type, target) {
		return shared.NewInvalidStateError("Cannot move %s %s from %s to %s", d.Type, d.Number, d.Status, target)
	}
	from := d.Status
	d.Status = target
	now := time.Now()
	d.UpdatedAt = now
	switch target {
	case StatusClosed:
		d.ClosedAt = &now
	case StatusCancelled:
		d.CancelledAt = &now
	}
	d.AddDomainEvent(NewDocumentStatusChangedEvent(d, from, target))
	return nil
}

// Open moves a draft document to Open
func (d *Document) Open() error {
	if d.Status != StatusDraft {
		return shared.NewInvalidStateError("Only draft documents can be opened, %s is %s", d.Number, d.Status)
	}
	return d.TransitionTo(StatusOpen)
}

// Cancel cancels the document
func (d *Document) Cancel() error {
	return d.TransitionTo(StatusCancelled)
}

// Close closes the document
func (d *Document) Close() error {
	return d.TransitionTo(StatusClosed)
}

// ApplyFulfillmentStatus moves the document to status when it differs from
// the current one. It reports whether anything changed.
func (d *Document) ApplyFulfillmentStatus(status DocumentStatus) (bool, error) {
	if status == d.Status {
		return false, nil
	}
	if err := d.TransitionTo(status); err != nil {
		return false, err
	}
	return true, nil
}

// TotalQuantity returns the sum of all line quantities
func (d *Document) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, line := range d.Lines {
		total = total.Add(line.Quantity)
	}
	return total
}

func (d *Document) renumber() {
	for i := range d.Lines {
		d.Lines[i].Position = i + 1
	}
}
