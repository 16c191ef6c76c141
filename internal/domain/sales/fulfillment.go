package sales

import "github.com/shopspring/decimal"

// FulfillmentView is the set of downstream documents a status is derived from.
// Only the slices relevant to the document's type are read.
type FulfillmentView struct {
	Orders     []*Document // orders converted from a quotation
	Deliveries []*Document // deliveries of an order
	Invoices   []*Document // invoices of an order or delivery
}

// FulfillmentStatus derives the status doc should hold given its downstream
// documents. Terminal, draft-only and manually set statuses are returned
// unchanged when nothing downstream supersedes them.
func FulfillmentStatus(doc *Document, view FulfillmentView) DocumentStatus {
	if doc.Status.IsTerminalFor(doc.Type) {
		return doc.Status
	}

	switch doc.Type {
	case DocumentTypeQuotation:
		return quotationStatus(doc, view)
	case DocumentTypeOrder:
		return orderStatus(doc, view)
	case DocumentTypeDelivery:
		return deliveryStatus(doc, view)
	case DocumentTypeInvoice:
		return invoiceStatus(doc)
	default:
		return doc.Status
	}
}

func quotationStatus(doc *Document, view FulfillmentView) DocumentStatus {
	if doc.Status == StatusExpired {
		return doc.Status
	}
	_, all := coverage(doc.Lines, ConvertedQuantities(view.Orders))
	switch {
	case all:
		return StatusConverted
	case doc.Status == StatusConverted:
		return StatusOpen
	default:
		return doc.Status
	}
}

func orderStatus(doc *Document, view FulfillmentView) DocumentStatus {
	anyInvoiced, allInvoiced := coverage(doc.Lines, ConvertedQuantities(view.Invoices))
	anyDelivered, allDelivered := coverage(doc.Lines, ConvertedQuantities(view.Deliveries))

	var next DocumentStatus
	switch {
	case allInvoiced:
		next = StatusInvoiced
	case anyInvoiced:
		next = StatusPartiallyInvoiced
	case allDelivered:
		next = StatusDelivered
	case anyDelivered:
		next = StatusPartiallyDelivered
	default:
		next = StatusOpen
	}
	if next == StatusOpen && doc.Status == StatusDraft {
		return StatusDraft
	}
	return next
}

func deliveryStatus(doc *Document, view FulfillmentView) DocumentStatus {
	anyInvoiced, allInvoiced := coverage(doc.Lines, ConvertedQuantities(view.Invoices))
	switch {
	case allInvoiced:
		return StatusInvoiced
	case anyInvoiced:
		return StatusPartiallyInvoiced
	case doc.Status == StatusDraft:
		return StatusDraft
	default:
		return StatusOpen
	}
}

func invoiceStatus(doc *Document) DocumentStatus {
	switch {
	case doc.PayableAmount.IsPositive() && !doc.DueAmount.IsPositive():
		return StatusPaid
	case doc.PaidAmount.IsPositive():
		return StatusPartiallyPaid
	default:
		return doc.Status
	}
}

// coverage reports whether any line key received converted quantity and
// whether every line is fully covered. A document without lines is neither.
func coverage(lines []Line, converted map[LineKey]decimal.Decimal) (partial bool, full bool) {
	if len(lines) == 0 {
		return false, false
	}
	full = true
	for i := range lines {
		done := converted[lines[i].Key()]
		if done.IsPositive() {
			partial = true
		}
		if lines[i].Quantity.GreaterThan(done) {
			full = false
		}
	}
	return partial, full
}
