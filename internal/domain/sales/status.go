package sales

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	StatusDraft              DocumentStatus = "DRAFT"
	StatusOpen               DocumentStatus = "OPEN"
	StatusPartiallyDelivered DocumentStatus = "PARTIALLY_DELIVERED"
	StatusDelivered          DocumentStatus = "DELIVERED"
	StatusPartiallyInvoiced  DocumentStatus = "PARTIALLY_INVOICED"
	StatusInvoiced           DocumentStatus = "INVOICED"
	StatusConverted          DocumentStatus = "CONVERTED"
	StatusExpired            DocumentStatus = "EXPIRED"
	StatusReturned           DocumentStatus = "RETURNED"
	StatusPartiallyPaid      DocumentStatus = "PARTIALLY_PAID"
	StatusPaid               DocumentStatus = "PAID"
	StatusOverdue            DocumentStatus = "OVERDUE"
	StatusClosed             DocumentStatus = "CLOSED"
	StatusCancelled          DocumentStatus = "CANCELLED"
)

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// lifecycle describes the state machine of one document type.
//
// progress holds the statuses that fulfillment recomputation moves between
// freely; manual holds the extra transitions a caller may request.
// Cancelled is reachable from every non-terminal status and Closed from every
// non-terminal status except Draft.
type lifecycle struct {
	statuses         []DocumentStatus
	initial          []DocumentStatus
	progress         []DocumentStatus
	manual           map[DocumentStatus][]DocumentStatus
	terminal         []DocumentStatus
	blocksConversion []DocumentStatus
}

var lifecycles = map[DocumentType]lifecycle{
	DocumentTypeQuotation: {
		statuses: []DocumentStatus{StatusDraft, StatusOpen, StatusConverted, StatusExpired, StatusClosed, StatusCancelled},
		initial:  []DocumentStatus{StatusDraft, StatusOpen},
		progress: []DocumentStatus{StatusOpen, StatusConverted},
		manual: map[DocumentStatus][]DocumentStatus{
			StatusDraft: {StatusOpen, StatusExpired},
			StatusOpen:  {StatusExpired},
		},
		terminal:         []DocumentStatus{StatusClosed, StatusCancelled},
		blocksConversion: []DocumentStatus{StatusConverted, StatusExpired, StatusClosed, StatusCancelled},
	},
	DocumentTypeOrder: {
		statuses: []DocumentStatus{
			StatusDraft, StatusOpen, StatusPartiallyDelivered, StatusDelivered,
			StatusPartiallyInvoiced, StatusInvoiced, StatusClosed, StatusCancelled,
		},
		initial: []DocumentStatus{StatusDraft, StatusOpen},
		progress: []DocumentStatus{
			StatusOpen, StatusPartiallyDelivered, StatusDelivered, StatusPartiallyInvoiced, StatusInvoiced,
		},
		manual: map[DocumentStatus][]DocumentStatus{
			StatusDraft: {StatusOpen},
		},
		terminal:         []DocumentStatus{StatusClosed, StatusCancelled},
		blocksConversion: []DocumentStatus{StatusClosed, StatusCancelled},
	},
	DocumentTypeDelivery: {
		statuses: []DocumentStatus{
			StatusDraft, StatusOpen, StatusPartiallyInvoiced, StatusInvoiced, StatusClosed, StatusCancelled,
		},
		initial:  []DocumentStatus{StatusDraft, StatusOpen},
		progress: []DocumentStatus{StatusOpen, StatusPartiallyInvoiced, StatusInvoiced},
		manual: map[DocumentStatus][]DocumentStatus{
			StatusDraft: {StatusOpen},
		},
		terminal:         []DocumentStatus{StatusClosed, StatusCancelled},
		blocksConversion: []DocumentStatus{StatusClosed, StatusCancelled},
	},
	DocumentTypeReturn: {
		statuses: []DocumentStatus{StatusDraft, StatusOpen, StatusReturned, StatusClosed, StatusCancelled},
		initial:  []DocumentStatus{StatusDraft, StatusOpen},
		manual: map[DocumentStatus][]DocumentStatus{
			StatusDraft: {StatusOpen},
			StatusOpen:  {StatusReturned},
		},
		terminal:         []DocumentStatus{StatusClosed, StatusCancelled},
		blocksConversion: []DocumentStatus{StatusClosed, StatusCancelled},
	},
	DocumentTypeInvoice: {
		statuses: []DocumentStatus{
			StatusDraft, StatusOpen, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusClosed, StatusCancelled,
		},
		initial:  []DocumentStatus{StatusDraft, StatusOpen},
		progress: []DocumentStatus{StatusOpen, StatusPartiallyPaid, StatusPaid},
		manual: map[DocumentStatus][]DocumentStatus{
			StatusDraft:         {StatusOpen},
			StatusOpen:          {StatusOverdue},
			StatusPartiallyPaid: {StatusOverdue},
			StatusOverdue:       {StatusPartiallyPaid, StatusPaid},
		},
		terminal:         []DocumentStatus{StatusClosed, StatusCancelled},
		blocksConversion: []DocumentStatus{StatusClosed, StatusCancelled},
	},
}

func containsStatus(list []DocumentStatus, s DocumentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidFor returns true if s is a status documents of type t can hold
func (s DocumentStatus) IsValidFor(t DocumentType) bool {
	lc, ok := lifecycles[t]
	return ok && containsStatus(lc.statuses, s)
}

// IsInitialFor returns true if a new document of type t may start in status s
func (s DocumentStatus) IsInitialFor(t DocumentType) bool {
	return containsStatus(lifecycles[t].initial, s)
}

// IsTerminalFor returns true if s is a terminal status for type t
func (s DocumentStatus) IsTerminalFor(t DocumentType) bool {
	return containsStatus(lifecycles[t].terminal, s)
}

// BlocksConversion returns true if a document of type t in status s
// cannot be used as a conversion source
func (s DocumentStatus) BlocksConversion(t DocumentType) bool {
	return containsStatus(lifecycles[t].blocksConversion, s)
}

// IsProgressFor returns true if s is one of the statuses fulfillment
// recomputation manages for type t
func (s DocumentStatus) IsProgressFor(t DocumentType) bool {
	return containsStatus(lifecycles[t].progress, s)
}

// CanTransitionTo checks if a document of type t may move from s to target
func (s DocumentStatus) CanTransitionTo(t DocumentType, target DocumentStatus) bool {
	lc, ok := lifecycles[t]
	if !ok || s == target || !target.IsValidFor(t) {
		return false
	}
	if containsStatus(lc.terminal, s) {
		return false
	}
	switch target {
	case StatusCancelled:
		return true
	case StatusClosed:
		return s != StatusDraft
	}
	if containsStatus(lc.manual[s], target) {
		return true
	}
	inProgress := containsStatus(lc.progress, target)
	if s == StatusDraft {
		return inProgress
	}
	return inProgress && containsStatus(lc.progress, s)
}
