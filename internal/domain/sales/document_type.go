package sales

// DocumentType identifies a document in the fulfillment chain
type DocumentType string

const (
	DocumentTypeQuotation DocumentType = "QUOTATION"
	DocumentTypeOrder     DocumentType = "ORDER"
	DocumentTypeDelivery  DocumentType = "DELIVERY"
	DocumentTypeReturn    DocumentType = "RETURN"
	DocumentTypeInvoice   DocumentType = "INVOICE"
)

// AllDocumentTypes lists every document type in chain order
var AllDocumentTypes = []DocumentType{
	DocumentTypeQuotation,
	DocumentTypeOrder,
	DocumentTypeDelivery,
	DocumentTypeReturn,
	DocumentTypeInvoice,
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// IsValid returns true if the document type is known
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeQuotation, DocumentTypeOrder, DocumentTypeDelivery, DocumentTypeReturn, DocumentTypeInvoice:
		return true
	}
	return false
}

// NumberPrefix returns the prefix used for generated document numbers
func (t DocumentType) NumberPrefix() string {
	switch t {
	case DocumentTypeQuotation:
		return "QT"
	case DocumentTypeOrder:
		return "SO"
	case DocumentTypeDelivery:
		return "DL"
	case DocumentTypeReturn:
		return "RT"
	case DocumentTypeInvoice:
		return "IV"
	}
	return "DOC"
}

// conversionTargets lists, per source type, the types it may be converted into
var conversionTargets = map[DocumentType][]DocumentType{
	DocumentTypeQuotation: {DocumentTypeOrder},
	DocumentTypeOrder:     {DocumentTypeDelivery, DocumentTypeInvoice, DocumentTypeReturn},
	DocumentTypeDelivery:  {DocumentTypeReturn, DocumentTypeInvoice},
}

// CanConvertTo returns true if a document of type t may be converted into target
func (t DocumentType) CanConvertTo(target DocumentType) bool {
	for _, allowed := range conversionTargets[t] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ConversionTargets returns the types a document of type t may be converted into
func (t DocumentType) ConversionTargets() []DocumentType {
	targets := conversionTargets[t]
	out := make([]DocumentType, len(targets))
	copy(out, targets)
	return out
}
