package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type lineSpec struct {
	item  string
	uom   string
	qty   int64
	price string
}

func newTestDocument(t *testing.T, docType DocumentType, status DocumentStatus, specs ...lineSpec) *Document {
	t.Helper()
	doc, err := NewDocument(docType, "CUST-001", StatusOpen)
	require.NoError(t, err)
	doc.Number = docType.NumberPrefix() + "-2026-00001"

	lines := make([]Line, 0, len(specs))
	for _, s := range specs {
		uom := s.uom
		if uom == "" {
			uom = "Nos"
		}
		price := s.price
		if price == "" {
			price = "0"
		}
		line, err := NewLine(s.item, uom, decimal.NewFromInt(s.qty), decimal.RequireFromString(price))
		require.NoError(t, err)
		line.Warehouse = "WH-MAIN"
		lines = append(lines, *line)
	}
	require.NoError(t, doc.ReplaceLines(lines))
	doc.Status = status
	doc.ClearDomainEvents()
	return doc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
