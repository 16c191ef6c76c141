package sales

import "github.com/shopspring/decimal"

// Monetary precision. Line totals are rounded before they are summed into
// the header, never the other way round.
const (
	LinePrecision   int32 = 6
	HeaderPrecision int32 = 2
)

// Totals holds the derived header money fields of a document
type Totals struct {
	Total   decimal.Decimal
	Payable decimal.Decimal
	Due     decimal.Decimal
}

// LineTotal returns quantity * unitPrice at line precision
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(LinePrecision)
}

// CalculateTotals derives the header totals from the active lines and the
// discount, tax and paid amounts.
//
//	total   = Σ round6(qty * price)          rounded to 2
//	payable = total + tax - discount          rounded to 2
//	due     = payable - paid                  rounded to 2
func CalculateTotals(lines []Line, discount, tax, paid decimal.Decimal) Totals {
	sum := decimal.Zero
	for i := range lines {
		if !lines[i].IsActive {
			continue
		}
		sum = sum.Add(LineTotal(lines[i].Quantity, lines[i].UnitPrice))
	}

	total := sum.Round(HeaderPrecision)
	payable := total.Add(tax).Sub(discount).Round(HeaderPrecision)
	due := payable.Sub(paid).Round(HeaderPrecision)

	return Totals{
		Total:   total,
		Payable: payable,
		Due:     due,
	}
}
