package sales

import (
	"fmt"
	"sort"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemainingLine is the unconverted part of one source line
type RemainingLine struct {
	SourceLineID uuid.UUID
	ItemCode     string
	ItemName     string
	UOM          string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Warehouse    string
	Remark       string
}

// Key returns the reconciliation key of the remaining line
func (r RemainingLine) Key() LineKey {
	return LineKey{ItemCode: r.ItemCode, UOM: r.UOM}
}

// ConvertedQuantities sums line quantities per (item, uom) across every
// non-cancelled document in docs
func ConvertedQuantities(docs []*Document) map[LineKey]decimal.Decimal {
	converted := make(map[LineKey]decimal.Decimal)
	for _, doc := range docs {
		if doc == nil || doc.Status == StatusCancelled {
			continue
		}
		for i := range doc.Lines {
			key := doc.Lines[i].Key()
			converted[key] = converted[key].Add(doc.Lines[i].Quantity)
		}
	}
	return converted
}

// ComputeRemaining returns the quantity of each source line not yet carried
// into the downstream documents. Lines sharing an (item, uom) key are
// reconciled against the same merged converted total.
//
// It fails with an INVALID_STATE error when the source status blocks
// conversion and with CONVERSION_EXHAUSTED when nothing remains.
func ComputeRemaining(source *Document, downstream []*Document) ([]RemainingLine, error) {
	if err := checkConvertible(source); err != nil {
		return nil, err
	}

	capacity := func(line *Line) decimal.Decimal { return line.Quantity }
	remaining := remainingAgainst(source, capacity, ConvertedQuantities(downstream))
	if len(remaining) == 0 {
		return nil, shared.NewExhaustedError("Nothing left to convert on %s %s", source.Type, source.Number)
	}
	return remaining, nil
}

// ComputeReturnable returns, for each order line, the delivered quantity not
// yet returned. deliveries are the order's deliveries and returns every
// return recorded against the order or one of those deliveries.
func ComputeReturnable(order *Document, deliveries, returns []*Document) ([]RemainingLine, error) {
	if err := checkConvertible(order); err != nil {
		return nil, err
	}

	delivered := ConvertedQuantities(deliveries)
	if len(delivered) == 0 {
		return nil, shared.NewExhaustedError("Order %s has no deliveries to return", order.Number)
	}

	capacity := func(line *Line) decimal.Decimal { return delivered[line.Key()] }
	remaining := remainingAgainst(order, capacity, ConvertedQuantities(returns))
	if len(remaining) == 0 {
		return nil, shared.NewExhaustedError("No delivered items of order %s are left to return", order.Number)
	}
	return remaining, nil
}

// QuantitiesByKey sums line quantities per (item, uom)
func QuantitiesByKey(lines []Line) map[LineKey]decimal.Decimal {
	out := make(map[LineKey]decimal.Decimal, len(lines))
	for i := range lines {
		key := lines[i].Key()
		out[key] = out[key].Add(lines[i].Quantity)
	}
	return out
}

// OpenQuantities returns, per (item, uom) of source, the quantity the
// downstream documents have not taken yet. Unlike ComputeRemaining it ignores
// the source status and keys may come out zero or negative.
func OpenQuantities(source *Document, downstream []*Document) map[LineKey]decimal.Decimal {
	open := QuantitiesByKey(source.Lines)
	converted := ConvertedQuantities(downstream)
	for key := range open {
		open[key] = open[key].Sub(converted[key])
	}
	return open
}

// ReturnableQuantities returns, per (item, uom) of order, what was delivered
// and not yet returned
func ReturnableQuantities(order *Document, deliveries, returns []*Document) map[LineKey]decimal.Decimal {
	delivered := ConvertedQuantities(deliveries)
	returned := ConvertedQuantities(returns)
	open := make(map[LineKey]decimal.Decimal, len(order.Lines))
	for i := range order.Lines {
		key := order.Lines[i].Key()
		open[key] = delivered[key].Sub(returned[key])
	}
	return open
}

// CheckCoversConverted fails with a VALIDATION_ERROR when doc holds less of
// an (item, uom) key than its downstream documents already converted
func CheckCoversConverted(doc *Document, downstream []*Document) error {
	held := QuantitiesByKey(doc.Lines)
	converted := ConvertedQuantities(downstream)

	var fields []shared.FieldError
	for _, key := range SortedKeys(converted) {
		if converted[key].GreaterThan(held[key]) {
			fields = append(fields, shared.FieldError{
				Field: "lines",
				Message: fmt.Sprintf("%s (%s): %s already converted, document would hold %s",
					key.ItemCode, key.UOM, converted[key].String(), held[key].String()),
			})
		}
	}
	if len(fields) > 0 {
		return shared.NewValidationError(
			fmt.Sprintf("%s %s cannot hold less than its downstream documents took", doc.Type, doc.Number), fields...)
	}
	return nil
}

// RemainingByKey folds remaining lines into per-key totals
func RemainingByKey(lines []RemainingLine) map[LineKey]decimal.Decimal {
	out := make(map[LineKey]decimal.Decimal, len(lines))
	for _, line := range lines {
		out[line.Key()] = out[line.Key()].Add(line.Quantity)
	}
	return out
}

// SortedKeys returns the keys of m in (item, uom) order
func SortedKeys(m map[LineKey]decimal.Decimal) []LineKey {
	keys := make([]LineKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ItemCode != keys[j].ItemCode {
			return keys[i].ItemCode < keys[j].ItemCode
		}
		return keys[i].UOM < keys[j].UOM
	})
	return keys
}

func checkConvertible(source *Document) error {
	if source.Status.BlocksConversion(source.Type) {
		return shared.NewInvalidStateError("%s %s cannot be converted because it is %s",
			source.Type, source.Number, source.Status)
	}
	return nil
}

func remainingAgainst(source *Document, capacity func(*Line) decimal.Decimal, converted map[LineKey]decimal.Decimal) []RemainingLine {
	remaining := make([]RemainingLine, 0, len(source.Lines))
	for i := range source.Lines {
		line := &source.Lines[i]
		qty := capacity(line).Sub(converted[line.Key()])
		if !qty.IsPositive() {
			continue
		}
		remaining = append(remaining, RemainingLine{
			SourceLineID: line.ID,
			ItemCode:     line.ItemCode,
			ItemName:     line.ItemName,
			UOM:          line.UOM,
			Quantity:     qty,
			UnitPrice:    line.UnitPrice,
			Warehouse:    line.Warehouse,
			Remark:       line.Remark,
		})
	}
	return remaining
}
