package sales

import (
	"context"
	"sort"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockOpKind is the ledger counter a StockOp moves
type StockOpKind string

const (
	// StockOpCommit changes committed on behalf of an open order line
	StockOpCommit StockOpKind = "COMMIT"
	// StockOpIssue moves stock out with a delivery line
	StockOpIssue StockOpKind = "ISSUE"
	// StockOpReceive moves stock in with a return line
	StockOpReceive StockOpKind = "RECEIVE"
)

// TransactionType returns the journal type written for the kind
func (k StockOpKind) TransactionType() inventory.TransactionType {
	switch k {
	case StockOpIssue:
		return inventory.TransactionTypeDelivery
	case StockOpReceive:
		return inventory.TransactionTypeReturn
	default:
		return inventory.TransactionTypeSale
	}
}

// Ops of one batch run deletes first, then updates, then creates, so a
// replaced line releases its quantity before its successor is validated.
// Order commitments settled by a delivery come last.
const (
	phaseDelete = iota
	phaseUpdate
	phaseCreate
	phaseSettle
)

// StockOp is one signed change against one ledger row
type StockOp struct {
	Kind         StockOpKind
	Key          inventory.StockKey
	Quantity     decimal.Decimal
	LineID       uuid.UUID
	LinePosition int
	phase        int
	// restore re-commits quantity a reversed delivery put back into stock,
	// so it is not checked against availability
	restore bool
}

func (op StockOp) journalQuantity() decimal.Decimal {
	if op.Kind == StockOpIssue {
		return op.Quantity.Neg()
	}
	return op.Quantity
}

func lineOp(kind StockOpKind, line *sales.Line, qty decimal.Decimal, phase int) StockOp {
	return StockOp{
		Kind:         kind,
		Key:          inventory.StockKey{ItemCode: line.ItemCode, Warehouse: line.Warehouse},
		Quantity:     qty,
		LineID:       line.ID,
		LinePosition: line.Position,
		phase:        phase,
	}
}

// LedgerConfig holds ledger behaviour switches
type LedgerConfig struct {
	EnforceAvailability bool
}

// Ledger applies stock commitments and movements to ItemWarehouseAvailability
// rows. Every mutation locks its rows in (item, warehouse) order before the
// read-modify-write.
type Ledger struct {
	enforceAvailability bool
	logger              *zap.Logger
	metrics             *telemetry.FulfillmentMetrics
}

// NewLedger creates a new Ledger
func NewLedger(cfg LedgerConfig, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		enforceAvailability: cfg.EnforceAvailability,
		logger:              logger,
	}
}

// SetMetrics sets the metrics recorder (optional)
func (l *Ledger) SetMetrics(m *telemetry.FulfillmentMetrics) {
	l.metrics = m
}

// OnLineCreated returns the op for a line added to a document whose lines
// count in the ledger: a commitment for an open order, an issue for a
// delivery, a receipt for a return
func (l *Ledger) OnLineCreated(kind StockOpKind, line *sales.Line) StockOp {
	return lineOp(kind, line, line.Quantity, phaseCreate)
}

// OnLineUpdated returns the op for the quantity difference of an edited
// line. Commit clamps the resulting counter at zero.
func (l *Ledger) OnLineUpdated(kind StockOpKind, line *sales.Line, oldQuantity decimal.Decimal) StockOp {
	return lineOp(kind, line, line.Quantity.Sub(oldQuantity), phaseUpdate)
}

// OnLineDeleted returns the op that takes a removed line back out
func (l *Ledger) OnLineDeleted(kind StockOpKind, line *sales.Line) StockOp {
	return lineOp(kind, line, line.Quantity.Neg(), phaseDelete)
}

// ValidateAvailability fails with INSUFFICIENT_STOCK when a positive
// effectiveDelta exceeds the row's available quantity
func (l *Ledger) ValidateAvailability(ctx context.Context, row *inventory.ItemWarehouseAvailability, effectiveDelta decimal.Decimal) error {
	if !l.enforceAvailability {
		return nil
	}
	if err := row.CanCommit(effectiveDelta); err != nil {
		l.logger.Info("Commitment rejected",
			zap.String("item_code", row.ItemCode),
			zap.String("warehouse", row.Warehouse),
			zap.String("available", row.Available.String()),
			zap.String("delta", effectiveDelta.String()),
		)
		l.metrics.RecordInsufficientStock(ctx, row.ItemCode, row.Warehouse)
		return err
	}
	return nil
}

// Apply locks every row touched by ops in sorted key order, applies the ops
// in phase order, saves the rows and journals each movement against doc.
func (l *Ledger) Apply(ctx context.Context, repos TransactionalRepositories, doc *sales.Document, ops []StockOp) error {
	ops = compactOps(ops)
	if len(ops) == 0 {
		return nil
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].phase < ops[j].phase })

	keys := sortedKeys(ops)
	rows := make(map[inventory.StockKey]*inventory.ItemWarehouseAvailability, len(keys))
	for _, key := range keys {
		row, err := repos.AvailabilityRepo().FindForUpdate(ctx, key)
		if err != nil {
			return err
		}
		rows[key] = row
	}

	journal := make([]*inventory.InventoryTransaction, 0, len(ops))
	for _, op := range ops {
		row := rows[op.Key]
		switch op.Kind {
		case StockOpCommit:
			if !op.restore {
				if err := l.ValidateAvailability(ctx, row, op.Quantity); err != nil {
					return err
				}
			}
			row.Commit(op.Quantity)
		case StockOpIssue:
			row.Issue(op.Quantity)
		case StockOpReceive:
			row.Receive(op.Quantity)
		}

		// a settlement is recorded by the delivery's own journal row
		if op.phase != phaseSettle {
			entry, err := inventory.NewInventoryTransaction(op.Kind.TransactionType(), op.Key.ItemCode, op.Key.Warehouse,
				op.journalQuantity(), doc.ID, doc.Number, op.LineID, op.LinePosition)
			if err != nil {
				return err
			}
			journal = append(journal, entry)
		}

		l.logger.Debug("Ledger row updated",
			zap.String("document_id", doc.ID.String()),
			zap.String("op", string(op.Kind)),
			zap.String("item_code", op.Key.ItemCode),
			zap.String("warehouse", op.Key.Warehouse),
			zap.String("delta", op.Quantity.String()),
			zap.String("committed", row.Committed.String()),
			zap.String("available", row.Available.String()),
		)
	}

	for _, key := range keys {
		row := rows[key]
		events := row.GetDomainEvents()
		if err := repos.AvailabilityRepo().SaveWithLock(ctx, row); err != nil {
			return err
		}
		if err := repos.EventSaver().SaveEvents(ctx, events...); err != nil {
			return err
		}
		row.ClearDomainEvents()
	}

	return repos.TransactionRepo().Create(ctx, journal...)
}

// compactOps drops zero-quantity ops
func compactOps(ops []StockOp) []StockOp {
	out := make([]StockOp, 0, len(ops))
	for _, op := range ops {
		if !op.Quantity.IsZero() {
			out = append(out, op)
		}
	}
	return out
}

func sortedKeys(ops []StockOp) []inventory.StockKey {
	seen := make(map[inventory.StockKey]struct{}, len(ops))
	keys := make([]inventory.StockKey, 0, len(ops))
	for _, op := range ops {
		if _, ok := seen[op.Key]; ok {
			continue
		}
		seen[op.Key] = struct{}{}
		keys = append(keys, op.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// stockState captures how a document affects the ledger at one point in time
type stockState struct {
	kind   StockOpKind
	active bool
	lines  []sales.Line
}

// stockStateOf snapshots the ledger effect of doc. Active lines are copied so
// later edits to doc do not leak into the snapshot.
func stockStateOf(doc *sales.Document) stockState {
	state := stockState{lines: make([]sales.Line, 0, len(doc.Lines))}
	for _, line := range doc.Lines {
		if line.IsActive {
			state.lines = append(state.lines, line)
		}
	}
	switch doc.Type {
	case sales.DocumentTypeOrder:
		state.kind, state.active = StockOpCommit, doc.CommitsStock()
	case sales.DocumentTypeDelivery:
		state.kind, state.active = StockOpIssue, doc.PostsStock()
	case sales.DocumentTypeReturn:
		state.kind, state.active = StockOpReceive, doc.PostsStock()
	}
	return state
}

// diffOps derives the ledger ops that take the ledger from before to after.
// Lines are matched by id; a line whose item or warehouse changed is
// released and re-committed.
func (l *Ledger) diffOps(before, after stockState) []StockOp {
	if before.kind == "" && after.kind == "" {
		return nil
	}
	kind := after.kind
	if kind == "" {
		kind = before.kind
	}

	prev := make(map[uuid.UUID]*sales.Line)
	if before.active {
		for i := range before.lines {
			prev[before.lines[i].ID] = &before.lines[i]
		}
	}

	ops := make([]StockOp, 0)
	seen := make(map[uuid.UUID]struct{})
	if after.active {
		for i := range after.lines {
			line := &after.lines[i]
			old, ok := prev[line.ID]
			if !ok {
				ops = append(ops, l.OnLineCreated(kind, line))
				continue
			}
			seen[line.ID] = struct{}{}
			if old.ItemCode != line.ItemCode || old.Warehouse != line.Warehouse {
				ops = append(ops, l.OnLineDeleted(kind, old), l.OnLineCreated(kind, line))
				continue
			}
			ops = append(ops, l.OnLineUpdated(kind, line, old.Quantity))
		}
	}
	for i := range before.lines {
		line := &before.lines[i]
		if _, ok := prev[line.ID]; !ok {
			continue
		}
		if _, kept := seen[line.ID]; kept {
			continue
		}
		ops = append(ops, l.OnLineDeleted(kind, line))
	}
	return ops
}

// issuedQuantities sums the active lines of posted deliveries per (item, uom)
func issuedQuantities(deliveries []*sales.Document) map[sales.LineKey]decimal.Decimal {
	issued := make(map[sales.LineKey]decimal.Decimal)
	for _, d := range deliveries {
		if !d.PostsStock() {
			continue
		}
		addIssued(issued, d.Lines)
	}
	return issued
}

func addIssued(issued map[sales.LineKey]decimal.Decimal, lines []sales.Line) {
	for i := range lines {
		if lines[i].IsActive {
			key := lines[i].Key()
			issued[key] = issued[key].Add(lines[i].Quantity)
		}
	}
}

// undelivered returns, per active order line, the quantity issued has not
// covered. issued is consumed line by line in position order.
func undelivered(order *sales.Document, issued map[sales.LineKey]decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	left := make(map[sales.LineKey]decimal.Decimal, len(issued))
	for k, v := range issued {
		left[k] = v
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(order.Lines))
	for i := range order.Lines {
		line := &order.Lines[i]
		if !line.IsActive {
			continue
		}
		key := line.Key()
		take := decimal.Max(decimal.Zero, decimal.Min(line.Quantity, left[key]))
		left[key] = left[key].Sub(take)
		out[line.ID] = line.Quantity.Sub(take)
	}
	return out
}

// releaseOps releases the commitments an order still holds: each active
// line's quantity less what its posted deliveries already issued
func releaseOps(order *sales.Document, posted []*sales.Document) []StockOp {
	rest := undelivered(order, issuedQuantities(posted))
	ops := make([]StockOp, 0, len(order.Lines))
	for i := range order.Lines {
		line := &order.Lines[i]
		if qty, ok := rest[line.ID]; ok && qty.IsPositive() {
			ops = append(ops, lineOp(StockOpCommit, line, qty.Neg(), phaseDelete))
		}
	}
	return ops
}

// settleOps moves the commitments of order by the change in its undelivered
// quantities when one of its deliveries goes from before to after. others
// are the order's remaining deliveries. An order that no longer holds
// commitments is left alone, so reversing a delivery of a closed or
// cancelled order only puts the stock back.
func settleOps(order *sales.Document, others []*sales.Document, before, after stockState) []StockOp {
	if !order.HoldsCommitments() {
		return nil
	}

	was, now := issuedQuantities(others), issuedQuantities(others)
	if before.active {
		addIssued(was, before.lines)
	}
	if after.active {
		addIssued(now, after.lines)
	}
	restBefore, restAfter := undelivered(order, was), undelivered(order, now)

	ops := make([]StockOp, 0)
	for i := range order.Lines {
		line := &order.Lines[i]
		delta := restAfter[line.ID].Sub(restBefore[line.ID])
		if delta.IsZero() {
			continue
		}
		op := lineOp(StockOpCommit, line, delta, phaseSettle)
		op.restore = delta.IsPositive()
		ops = append(ops, op)
	}
	return ops
}
