package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tableside-pos/internal/cart"
	"tableside-pos/internal/order"
	"tableside-pos/internal/overlay"
)

// Result describes a committed send to the kitchen.
type Result struct {
	OrderID int64
	Created bool
	// Sent holds the cart entries that were committed, in cart order. Tickets
	// are printed from these rather than from the merged order lines.
	Sent []order.MenuLine
	// Inserted holds the lines that were new rows; merged entries are absent.
	Inserted []order.Line
	// Merged maps an existing line id to the units the send added to it.
	Merged map[int64]int
}

type Engine struct {
	store  order.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(store order.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

func (e *Engine) OpenOrder(ctx context.Context, tableID int64) (*order.Order, error) {
	o, err := e.store.GetOpenOrder(ctx, tableID)
	if err != nil {
		return nil, order.StoreError("get open order", err)
	}
	return o, nil
}

func (e *Engine) TableName(ctx context.Context, tableID int64) string {
	name, err := e.store.TableName(ctx, tableID)
	if err != nil || strings.TrimSpace(name) == "" {
		if err != nil {
			e.logger.Warn("table name lookup failed", zap.Int64("tableId", tableID), zap.Error(err))
		}
		return formatTableID(tableID)
	}
	return name
}

// SendToKitchen merges entries into the table's open order, creating the
// order when the table has none. An entry whose item, unit price and options
// match an ORDERED line adds to that line's quantity; the memo is not part of
// the match. Everything commits together or not at all.
func (e *Engine) SendToKitchen(ctx context.Context, tableID int64, entries []cart.Entry) (Result, error) {
	if len(entries) == 0 {
		return Result{}, order.ErrEmptyCart
	}
	for _, entry := range entries {
		if entry.Quantity < 1 {
			return Result{}, order.ErrInvalidQuantity
		}
	}

	var res Result
	err := e.store.InTx(ctx, func(tx order.Store) error {
		res = Result{}
		current, err := tx.GetOpenOrder(ctx, tableID)
		if err != nil {
			return order.StoreError("get open order", err)
		}
		if current == nil {
			id, err := tx.CreateOrder(ctx, tableID, e.now())
			if err != nil {
				return order.StoreError("create order", err)
			}
			current = &order.Order{ID: id, TableID: tableID, Status: order.StatusOpen}
			res.Created = true
		}
		res.OrderID = current.ID

		lines := append([]order.Line(nil), current.Lines...)
		for _, entry := range entries {
			if idx := matchLine(lines, entry); idx >= 0 {
				lines[idx].Quantity += entry.Quantity
				if err := tx.UpdateLine(ctx, lines[idx]); err != nil {
					return order.StoreError("update line", err)
				}
				if lines[idx].ID != 0 && !isInserted(res.Inserted, lines[idx].ID) {
					if res.Merged == nil {
						res.Merged = make(map[int64]int)
					}
					res.Merged[lines[idx].ID] += entry.Quantity
				}
				continue
			}
			line := order.Line{OrderID: current.ID, Status: order.LineOrdered, MenuLine: entry}
			ids, err := tx.InsertLines(ctx, current.ID, []order.Line{line})
			if err != nil {
				return order.StoreError("insert lines", err)
			}
			if len(ids) != 1 {
				return order.StoreError("insert lines", errors.New("unexpected id count"))
			}
			line.ID = ids[0]
			lines = append(lines, line)
			res.Inserted = append(res.Inserted, line)
		}
		res.Sent = append([]order.MenuLine(nil), entries...)
		return nil
	})
	if err != nil {
		return Result{}, wrapTx(err)
	}

	e.logger.Info("sent to kitchen",
		zap.Int64("tableId", tableID),
		zap.Int64("orderId", res.OrderID),
		zap.Bool("created", res.Created),
		zap.Int("entries", len(entries)),
		zap.Int("inserted", len(res.Inserted)),
	)
	return res, nil
}

func isInserted(lines []order.Line, id int64) bool {
	for _, line := range lines {
		if line.ID == id {
			return true
		}
	}
	return false
}

// matchLine finds the ORDERED line an entry merges into.
func matchLine(lines []order.Line, entry cart.Entry) int {
	for i, line := range lines {
		if !line.Active() || line.MenuItemID != entry.MenuItemID {
			continue
		}
		if order.SamePrice(line.UnitPrice, entry.UnitPrice) && line.Options == entry.Options {
			return i
		}
	}
	return -1
}

// SaveEdits writes staged overlay edits in one transaction. Cancels become a
// CANCELED status; rows are never deleted.
func (e *Engine) SaveEdits(ctx context.Context, tableID int64, edits []overlay.Edit) error {
	if len(edits) == 0 {
		return nil
	}
	err := e.store.InTx(ctx, func(tx order.Store) error {
		current, err := tx.GetOpenOrder(ctx, tableID)
		if err != nil {
			return order.StoreError("get open order", err)
		}
		if current == nil {
			return order.ErrOrderNotEditable
		}
		for _, edit := range edits {
			line, ok := current.Line(edit.LineID)
			if !ok || !line.Active() {
				return order.ErrOrderNotEditable
			}
			if !edit.Cancel && (edit.Quantity < 1 || edit.Quantity > line.Quantity) {
				return order.ErrInvalidQuantity
			}
			if err := tx.UpdateLine(ctx, edit.Apply(line)); err != nil {
				return order.StoreError("update line", err)
			}
		}
		return nil
	})
	if err != nil {
		return wrapTx(err)
	}
	e.logger.Info("saved order edits", zap.Int64("tableId", tableID), zap.Int("edits", len(edits)))
	return nil
}

// CompletePayment marks the open order PAID. A paid order is never returned
// by GetOpenOrder again, so it can no longer be edited here.
func (e *Engine) CompletePayment(ctx context.Context, tableID int64, now time.Time) (order.Order, error) {
	var paid order.Order
	err := e.store.InTx(ctx, func(tx order.Store) error {
		current, err := tx.GetOpenOrder(ctx, tableID)
		if err != nil {
			return order.StoreError("get open order", err)
		}
		if current == nil {
			return order.ErrNoOpenOrder
		}
		if err := tx.MarkPaid(ctx, current.ID, now); err != nil {
			return order.StoreError("mark paid", err)
		}
		paid = *current
		paid.Status = order.StatusPaid
		completed := now
		paid.CompletedAt = &completed
		return nil
	})
	if err != nil {
		return order.Order{}, wrapTx(err)
	}
	e.logger.Info("payment completed", zap.Int64("tableId", tableID), zap.Int64("orderId", paid.ID))
	return paid, nil
}

// UpdateLineMemo edits the memo of a persisted line directly, without staging.
func (e *Engine) UpdateLineMemo(ctx context.Context, tableID, lineID int64, memo string) (order.Line, error) {
	var updated order.Line
	err := e.store.InTx(ctx, func(tx order.Store) error {
		current, err := tx.GetOpenOrder(ctx, tableID)
		if err != nil {
			return order.StoreError("get open order", err)
		}
		if current == nil {
			return order.ErrNoOpenOrder
		}
		line, ok := current.Line(lineID)
		if !ok {
			return order.ErrLineNotFound
		}
		line.Memo = strings.TrimSpace(memo)
		if err := tx.UpdateLine(ctx, line); err != nil {
			return order.StoreError("update line", err)
		}
		updated = line
		return nil
	})
	if err != nil {
		return order.Line{}, wrapTx(err)
	}
	return updated, nil
}

func wrapTx(err error) error {
	var domain *order.Error
	if errors.As(err, &domain) || order.IsStoreError(err) {
		return err
	}
	return order.StoreError("commit", err)
}

func formatTableID(tableID int64) string {
	return strconv.FormatInt(tableID, 10)
}
