package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"tableside-pos/internal/cart"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/mirror"
	"tableside-pos/internal/order"
	"tableside-pos/internal/overlay"
	"tableside-pos/internal/pricing"
	"tableside-pos/internal/printer"
	"tableside-pos/internal/rates"
	"tableside-pos/internal/reconcile"
	"tableside-pos/internal/ticket"
	"tableside-pos/internal/utils"
)

var (
	ErrPendingChanges = &order.Error{Code: "PENDING_CHANGES", Message: "Send or discard pending changes first", StatusCode: http.StatusConflict}
	ErrEntryNotFound  = &order.Error{Code: "CART_ENTRY_NOT_FOUND", Message: "Cart entry not found", StatusCode: http.StatusNotFound}
)

type RateSource interface {
	Selection() rates.Selection
}

type Spooler interface {
	Enqueue(kind printer.JobKind, tableID int64, text string) (string, error)
}

type Mirror interface {
	Submit(evt mirror.Event) bool
}

// ReceiptArchive stores the PDF of a paid order's receipt.
type ReceiptArchive interface {
	ArchiveReceipt(ctx context.Context, tableID, orderID int64, pdf []byte) (string, error)
}

type Business struct {
	Name    string
	Address string
}

type Deps struct {
	Engine   *reconcile.Engine
	Rates    RateSource
	Menu     *menu.Catalog
	Spooler  Spooler
	Mirror   Mirror
	Archive  ReceiptArchive
	Business Business
	Location *time.Location
	Logger   *zap.Logger
}

// View is the rendered state of a table session.
type View struct {
	TableID   int64             `json:"tableId"`
	TableName string            `json:"tableName"`
	OrderID   int64             `json:"orderId,omitempty"`
	Lines     []order.Line      `json:"lines"`
	Cart      []cart.Entry      `json:"cart"`
	Edits     []overlay.Edit    `json:"edits"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Status    string            `json:"status,omitempty"`
}

// Session is the single editing context of one table. The cart and the
// overlay live only here and vanish with the session unless sent or saved.
type Session struct {
	mu        sync.Mutex
	tableID   int64
	tableName string
	deps      *Deps
	cart      *cart.Cart
	overlay   *overlay.Overlay
	current   *order.Order
	status    string

	listenerMu   sync.Mutex
	listeners    map[int]func(View)
	nextListener int
}

func newSession(tableID int64, deps *Deps) *Session {
	return &Session{
		tableID:   tableID,
		deps:      deps,
		cart:      cart.New(),
		overlay:   overlay.New(),
		listeners: make(map[int]func(View)),
	}
}

func (s *Session) TableID() int64 {
	return s.tableID
}

func (s *Session) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableName = s.deps.Engine.TableName(ctx, s.tableID)
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	current, err := s.deps.Engine.OpenOrder(ctx, s.tableID)
	if err != nil {
		return err
	}
	s.current = current
	if current == nil {
		s.overlay.Discard()
		return nil
	}
	s.overlay.Prune(current.Lines)
	return nil
}

// reloadAfterCommit refreshes the order once a write has committed. A failed
// read only leaves the view stale; the write itself stands.
func (s *Session) reloadAfterCommit(ctx context.Context, op string) {
	if err := s.refreshLocked(ctx); err != nil {
		s.deps.Logger.Warn("reload after commit failed",
			zap.Int64("tableId", s.tableID),
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

// Subscribe registers fn for every view change and returns the cancel func.
func (s *Session) Subscribe(fn func(View)) func() {
	s.listenerMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenerMu.Unlock()
	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Session) broadcast() {
	view := s.View()
	s.listenerMu.Lock()
	fns := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn(view)
	}
}

// mutate runs fn under the session lock and pushes the new view on success.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	if err == nil {
		s.broadcast()
	}
	return err
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	var lines []order.Line
	var orderID int64
	if s.current != nil {
		orderID = s.current.ID
		lines = s.overlay.Apply(s.current.Lines)
	}
	entries := s.cart.Entries()
	return View{
		TableID:   s.tableID,
		TableName: s.tableName,
		OrderID:   orderID,
		Lines:     lines,
		Cart:      entries,
		Edits:     s.overlay.Edits(),
		Breakdown: pricing.Calculate(lines, entries, s.deps.Rates.Selection()),
		Status:    s.status,
	}
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.broadcast()
}

// AddItem adds one unit of a menu item. Items with modifier groups, or any
// explicit selection, go through option resolution.
func (s *Session) AddItem(itemID int64, sel menu.Selection) (cart.Entry, error) {
	item, err := s.deps.Menu.Item(itemID)
	if err != nil {
		return cart.Entry{}, err
	}
	var added cart.Entry
	err = s.mutate(func() error {
		if len(item.Groups) == 0 && len(sel) == 0 {
			added = s.cart.Add(item.Line())
			return nil
		}
		descriptor, price, err := item.Resolve(sel)
		if err != nil {
			return err
		}
		added = s.cart.AddWithOptions(item.Line(), descriptor, price)
		return nil
	})
	return added, err
}

func (s *Session) IncrementCart(entry cart.Entry) error {
	return s.mutate(func() error {
		if !s.cart.Increment(entry) {
			return ErrEntryNotFound
		}
		return nil
	})
}

func (s *Session) DecrementCart(entry cart.Entry) error {
	return s.mutate(func() error {
		if !s.cart.Decrement(entry) {
			return ErrEntryNotFound
		}
		return nil
	})
}

func (s *Session) SetCartMemo(entry cart.Entry, memo string) error {
	return s.mutate(func() error {
		if !s.cart.SetMemo(entry, memo) {
			return ErrEntryNotFound
		}
		return nil
	})
}

func (s *Session) persistedLine(lineID int64) (order.Line, error) {
	if s.current == nil {
		return order.Line{}, order.ErrNoOpenOrder
	}
	line, ok := s.current.Line(lineID)
	if !ok {
		return order.Line{}, order.ErrLineNotFound
	}
	return line, nil
}

// IncrementOrdered puts one more unit of an ordered line in the cart at the
// price and options it was ordered with, so the next send merges into it.
// Ordered quantities only grow through a send.
func (s *Session) IncrementOrdered(lineID int64) error {
	return s.mutate(func() error {
		line, err := s.persistedLine(lineID)
		if err != nil {
			return err
		}
		if !line.Active() {
			return order.ErrOrderNotEditable
		}
		snapshot := line.MenuLine
		if item, err := s.deps.Menu.Item(line.MenuItemID); err == nil {
			snapshot.Name = item.Name
			snapshot.Station = item.Station
		}
		s.cart.AddWithOptions(snapshot, line.Options, line.UnitPrice)
		return nil
	})
}

// DecrementOrdered stages one unit less; the last unit stages a cancel.
func (s *Session) DecrementOrdered(lineID int64) error {
	return s.mutate(func() error {
		line, err := s.persistedLine(lineID)
		if err != nil {
			return err
		}
		effective := s.overlay.Effective(line)
		if !effective.Active() {
			return order.ErrOrderNotEditable
		}
		if effective.Quantity <= 1 {
			return s.overlay.StageCancel(line)
		}
		return s.overlay.StageQuantity(line, effective.Quantity-1)
	})
}

func (s *Session) CancelOrdered(lineID int64) error {
	return s.mutate(func() error {
		line, err := s.persistedLine(lineID)
		if err != nil {
			return err
		}
		return s.overlay.StageCancel(line)
	})
}

func (s *Session) SetOrderedQuantity(lineID int64, quantity int) error {
	return s.mutate(func() error {
		line, err := s.persistedLine(lineID)
		if err != nil {
			return err
		}
		return s.overlay.StageQuantity(line, quantity)
	})
}

// SetOrderedMemo writes the memo straight to the store.
func (s *Session) SetOrderedMemo(ctx context.Context, lineID int64, memo string) error {
	return s.mutate(func() error {
		if _, err := s.deps.Engine.UpdateLineMemo(ctx, s.tableID, lineID, memo); err != nil {
			return err
		}
		s.reloadAfterCommit(ctx, "memo")
		return nil
	})
}

// SaveChanges commits the overlay. The overlay is cleared only after the
// store commit succeeds.
func (s *Session) SaveChanges(ctx context.Context) error {
	return s.mutate(func() error {
		if s.overlay.Len() == 0 {
			return nil
		}
		if err := s.deps.Engine.SaveEdits(ctx, s.tableID, s.overlay.Edits()); err != nil {
			return err
		}
		s.overlay.Discard()
		s.reloadAfterCommit(ctx, "save")
		return nil
	})
}

func (s *Session) DiscardChanges() {
	_ = s.mutate(func() error {
		s.overlay.Discard()
		return nil
	})
}

// SendToKitchen commits the cart, clears it, then queues station tickets and
// the mirror event. Print and mirror problems never undo the commit.
func (s *Session) SendToKitchen(ctx context.Context) (reconcile.Result, error) {
	var res reconcile.Result
	err := s.mutate(func() error {
		var err error
		res, err = s.deps.Engine.SendToKitchen(ctx, s.tableID, s.cart.Entries())
		if err != nil {
			return err
		}
		s.cart.Clear()
		for lineID, added := range res.Merged {
			s.overlay.Rebase(lineID, added)
		}
		s.reloadAfterCommit(ctx, "send")
		return nil
	})
	if err != nil {
		return reconcile.Result{}, err
	}

	now := utils.NowIn(s.deps.Location)
	s.printTickets(res, now)
	if s.deps.Mirror != nil {
		s.deps.Mirror.Submit(mirror.SentEvent(s.tableID, res.OrderID, res.Sent, now))
	}
	return res, nil
}

func (s *Session) printTickets(res reconcile.Result, now time.Time) {
	if s.deps.Spooler == nil {
		return
	}
	meta := ticket.Meta{TableName: s.View().TableName, OrderID: res.OrderID, Time: now}
	for _, tk := range ticket.Route(res.Sent) {
		kind := printer.KindKitchen
		if tk.Station == ticket.SushiBar {
			kind = printer.KindSushiBar
		}
		if _, err := s.deps.Spooler.Enqueue(kind, s.tableID, ticket.FormatStationTicket(tk, meta)); err != nil {
			s.setStatus(printer.StatusText(kind, err))
		}
	}
}

// Receipt builds the customer receipt from the ORDERED lines, staged edits
// included, plus whatever is still in the cart.
func (s *Session) Receipt() (ticket.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ticket.Receipt{}, order.ErrNoOpenOrder
	}
	return s.receiptLocked(s.current.ID), nil
}

func (s *Session) receiptLocked(orderID int64) ticket.Receipt {
	view := s.viewLocked()
	return ticket.Receipt{
		OrderID:         orderID,
		BusinessName:    s.deps.Business.Name,
		BusinessAddress: s.deps.Business.Address,
		TableName:       s.tableName,
		Time:            utils.NowIn(s.deps.Location),
		Items:           ticket.ItemsFrom(view.Lines, view.Cart),
		Breakdown:       view.Breakdown,
	}
}

func (s *Session) PrintCustomerReceipt() (string, error) {
	r, err := s.Receipt()
	if err != nil {
		return "", err
	}
	if s.deps.Spooler == nil {
		return "", printer.ErrNotConfigured
	}
	return s.deps.Spooler.Enqueue(printer.KindReceipt, s.tableID, ticket.FormatCustomerReceipt(r))
}

// CompletePayment closes the open order. The cart and the overlay must be
// empty so the paid order matches what was shown to the guest.
func (s *Session) CompletePayment(ctx context.Context) (order.Order, error) {
	var (
		paid    order.Order
		receipt ticket.Receipt
	)
	err := s.mutate(func() error {
		if s.cart.Len() > 0 || s.overlay.Len() > 0 {
			return ErrPendingChanges
		}
		if s.current == nil {
			return order.ErrNoOpenOrder
		}
		receipt = s.receiptLocked(s.current.ID)
		var err error
		paid, err = s.deps.Engine.CompletePayment(ctx, s.tableID, utils.NowIn(s.deps.Location))
		if err != nil {
			return err
		}
		s.current = nil
		s.overlay.Discard()
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}

	if s.deps.Mirror != nil {
		s.deps.Mirror.Submit(mirror.PaidEvent(paid, receipt.Breakdown.Total))
	}
	if s.deps.Archive != nil {
		go s.archive(paid, receipt)
	}
	return paid, nil
}

func (s *Session) archive(paid order.Order, receipt ticket.Receipt) {
	buf, err := ticket.RenderReceiptPDF(receipt)
	if err != nil {
		s.deps.Logger.Warn("render receipt pdf failed", zap.Int64("orderId", paid.ID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	url, err := s.deps.Archive.ArchiveReceipt(ctx, paid.TableID, paid.ID, buf.Bytes())
	if err != nil {
		s.deps.Logger.Warn("archive receipt failed", zap.Int64("orderId", paid.ID), zap.Error(err))
		return
	}
	s.deps.Logger.Info("receipt archived", zap.Int64("orderId", paid.ID), zap.String("url", url))
}

// Discard drops the cart and the overlay.
func (s *Session) Discard() {
	_ = s.mutate(func() error {
		s.cart.Clear()
		s.overlay.Discard()
		return nil
	})
}

// IsDomainError reports whether err is one of the typed order errors.
func IsDomainError(err error) bool {
	var de *order.Error
	return errors.As(err, &de)
}
