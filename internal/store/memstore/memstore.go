// Package memstore is an in-process order store used in development mode and
// by tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"tableside-pos/internal/order"
)

var ErrOpenOrderExists = errors.New("table already has an open order")

type Store struct {
	mu sync.Mutex
	d  *data
}

type data struct {
	nextOrderID int64
	nextLineID  int64
	orders      map[int64]*order.Order
	tables      map[int64]string
}

func New() *Store {
	return &Store{d: &data{
		orders: make(map[int64]*order.Order),
		tables: make(map[int64]string),
	}}
}

func (s *Store) SetTableName(tableID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.tables[tableID] = name
}

// Orders returns every order of the table, oldest first.
func (s *Store) Orders(tableID int64) []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.d.orders {
		if o.TableID == tableID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetOpenOrder(ctx context.Context, tableID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.getOpenOrder(tableID), nil
}

func (s *Store) CreateOrder(ctx context.Context, tableID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.createOrder(tableID, at)
}

func (s *Store) InsertLines(ctx context.Context, orderID int64, lines []order.Line) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.insertLines(orderID, lines)
}

func (s *Store) UpdateLine(ctx context.Context, line order.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.updateLine(line)
}

func (s *Store) DeleteLine(ctx context.Context, lineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.deleteLine(lineID)
}

func (s *Store) MarkPaid(ctx context.Context, orderID int64, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.markPaid(orderID, completedAt)
}

func (s *Store) TableName(ctx context.Context, tableID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.tableName(tableID), nil
}

// InTx runs fn against a working copy under the store lock. The copy replaces
// the committed state only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx order.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.d.clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d = work
	return nil
}

// tx is the lock-free view handed to InTx callbacks.
type tx struct {
	d *data
}

func (t *tx) GetOpenOrder(ctx context.Context, tableID int64) (*order.Order, error) {
	return t.d.getOpenOrder(tableID), nil
}

func (t *tx) CreateOrder(ctx context.Context, tableID int64, at time.Time) (int64, error) {
	return t.d.createOrder(tableID, at)
}

func (t *tx) InsertLines(ctx context.Context, orderID int64, lines []order.Line) ([]int64, error) {
	return t.d.insertLines(orderID, lines)
}

func (t *tx) UpdateLine(ctx context.Context, line order.Line) error {
	return t.d.updateLine(line)
}

func (t *tx) DeleteLine(ctx context.Context, lineID int64) error {
	return t.d.deleteLine(lineID)
}

func (t *tx) MarkPaid(ctx context.Context, orderID int64, completedAt time.Time) error {
	return t.d.markPaid(orderID, completedAt)
}

func (t *tx) TableName(ctx context.Context, tableID int64) (string, error) {
	return t.d.tableName(tableID), nil
}

func (t *tx) InTx(ctx context.Context, fn func(tx order.Store) error) error {
	return fn(t)
}

func (d *data) getOpenOrder(tableID int64) *order.Order {
	for _, o := range d.orders {
		if o.TableID == tableID && o.Status == order.StatusOpen {
			c := cloneOrder(o)
			return &c
		}
	}
	return nil
}

func (d *data) createOrder(tableID int64, at time.Time) (int64, error) {
	if d.getOpenOrder(tableID) != nil {
		return 0, ErrOpenOrderExists
	}
	d.nextOrderID++
	d.orders[d.nextOrderID] = &order.Order{
		ID:        d.nextOrderID,
		TableID:   tableID,
		Status:    order.StatusOpen,
		CreatedAt: at,
	}
	return d.nextOrderID, nil
}

func (d *data) insertLines(orderID int64, lines []order.Line) ([]int64, error) {
	o, ok := d.orders[orderID]
	if !ok {
		return nil, order.ErrNoOpenOrder
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		d.nextLineID++
		line.ID = d.nextLineID
		line.OrderID = orderID
		if line.Status == "" {
			line.Status = order.LineOrdered
		}
		o.Lines = append(o.Lines, line)
		ids = append(ids, line.ID)
	}
	return ids, nil
}

func (d *data) updateLine(line order.Line) error {
	o, idx := d.findLine(line.ID)
	if o == nil {
		return order.ErrLineNotFound
	}
	line.OrderID = o.ID
	o.Lines[idx] = line
	return nil
}

func (d *data) deleteLine(lineID int64) error {
	o, idx := d.findLine(lineID)
	if o == nil {
		return order.ErrLineNotFound
	}
	o.Lines = append(o.Lines[:idx], o.Lines[idx+1:]...)
	return nil
}

func (d *data) markPaid(orderID int64, completedAt time.Time) error {
	o, ok := d.orders[orderID]
	if !ok {
		return order.ErrNoOpenOrder
	}
	o.Status = order.StatusPaid
	at := completedAt
	o.CompletedAt = &at
	return nil
}

func (d *data) tableName(tableID int64) string {
	if name, ok := d.tables[tableID]; ok && name != "" {
		return name
	}
	return strconv.FormatInt(tableID, 10)
}

func (d *data) findLine(lineID int64) (*order.Order, int) {
	for _, o := range d.orders {
		for i, line := range o.Lines {
			if line.ID == lineID {
				return o, i
			}
		}
	}
	return nil, -1
}

func (d *data) clone() *data {
	c := &data{
		nextOrderID: d.nextOrderID,
		nextLineID:  d.nextLineID,
		orders:      make(map[int64]*order.Order, len(d.orders)),
		tables:      make(map[int64]string, len(d.tables)),
	}
	for id, o := range d.orders {
		oc := cloneOrder(o)
		c.orders[id] = &oc
	}
	for id, name := range d.tables {
		c.tables[id] = name
	}
	return c
}

func cloneOrder(o *order.Order) order.Order {
	c := *o
	c.Lines = append([]order.Line(nil), o.Lines...)
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		c.CompletedAt = &at
	}
	return c
}
