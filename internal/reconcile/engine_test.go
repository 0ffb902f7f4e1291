package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside-pos/internal/cart"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/order"
	"tableside-pos/internal/overlay"
	"tableside-pos/internal/store/memstore"
	"tableside-pos/internal/utils"
)

func entry(id int64, price float64, qty int, options, memo string) cart.Entry {
	return cart.Entry{MenuItemID: id, Name: "item", UnitPrice: price, Quantity: qty, Options: options, Memo: memo}
}

func TestFirstSendCreatesOneOpenOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)

	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", ""), entry(2, 7, 3, "", "")})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Len(t, res.Inserted, 2)
	assert.Len(t, res.Sent, 2)

	orders := store.Orders(1)
	require.Len(t, orders, 1)
	assert.Equal(t, order.StatusOpen, orders[0].Status)
	assert.Len(t, orders[0].ActiveLines(), 2)
}

func TestSendMergesIgnoringMemo(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)

	_, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 12.99, 2, "Size: Large", "")})
	require.NoError(t, err)

	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{
		entry(1, 12.99, 1, "Size: Large", "no ice"),
		entry(1, 13.99, 1, "Size: Large", ""),
		entry(1, 12.99, 1, "Size: Small", ""),
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Len(t, res.Inserted, 2)

	o, err := engine.OpenOrder(ctx, 1)
	require.NoError(t, err)
	lines := o.ActiveLines()
	require.Len(t, lines, 3)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Empty(t, lines[0].Memo, "merged line keeps its own memo")
	assert.Equal(t, 13.99, lines[1].UnitPrice)
	assert.Equal(t, "Size: Small", lines[2].Options)
}

func TestSendSeesEarlierEntriesOfSameBatch(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)

	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{
		entry(4, 9, 1, "", ""),
		entry(4, 9, 2, "", "extra sauce"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 1)

	o, _ := engine.OpenOrder(ctx, 1)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 3, o.Lines[0].Quantity)
}

func TestSendDoesNotMergeIntoCanceledLine(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)

	_, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", "")})
	require.NoError(t, err)
	o, _ := engine.OpenOrder(ctx, 1)
	require.NoError(t, engine.SaveEdits(ctx, 1, []overlay.Edit{{LineID: o.Lines[0].ID, Cancel: true}}))

	_, err = engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", "")})
	require.NoError(t, err)
	o, _ = engine.OpenOrder(ctx, 1)
	assert.Len(t, o.Lines, 2)
	assert.Len(t, o.ActiveLines(), 1)
}

func TestSendEmptyCart(t *testing.T) {
	engine := NewEngine(memstore.New(), nil)
	_, err := engine.SendToKitchen(context.Background(), 1, nil)
	assert.ErrorIs(t, err, order.ErrEmptyCart)
}

type failingStore struct {
	order.Store
	failInsertAfter int
	inserts         *int
}

var errDisk = errors.New("disk full")

func (f *failingStore) InsertLines(ctx context.Context, orderID int64, lines []order.Line) ([]int64, error) {
	*f.inserts++
	if *f.inserts > f.failInsertAfter {
		return nil, errDisk
	}
	return f.Store.InsertLines(ctx, orderID, lines)
}

func (f *failingStore) InTx(ctx context.Context, fn func(tx order.Store) error) error {
	return f.Store.InTx(ctx, func(tx order.Store) error {
		return fn(&failingStore{Store: tx, failInsertAfter: f.failInsertAfter, inserts: f.inserts})
	})
}

func TestSendFailureLeavesNoPartialOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	count := 0
	engine := NewEngine(&failingStore{Store: store, failInsertAfter: 1, inserts: &count}, nil)

	_, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", ""), entry(2, 6, 1, "", "")})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, order.IsStoreError(err))

	o, err := store.GetOpenOrder(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, o, "order creation rolled back with the failed insert")
}

func TestSaveEditsCancelIsStatusChange(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)
	_, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 2, "", ""), entry(2, 8, 3, "", "")})
	require.NoError(t, err)
	o, _ := engine.OpenOrder(ctx, 1)

	require.NoError(t, engine.SaveEdits(ctx, 1, []overlay.Edit{
		{LineID: o.Lines[0].ID, Cancel: true},
		{LineID: o.Lines[1].ID, Quantity: 1},
	}))

	o, _ = engine.OpenOrder(ctx, 1)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, order.LineCanceled, o.Lines[0].Status)
	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.Equal(t, 1, o.Lines[1].Quantity)
}

func TestSaveEditsRejectsForeignLines(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(memstore.New(), nil)
	err := engine.SaveEdits(ctx, 1, []overlay.Edit{{LineID: 42, Cancel: true}})
	assert.ErrorIs(t, err, order.ErrOrderNotEditable)
}

func TestCompletePayment(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	engine := NewEngine(store, nil)

	_, err := engine.CompletePayment(ctx, 1, time.Now())
	assert.ErrorIs(t, err, order.ErrNoOpenOrder)

	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", "")})
	require.NoError(t, err)
	paidAt := time.Date(2024, 5, 1, 20, 30, 0, 0, time.UTC)

	paid, err := engine.CompletePayment(ctx, 1, paidAt)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, paid.ID)
	assert.Equal(t, order.StatusPaid, paid.Status)
	require.NotNil(t, paid.CompletedAt)
	assert.True(t, paid.CompletedAt.Equal(paidAt))

	o, _ := engine.OpenOrder(ctx, 1)
	assert.Nil(t, o)
	err = engine.SaveEdits(ctx, 1, []overlay.Edit{{LineID: res.Inserted[0].ID, Cancel: true}})
	assert.ErrorIs(t, err, order.ErrOrderNotEditable)
}

func TestUpdateLineMemo(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(memstore.New(), nil)
	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 1, "", "")})
	require.NoError(t, err)

	line, err := engine.UpdateLineMemo(ctx, 1, res.Inserted[0].ID, "  well done ")
	require.NoError(t, err)
	assert.Equal(t, "well done", line.Memo)

	_, err = engine.UpdateLineMemo(ctx, 1, 999, "x")
	assert.ErrorIs(t, err, order.ErrLineNotFound)
}

func TestTableNameFallback(t *testing.T) {
	store := memstore.New()
	store.SetTableName(3, "Window")
	engine := NewEngine(store, nil)
	assert.Equal(t, "Window", engine.TableName(context.Background(), 3))
	assert.Equal(t, "12", engine.TableName(context.Background(), 12))
}

// roundTripStore keeps unit prices the way the postgres store does: numeric
// with order.PricePlaces decimals, read back as float64.
type roundTripStore struct {
	*memstore.Store
}

type roundTripTx struct {
	order.Store
}

func storedPrice(v float64) float64 {
	return utils.NumericToFloat64(utils.Float64ToNumeric(v, order.PricePlaces))
}

func (s roundTripStore) InTx(ctx context.Context, fn func(tx order.Store) error) error {
	return s.Store.InTx(ctx, func(tx order.Store) error {
		return fn(roundTripTx{tx})
	})
}

func (t roundTripTx) InsertLines(ctx context.Context, orderID int64, lines []order.Line) ([]int64, error) {
	stored := make([]order.Line, len(lines))
	for i, line := range lines {
		line.UnitPrice = storedPrice(line.UnitPrice)
		stored[i] = line
	}
	return t.Store.InsertLines(ctx, orderID, stored)
}

func (t roundTripTx) UpdateLine(ctx context.Context, line order.Line) error {
	line.UnitPrice = storedPrice(line.UnitPrice)
	return t.Store.UpdateLine(ctx, line)
}

func TestSendMergesOptionPricedLineAfterStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(roundTripStore{memstore.New()}, nil)

	base, extra := 10.1, 0.2
	price := base + extra
	for i := 0; i < 2; i++ {
		_, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, price, 1, "Size: Large", "")})
		require.NoError(t, err)
	}

	o, err := engine.OpenOrder(ctx, 1)
	require.NoError(t, err)
	lines := o.ActiveLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestSendMergesResolvedOptionsAfterStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(roundTripStore{memstore.New()}, nil)
	item := menu.Item{ID: 9, Name: "Udon", Price: 10.1, Groups: []menu.ModifierGroup{
		{Title: "Topping", MaxSelection: 1, Options: []menu.Option{{Name: "Egg", Price: 0.2}}},
	}}

	for i := 0; i < 2; i++ {
		descriptor, price, err := item.Resolve(menu.Selection{"Topping": {"Egg"}})
		require.NoError(t, err)
		c := cart.New()
		c.AddWithOptions(item.Line(), descriptor, price)
		_, err = engine.SendToKitchen(ctx, 1, c.Entries())
		require.NoError(t, err)
	}

	o, err := engine.OpenOrder(ctx, 1)
	require.NoError(t, err)
	lines := o.ActiveLines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.InDelta(t, 10.3, lines[0].UnitPrice, 1e-9)
}

func TestSendReportsMergedUnits(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(memstore.New(), nil)

	first, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 2, "", "")})
	require.NoError(t, err)
	assert.Empty(t, first.Merged)

	res, err := engine.SendToKitchen(ctx, 1, []cart.Entry{entry(1, 5, 3, "", "memo"), entry(2, 7, 1, "", "")})
	require.NoError(t, err)
	require.Len(t, first.Inserted, 1)
	assert.Equal(t, map[int64]int{first.Inserted[0].ID: 3}, res.Merged)
}
