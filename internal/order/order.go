package order

import (
	"context"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusPendingRemote Status = "PENDING_REMOTE"
	StatusPaid          Status = "PAID"
)

type LineStatus string

const (
	LineOrdered  LineStatus = "ORDERED"
	LineCanceled LineStatus = "CANCELED"
)

type Station string

const (
	StationKitchen  Station = "kitchen"
	StationSushiBar Station = "sushi_bar"
	StationBoth     Station = "both"
)

// ParseStation accepts both the wire values and the labels used on the menu
// editor ("Kitchen", "Sushi Bar", "Both"). Unknown values route to the kitchen.
func ParseStation(value string) Station {
	switch normalizeStation(value) {
	case "sushi_bar", "sushibar", "sushi":
		return StationSushiBar
	case "both":
		return StationBoth
	default:
		return StationKitchen
	}
}

func normalizeStation(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(v, " ", "_")
}

// MenuLine is the snapshot of a menu item taken when it is ordered.
type MenuLine struct {
	MenuItemID int64   `json:"menuItemId"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Options    string  `json:"options,omitempty"`
	Memo       string  `json:"memo,omitempty"`
	Quantity   int     `json:"quantity"`
	Station    Station `json:"station"`
}

func (m MenuLine) Amount() float64 {
	return m.UnitPrice * float64(m.Quantity)
}

// Line is a MenuLine committed to an order.
type Line struct {
	ID      int64      `json:"id"`
	OrderID int64      `json:"orderId"`
	Status  LineStatus `json:"status"`
	MenuLine
}

func (l Line) Active() bool {
	return l.Status == LineOrdered
}

type Order struct {
	ID          int64      `json:"id"`
	TableID     int64      `json:"tableId"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Lines       []Line     `json:"lines"`
}

// ActiveLines returns the ORDERED lines in their stored order.
func (o *Order) ActiveLines() []Line {
	if o == nil {
		return nil
	}
	out := make([]Line, 0, len(o.Lines))
	for _, line := range o.Lines {
		if line.Active() {
			out = append(out, line)
		}
	}
	return out
}

func (o *Order) Line(id int64) (Line, bool) {
	if o == nil {
		return Line{}, false
	}
	for _, line := range o.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return Line{}, false
}

// Store is the durable per-table order store. Every method is atomic on its
// own; InTx groups several calls into one unit that commits or rolls back as a
// whole.
type Store interface {
	GetOpenOrder(ctx context.Context, tableID int64) (*Order, error)
	CreateOrder(ctx context.Context, tableID int64, at time.Time) (int64, error)
	InsertLines(ctx context.Context, orderID int64, lines []Line) ([]int64, error)
	UpdateLine(ctx context.Context, line Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	MarkPaid(ctx context.Context, orderID int64, completedAt time.Time) error
	TableName(ctx context.Context, tableID int64) (string, error)
	InTx(ctx context.Context, fn func(tx Store) error) error
}
