// Package mirror replicates committed orders to the remote back office.
// Delivery is at most once: failed publishes are logged and dropped, and
// nothing here ever feeds back into local state.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableside-pos/internal/order"
)

const (
	EventOrderSent  = "order.sent"
	EventOrderPaid  = "order.paid"
	remoteNewStatus = "PENDING"
)

// Item is the remote representation of one sent line.
type Item struct {
	OrderID  int64   `json:"orderId"`
	MenuID   int64   `json:"menuId"`
	MenuName string  `json:"menuName"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	TableID      int64     `json:"tableId"`
	LocalOrderID int64     `json:"localOrderId"`
	Status       string    `json:"status"`
	TotalPrice   float64   `json:"totalPrice"`
	Items        []Item    `json:"items,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// SentEvent describes lines just sent to the kitchen. Remote orders start as
// PENDING; the remote side never sees the local OPEN status.
func SentEvent(tableID, localOrderID int64, lines []order.MenuLine, at time.Time) Event {
	items := make([]Item, 0, len(lines))
	var total float64
	for _, line := range lines {
		items = append(items, Item{
			MenuID:   line.MenuItemID,
			MenuName: line.Name,
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
		total += line.Amount()
	}
	return Event{
		ID:           uuid.NewString(),
		Type:         EventOrderSent,
		TableID:      tableID,
		LocalOrderID: localOrderID,
		Status:       remoteNewStatus,
		TotalPrice:   total,
		Items:        items,
		OccurredAt:   at.UTC(),
	}
}

func PaidEvent(paid order.Order, total float64) Event {
	at := time.Now()
	if paid.CompletedAt != nil {
		at = *paid.CompletedAt
	}
	return Event{
		ID:           uuid.NewString(),
		Type:         EventOrderPaid,
		TableID:      paid.TableID,
		LocalOrderID: paid.ID,
		Status:       string(order.StatusPaid),
		TotalPrice:   total,
		OccurredAt:   at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type Driver string

const (
	DriverNone Driver = "none"
	DriverHTTP Driver = "http"
	DriverAMQP Driver = "amqp"
	DriverNATS Driver = "nats"
)

var ErrUnknownDriver = errors.New("unknown mirror driver")

func ParseDriver(value string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(value))); d {
	case "", DriverNone:
		return DriverNone, nil
	case DriverHTTP, DriverAMQP, DriverNATS:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, value)
	}
}

type Options struct {
	Driver  Driver
	URL     string
	Timeout time.Duration
}

// NewPublisher connects the configured driver.
func NewPublisher(opts Options) (Publisher, error) {
	switch opts.Driver {
	case DriverNone, "":
		return nopPublisher{}, nil
	case DriverHTTP:
		return NewHTTPPublisher(opts.URL, opts.Timeout)
	case DriverAMQP:
		return NewAMQPPublisher(opts.URL)
	case DriverNATS:
		return NewNATSPublisher(opts.URL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }
