package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside-pos/internal/order"
)

func TestSentEvent(t *testing.T) {
	lines := []order.MenuLine{
		{MenuItemID: 3, Name: "Salmon Roll", UnitPrice: 12.99, Quantity: 2},
		{MenuItemID: 1, Name: "Miso Soup", UnitPrice: 4.5, Quantity: 1},
	}
	evt := SentEvent(7, 42, lines, time.Now())

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, EventOrderSent, evt.Type)
	assert.Equal(t, "PENDING", evt.Status)
	assert.InDelta(t, 30.48, evt.TotalPrice, 1e-9)
	require.Len(t, evt.Items, 2)
	assert.Equal(t, Item{MenuID: 3, MenuName: "Salmon Roll", Price: 12.99, Quantity: 2}, evt.Items[0])
}

func TestParseDriver(t *testing.T) {
	tests := []struct {
		in      string
		want    Driver
		wantErr bool
	}{
		{"", DriverNone, false},
		{"NATS", DriverNATS, false},
		{" amqp ", DriverAMQP, false},
		{"http", DriverHTTP, false},
		{"kafka", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDriver(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownDriver)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestHTTPPublisherCreatesOrderThenItems(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var items []Item
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/orders":
			var body remoteOrder
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "PENDING", body.Status)
			assert.Equal(t, int64(7), body.TableID)
			body.ID = 900
			_ = json.NewEncoder(w).Encode(body)
		case "/api/orders/900/items":
			_ = json.NewDecoder(r.Body).Decode(&items)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	pub, err := NewHTTPPublisher(srv.URL+"/", time.Second)
	require.NoError(t, err)
	evt := SentEvent(7, 1, []order.MenuLine{{MenuItemID: 3, Name: "Salmon Roll", UnitPrice: 12.99, Quantity: 2}}, time.Now())

	require.NoError(t, pub.Publish(context.Background(), evt))
	assert.Equal(t, []string{"POST /api/orders", "POST /api/orders/900/items"}, paths)
	require.Len(t, items, 1)
	assert.Equal(t, int64(900), items[0].OrderID)
}

func TestHTTPPublisherIgnoresPaidEvents(t *testing.T) {
	pub, err := NewHTTPPublisher("http://127.0.0.1:1", time.Second)
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(context.Background(), PaidEvent(order.Order{ID: 1}, 10)))
}

func TestNewPublisherNone(t *testing.T) {
	pub, err := NewPublisher(Options{Driver: DriverNone})
	require.NoError(t, err)
	assert.NoError(t, pub.Publish(context.Background(), Event{}))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	seen   chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, evt Event) error {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	p.seen <- struct{}{}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestWorkerDropsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("remote down"), seen: make(chan struct{}, 2)}
	w := NewWorker(pub, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	assert.True(t, w.Submit(Event{ID: "a"}))
	assert.True(t, w.Submit(Event{ID: "b"}))
	for i := 0; i < 2; i++ {
		select {
		case <-pub.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("event not published")
		}
	}
	cancel()
	w.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.events, 2, "failed events are not retried")
}

func TestWorkerSubmitWhenFull(t *testing.T) {
	w := NewWorker(nopPublisher{}, 1, nil)
	assert.True(t, w.Submit(Event{ID: "a"}))
	assert.False(t, w.Submit(Event{ID: "b"}))
}
