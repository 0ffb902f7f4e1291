package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"tableside-pos/internal/queue"
)

// HTTPPublisher replays events against the back office REST API: one
// POST /api/orders, then POST /api/orders/{id}/items with the lines.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPublisher(baseURL string, timeout time.Duration) (*HTTPPublisher, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mirror url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPublisher{baseURL: baseURL, client: &http.Client{Timeout: timeout}}, nil
}

type remoteOrder struct {
	ID         int64   `json:"id,omitempty"`
	TableID    int64   `json:"tableId"`
	Status     string  `json:"status"`
	TotalPrice float64 `json:"totalPrice"`
}

func (p *HTTPPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.Type != EventOrderSent {
		return nil
	}
	var created remoteOrder
	err := p.postJSON(ctx, "/api/orders", remoteOrder{TableID: evt.TableID, Status: evt.Status}, &created)
	if err != nil {
		return fmt.Errorf("create remote order: %w", err)
	}
	if created.ID == 0 {
		return errors.New("create remote order: response has no id")
	}

	items := make([]Item, len(evt.Items))
	for i, item := range evt.Items {
		item.OrderID = created.ID
		items[i] = item
	}
	if err := p.postJSON(ctx, fmt.Sprintf("/api/orders/%d/items", created.ID), items, nil); err != nil {
		return fmt.Errorf("add remote order items: %w", err)
	}
	return nil
}

func (p *HTTPPublisher) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *HTTPPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// AMQPPublisher publishes events to the orders topic exchange with the event
// type as routing key.
type AMQPPublisher struct {
	qc *queue.Client
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	qc, err := queue.New(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	if err := queue.EnsureOrdersTopology(qc); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("declare orders topology: %w", err)
	}
	return &AMQPPublisher{qc: qc}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	return p.qc.PublishJSON(ctx, queue.OrdersExchange, evt.Type, evt)
}

func (p *AMQPPublisher) Close() error {
	return p.qc.Close()
}

const natsSubjectPrefix = "tableside."

// NATSPublisher publishes events on tableside.<event type>.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("tableside-pos"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(natsSubjectPrefix+evt.Type, body)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
