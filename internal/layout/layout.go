// Package layout talks to the remote floor plan service. Table updates are
// optimistically versioned; a stale version is rejected with 409.
package layout

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
)

type Table struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Version int64   `json:"version"`
}

// VersionConflict is returned when the server holds a newer version of the
// table. Latest is the server copy fetched after the rejection.
type VersionConflict struct {
	Latest Table
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("table %d changed remotely (version %d)", e.Latest.ID, e.Latest.Version)
}

var ErrNotFound = errors.New("table not found")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Get(ctx context.Context, id int64) (Table, error) {
	var t Table
	status, err := c.do(ctx, http.MethodGet, id, nil, &t)
	if err != nil {
		return Table{}, err
	}
	if status == http.StatusNotFound {
		return Table{}, ErrNotFound
	}
	if status != http.StatusOK {
		return Table{}, fmt.Errorf("get table %d: unexpected status %d", id, status)
	}
	return t, nil
}

// Update sends t with its current version. On 409 the latest server copy is
// fetched and returned inside a *VersionConflict.
func (c *Client) Update(ctx context.Context, t Table) (Table, error) {
	var saved Table
	status, err := c.do(ctx, http.MethodPut, t.ID, t, &saved)
	if err != nil {
		return Table{}, err
	}
	switch status {
	case http.StatusOK:
		return saved, nil
	case http.StatusConflict:
		latest, err := c.Get(ctx, t.ID)
		if err != nil {
			return Table{}, fmt.Errorf("refetch after conflict: %w", err)
		}
		return Table{}, &VersionConflict{Latest: latest}
	case http.StatusNotFound:
		return Table{}, ErrNotFound
	default:
		return Table{}, fmt.Errorf("update table %d: unexpected status %d", t.ID, status)
	}
}

// Reapply decides what to send after a conflict, given the server copy and
// the rejected local edit. Returning false keeps the server copy.
type Reapply func(latest, mine Table) (Table, bool)

// KeepLatest adopts the server copy.
func KeepLatest(latest, mine Table) (Table, bool) {
	return latest, false
}

// KeepGeometry moves the local position and size onto the latest version.
func KeepGeometry(latest, mine Table) (Table, bool) {
	next := latest
	next.OffsetX, next.OffsetY = mine.OffsetX, mine.OffsetY
	next.Width, next.Height = mine.Width, mine.Height
	return next, true
}

// UpdateWithRefetch updates t and resolves version conflicts with reapply,
// giving up after attempts tries. The returned table is what the caller
// should store locally.
func (c *Client) UpdateWithRefetch(ctx context.Context, t Table, reapply Reapply, attempts int) (Table, error) {
	if reapply == nil {
		reapply = KeepLatest
	}
	if attempts < 1 {
		attempts = 1
	}
	current := t
	var lastConflict *VersionConflict
	for i := 0; i < attempts; i++ {
		saved, err := c.Update(ctx, current)
		if err == nil {
			return saved, nil
		}
		if !errors.As(err, &lastConflict) {
			return Table{}, err
		}
		next, retry := reapply(lastConflict.Latest, t)
		if !retry {
			return lastConflict.Latest, nil
		}
		current = next
	}
	return Table{}, lastConflict
}

func (c *Client) do(ctx context.Context, method string, id int64, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/api/tables/%d", c.baseURL, id), reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
