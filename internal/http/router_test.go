package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tableside-pos/internal/auth"
	"tableside-pos/internal/config"
	"tableside-pos/internal/http/handlers"
	"tableside-pos/internal/layout"
	"tableside-pos/internal/menu"
	"tableside-pos/internal/printer"
	"tableside-pos/internal/rates"
	"tableside-pos/internal/reconcile"
	"tableside-pos/internal/session"
	"tableside-pos/internal/store/memstore"
)

type nopSpooler struct{ jobs int }

func (n *nopSpooler) Enqueue(kind printer.JobKind, tableID int64, text string) (string, error) {
	n.jobs++
	return fmt.Sprintf("job-%d", n.jobs), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type testServer struct {
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, cfg config.Config, layoutClient *layout.Client) *testServer {
	t.Helper()
	catalog := rates.NewCatalog(rates.DefaultOptions())
	sessions := session.NewManager(session.Deps{
		Engine:   reconcile.NewEngine(memstore.New(), nil),
		Rates:    catalog,
		Menu:     menu.Default(),
		Spooler:  &nopSpooler{},
		Business: session.Business{Name: "Sakura"},
	})
	catalog.OnChange(sessions.HandleRatesChange)
	h := &handlers.Handler{
		Logger:   zap.NewNop(),
		Config:   cfg,
		Sessions: sessions,
		Rates:    catalog,
		Menu:     menu.Default(),
		Layout:   layoutClient,
	}
	return &testServer{handler: NewRouter(h, nil)}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeView(t *testing.T, raw json.RawMessage) session.View {
	t.Helper()
	var v session.View
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)
	rec, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTableFlow(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)

	rec, env := s.do(t, http.MethodPost, "/api/tables/2/cart/items", map[string]any{"menuItemId": 3})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	view := decodeView(t, env.Data)
	require.Len(t, view.Cart, 1)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/cart/increment", map[string]any{
		"menuItemId": view.Cart[0].MenuItemID,
		"unitPrice":  view.Cart[0].UnitPrice,
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Equal(t, 2, decodeView(t, env.Data).Cart[0].Quantity)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/send", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var sent struct {
		OrderID int64        `json:"orderId"`
		Created bool         `json:"created"`
		View    session.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.True(t, sent.Created)
	require.Len(t, sent.View.Lines, 1)
	assert.Empty(t, sent.View.Cart)
	lineID := sent.View.Lines[0].ID

	rec, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/tables/2/lines/%d/decrement", lineID), nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	view = decodeView(t, env.Data)
	assert.Equal(t, 1, view.Lines[0].Quantity)
	assert.Len(t, view.Edits, 1)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PENDING_CHANGES", env.Error)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/changes/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Empty(t, decodeView(t, env.Data).Edits)

	rec, _ = s.do(t, http.MethodGet, "/api/tables/2/receipt.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/receipt/print", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code, env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/tables/2/pay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_OPEN_ORDER", env.Error)
}

func TestSendEmptyCart(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)
	rec, env := s.do(t, http.MethodPost, "/api/tables/1/send", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_CART", env.Error)
}

func TestCartAddValidation(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)

	rec, env := s.do(t, http.MethodPost, "/api/tables/1/cart/items", map[string]any{"menuItemId": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SELECTION", env.Error)

	rec, env = s.do(t, http.MethodPost, "/api/tables/1/cart/items", map[string]any{
		"menuItemId": 4,
		"selections": map[string][]string{"Spice": {"Hot"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Equal(t, "Spice: Hot", decodeView(t, env.Data).Cart[0].Options)

	rec, env = s.do(t, http.MethodPost, "/api/tables/1/cart/items", map[string]any{"menuItemId": 404})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MENU_ITEM_NOT_FOUND", env.Error)

	rec, _ = s.do(t, http.MethodGet, "/api/tables/abc/session", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRatesSelection(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)

	rec, env := s.do(t, http.MethodPut, "/api/rates/selection", map[string]any{"taxState": "ca", "gratuityPercent": 18})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var rv struct {
		Selected struct {
			TaxState        string  `json:"taxState"`
			GratuityPercent float64 `json:"gratuityPercent"`
		} `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.Equal(t, "CA", rv.Selected.TaxState)
	assert.InDelta(t, 18.0, rv.Selected.GratuityPercent, 1e-9)

	rec, env = s.do(t, http.MethodPut, "/api/rates/selection", map[string]any{"discountPercent": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RATE_OUT_OF_RANGE", env.Error)

	rec, env = s.do(t, http.MethodPut, "/api/rates/selection", map[string]any{"taxState": "ZZ"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/rates/gratuity", map[string]any{"percent": 22})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	rec, _ = s.do(t, http.MethodGet, "/api/rates", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTerminalAuth(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production", TerminalJWTSecret: "s3cret"}, nil)

	rec, env := s.do(t, http.MethodGet, "/api/menu", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error)

	token, err := auth.IssueTerminalToken("s3cret", "tablet-9", auth.RoleServer, time.Hour)
	require.NoError(t, err)
	s.token = token

	rec, _ = s.do(t, http.MethodGet, "/api/menu", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPut, "/api/layout/tables/1", map[string]any{"name": "T1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error)

	rec, _ = s.do(t, http.MethodPost, "/api/rates/discounts", map[string]any{"percent": 12})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLayoutUpdate(t *testing.T) {
	s := newTestServer(t, config.Config{Env: "production"}, nil)
	rec, env := s.do(t, http.MethodPut, "/api/layout/tables/1", map[string]any{"name": "T1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LAYOUT_NOT_CONFIGURED", env.Error)

	current := layout.Table{ID: 1, Name: "Window", OffsetX: 5, Version: 7}
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(current)
		case http.MethodPut:
			var in layout.Table
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.Version != current.Version {
				w.WriteHeader(http.StatusConflict)
				return
			}
			in.Version++
			current = in
			_ = json.NewEncoder(w).Encode(current)
		}
	}))
	defer remote.Close()

	s = newTestServer(t, config.Config{Env: "production"}, layout.NewClient(remote.URL, time.Second))

	rec, env = s.do(t, http.MethodPut, "/api/layout/tables/1", map[string]any{"name": "Window", "offsetX": 40, "version": 3})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var res struct {
		Table    layout.Table `json:"table"`
		Conflict bool         `json:"conflict"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Conflict)
	assert.Equal(t, 5.0, res.Table.OffsetX)

	rec, env = s.do(t, http.MethodPut, "/api/layout/tables/1", map[string]any{"name": "Window", "offsetX": 40, "version": 7})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Conflict)
	assert.Equal(t, int64(8), res.Table.Version)
}
