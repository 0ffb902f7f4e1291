package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tableside-pos/internal/auth"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestTerminalAuthRejectsMissingToken(t *testing.T) {
	h := TerminalAuth("s3cret")(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTerminalAuthAcceptsHeaderAndQuery(t *testing.T) {
	token, err := auth.IssueTerminalToken("s3cret", "tablet-1", auth.RoleServer, time.Hour)
	require.NoError(t, err)

	var seen *AuthContext
	h := TerminalAuth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAuthContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "tablet-1", seen.TerminalID)

	seen = nil
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws/tables/1?token="+token, nil))
	require.NotNil(t, seen)
	assert.Equal(t, auth.RoleServer, seen.Role)
}

func TestTerminalAuthDisabledRunsAsManager(t *testing.T) {
	var seen *AuthContext
	h := TerminalAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAuthContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, seen)
	assert.Equal(t, auth.RoleManager, seen.Role)
}

func TestRequire(t *testing.T) {
	token, err := auth.IssueTerminalToken("s3cret", "tablet-1", auth.RoleServer, time.Hour)
	require.NoError(t, err)
	h := TerminalAuth("s3cret")(Require(auth.PermLayout)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodPut, "/api/layout/tables/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	Require(auth.PermLayout)(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}

func TestAccessLogRecordsRoute(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(AccessLog(zap.New(core)))
	r.Get("/api/tables/{tableId}/session", okHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tables/4/session", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/tables/{tableId}/session", fields["route"])
	assert.Equal(t, "4", fields["tableId"])
	assert.Equal(t, int64(http.StatusNoContent), fields["status"])
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, int64(0), percentile(nil, 0.5))
	values := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(5), percentile(values, 0.5))
	assert.Equal(t, int64(10), percentile(values, 0.95))
}
