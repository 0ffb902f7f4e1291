package middleware

import (
	"bufio"
	"errors"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

// Hijack keeps websocket upgrades working behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// latencyRing keeps the last N samples of one route.
type latencyRing struct {
	samples []int64
	next    int
}

func (l *latencyRing) add(value int64, size int) {
	if len(l.samples) < size {
		l.samples = append(l.samples, value)
		return
	}
	l.samples[l.next] = value
	l.next = (l.next + 1) % size
}

type latencyTracker struct {
	mu     sync.Mutex
	size   int
	routes map[string]*latencyRing
}

func newLatencyTracker(size int) *latencyTracker {
	return &latencyTracker{size: size, routes: make(map[string]*latencyRing)}
}

// record adds a sample and returns the route's p50 and p95.
func (t *latencyTracker) record(route string, ms int64) (int64, int64) {
	t.mu.Lock()
	ring, ok := t.routes[route]
	if !ok {
		ring = &latencyRing{}
		t.routes[route] = ring
	}
	ring.add(ms, t.size)
	values := append([]int64(nil), ring.samples...)
	t.mu.Unlock()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return percentile(values, 0.5), percentile(values, 0.95)
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// AccessLog writes one structured line per request with rolling per-route
// latency percentiles.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	tracker := newLatencyTracker(200)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := r.URL.Path
			tableID := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					route = pattern
				}
				tableID = rc.URLParam("tableId")
			}
			p50, p95 := tracker.record(r.Method+" "+route, duration.Milliseconds())

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.String("requestId", GetRequestID(r.Context())),
				zap.Int("status", status),
				zap.Int("bytes", rec.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
			}
			if tableID != "" {
				fields = append(fields, zap.String("tableId", tableID))
			}

			switch {
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		})
	}
}
