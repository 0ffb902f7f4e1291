package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tableside-pos/internal/printer"
	"tableside-pos/internal/rates"
)

// Manager hands out exactly one live session per table.
type Manager struct {
	deps *Deps

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Manager{deps: &deps, sessions: make(map[int64]*Session)}
}

// Open returns the table's session, loading it on first use.
func (m *Manager) Open(ctx context.Context, tableID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[tableID]; ok {
		return s, nil
	}
	s := newSession(tableID, m.deps)
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	m.sessions[tableID] = s
	m.deps.Logger.Debug("session opened", zap.Int64("tableId", tableID))
	return s, nil
}

func (m *Manager) Get(tableID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tableID]
	return s, ok
}

// Close drops the session. Unsent cart entries and unsaved edits are lost.
func (m *Manager) Close(tableID int64) bool {
	m.mu.Lock()
	s, ok := m.sessions[tableID]
	delete(m.sessions, tableID)
	m.mu.Unlock()
	if ok {
		s.Discard()
		m.deps.Logger.Debug("session closed", zap.Int64("tableId", tableID))
	}
	return ok
}

func (m *Manager) Tables() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HandlePrintResult surfaces a finished print job on its table's session.
func (m *Manager) HandlePrintResult(r printer.JobResult) {
	if s, ok := m.Get(r.TableID); ok {
		s.setStatus(r.Status)
	}
}

// HandleRatesChange re-renders every session after a rate selection change.
func (m *Manager) HandleRatesChange(rates.Selection) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()
	for _, s := range open {
		s.broadcast()
	}
}
