package ws

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tableside-pos/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	clientQueueLen = 16
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Server struct {
	Logger    *zap.Logger
	Sessions  *session.Manager
	Heartbeat time.Duration

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

func New(sessions *session.Manager, logger *zap.Logger, heartbeat time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Server{
		Logger:    logger,
		Sessions:  sessions,
		Heartbeat: heartbeat,
		clients:   make(map[int64]map[*client]struct{}),
	}
}

// client owns one connection. Views are queued and written by a single
// writer goroutine; a client that falls behind loses intermediate views.
type client struct {
	conn *websocket.Conn
	send chan Message
	done chan struct{}
	once sync.Once
}

func (c *client) push(msg Message) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Drop the oldest queued view so the newest one gets through.
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) register(tableID int64, c *client) func() {
	s.mu.Lock()
	if s.clients[tableID] == nil {
		s.clients[tableID] = make(map[*client]struct{})
	}
	s.clients[tableID][c] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		set := s.clients[tableID]
		delete(set, c)
		if len(set) == 0 {
			delete(s.clients, tableID)
		}
		s.mu.Unlock()
	}
}

// Clients returns how many connections watch the table.
func (s *Server) Clients(tableID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[tableID])
}

// TableWS streams the table's session view: a snapshot on connect, then one
// message per change.
func (s *Server) TableWS(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "tableId")), 10, 64)
	if err != nil || tableID <= 0 {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return
	}
	sess, err := s.Sessions.Open(r.Context(), tableID)
	if err != nil {
		s.Logger.Warn("open session for websocket failed", zap.Int64("tableId", tableID), zap.Error(err))
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan Message, clientQueueLen), done: make(chan struct{})}
	defer c.close()
	unregister := s.register(tableID, c)
	defer unregister()

	c.push(Message{Type: "session.state", Data: sess.View()})
	cancel := sess.Subscribe(func(v session.View) {
		c.push(Message{Type: "session.state", Data: v})
	})
	defer cancel()

	pongWait := s.Heartbeat * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.Heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
