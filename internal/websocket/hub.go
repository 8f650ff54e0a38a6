package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/conneroisu/storefront/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 << 10

	sendBuffer = 16
)

// Options configures a Hub.
type Options struct {
	Origins OriginValidator

	// MessageRate and MessageBurst limit commands per connection.
	MessageRate  rate.Limit
	MessageBurst int

	Logger logging.Logger
}

// Hub tracks live connections per session.
//
// Invariants:
//   - clients access always protected by mu
//   - closed transitions from false to true exactly once
type Hub struct {
	origins OriginValidator
	limit   rate.Limit
	burst   int
	logger  logging.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once
}

// NewHub creates a hub. Origins is required.
func NewHub(opts Options) *Hub {
	if opts.Origins == nil {
		panic("websocket.Hub: origin validator cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.MessageRate == 0 {
		opts.MessageRate = 20
	}
	if opts.MessageBurst == 0 {
		opts.MessageBurst = 40
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		origins: opts.Origins,
		limit:   opts.MessageRate,
		burst:   opts.MessageBurst,
		logger:  opts.Logger.WithComponent("websocket"),
		clients: make(map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Serve upgrades the request and attaches the connection to target until
// either side goes away.
//
// Security Responses:
//   - 403 Forbidden: missing or disallowed Origin
//   - 503 Service Unavailable: hub shut down
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, target Target) {
	if h.isClosed() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" || !h.origins.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "WebSocket connection rejected: invalid origin",
			"origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin was validated above.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	events, unsubscribe := target.Subscribe()
	defer unsubscribe()

	c := &Client{
		conn:    conn,
		target:  target,
		send:    make(chan interface{}, sendBuffer),
		limiter: rate.NewLimiter(h.limit, h.burst),
		logger:  h.logger.With("session", target.ID(), "remote", r.RemoteAddr),
	}

	if !h.register(c) {
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}
	defer h.unregister(c)

	c.run(h.ctx, events)
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug(h.ctx, "WebSocket client connected", "session", c.target.ID(), "total", len(h.clients))

	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug(h.ctx, "WebSocket client disconnected", "session", c.target.ID(), "total", total)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountFor returns the number of live connections attached to a session.
func (h *Hub) CountFor(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.target.ID() == sessionID {
			n++
		}
	}

	return n
}

// Shutdown closes every connection and rejects new ones.
func (h *Hub) Shutdown() {
	h.shutdown.Do(func() {
		h.mu.Lock()
		h.closed = true
		clients := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.Unlock()

		h.cancel()
		for _, c := range clients {
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	})
}
