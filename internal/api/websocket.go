package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/hassbridge/internal/infrastructure/config"
	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hassbridge/internal/rpc"
)

// WebSocket constants.
const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsMaxInFlight bounds concurrent dispatches per connection.
	wsMaxInFlight = 16

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// Hub tracks WebSocket connections so they can be counted and closed on shutdown.
type Hub struct {
	cfg        config.WebSocketConfig
	logger     *logging.Logger
	dispatcher *rpc.Dispatcher
	clients    map[*WSClient]struct{}
	mu         sync.RWMutex
}

// WSClient is one WebSocket connection. Every text frame it receives is a
// request envelope; every frame it sends is a response envelope.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// sem holds one slot per in-flight dispatch.
	sem      chan struct{}
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub dispatching through d.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, d *rpc.Dispatcher) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		dispatcher: d,
		clients:    make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub and closes its send channel.
// Call it only after every goroutine sending on the channel has returned.
// A second call for the same client is a no-op.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll cancels every client and closes its connection. Each readPump
// then waits for its in-flight dispatches and unregisters the client, which
// closes the send channel once nothing can send on it.
func (h *Hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.cancel()
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

func (h *Hub) pingInterval() time.Duration {
	if h.cfg.PingInterval <= 0 {
		return defaultPingInterval
	}
	return time.Duration(h.cfg.PingInterval) * time.Second
}

func (h *Hub) pongTimeout() time.Duration {
	if h.cfg.PongTimeout <= 0 {
		return defaultPongTimeout
	}
	return time.Duration(h.cfg.PongTimeout) * time.Second
}

// upgrader rejects cross-origin handshakes the CORS policy would refuse.
func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeInternalError(w, "websocket hub not running")
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &WSClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		sem:    make(chan struct{}, wsMaxInFlight),
		ctx:    ctx,
		cancel: cancel,
	}

	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump reads request frames and dispatches each on its own goroutine.
// When the connection ends it waits for in-flight dispatches before
// closing the send channel.
func (c *WSClient) readPump() {
	defer func() {
		c.cancel()
		c.inflight.Wait()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	}
	pingInterval := c.hub.pingInterval()
	pongWait := c.hub.pongTimeout()
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		select {
		case c.sem <- struct{}{}:
		case <-c.ctx.Done():
			return
		}
		c.inflight.Add(1)
		go func() {
			defer func() {
				<-c.sem
				c.inflight.Done()
			}()
			c.handleFrame(message)
		}()
	}
}

// writePump writes replies and keepalive pings to the connection.
// It is the only writer.
func (c *WSClient) writePump() {
	pingInterval := c.hub.pingInterval()
	pongWait := c.hub.pongTimeout()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes and dispatches one frame and queues the reply.
func (c *WSClient) handleFrame(data []byte) {
	var resp *rpc.Response
	req, err := rpc.DecodeRequest(data)
	if err != nil {
		resp = rpc.DecodeFailure(req, err)
	} else {
		ctx := rpc.ContextWithRequestID(c.ctx, uuid.NewString())
		resp = c.hub.dispatcher.Dispatch(ctx, req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		c.hub.logger.Error("failed to marshal websocket reply", "error", err)
		return
	}
	c.enqueue(out)
}

// enqueue hands a reply to writePump, waiting while the buffer is full.
// The reply is dropped once the connection is shutting down.
func (c *WSClient) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}
