package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
//   - Hub tracks connected clients and fans out pre-serialized frames.
//   - Each client has its own write pump; a client whose send buffer fills is
//     disconnected instead of stalling the others.
//   - RunBroadcaster turns reducer broadcasts into JSON frames.
//
// Frames are JSON text messages with an envelope {type, ts, data}. The first
// frame after connect is "state_init", produced through the game loop.
// ============================================================================

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// wsOutboundEvent is a typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

func marshalEnvelope(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int
	// BroadcastBuf is the hub inbound queue size. Zero means 128.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 32
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, cfg.BroadcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    cfg.SendBuf,
	}
}

// Run processes hub events until ctx is canceled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			if c.closed.Load() {
				// Dropped before the hub saw it.
				continue
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			for _, c := range h.fanOut(msg) {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// fanOut queues msg on every client and returns those whose buffer was full.
func (h *Hub) fanOut(msg []byte) (slow []*Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	// Closing send tells writePump to exit.
	c.closeSend()

	h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
}

// BroadcastBytes enqueues a serialized frame. It drops the frame if the hub
// queue is full.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed atomic.Bool

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) closeSend() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts a websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, what string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+what+")", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and keepalive pings.
// It exits on write error or when send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump discards incoming messages; it exists to process control frames
// and notice disconnects. It unregisters the client on exit.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// Snapshot requests go through the game loop.
	events chan<- Event
}

// NewServer constructs the state server. Start Hub().Run and RunBroadcaster
// alongside it.
func NewServer(logger *slog.Logger, events chan<- Event, cfg HubConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register first so no broadcast after the snapshot is missed.
	s.hub.register <- client

	// The pumps outlive the handler; their lifetime is the connection's.
	go client.writePump()
	go client.readPump()

	snap, err := requestSnapshot(r.Context(), s.events)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		s.dropClient(client)
		return
	}

	msg, err := marshalEnvelope(wsOutboundEvent{
		Type: "state_init",
		Data: toWireSnapshot(snap),
	})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		s.dropClient(client)
		return
	}

	if client.closed.Load() {
		return
	}
	select {
	case client.send <- msg:
	default:
		s.dropClient(client)
	}
}

// dropClient disconnects a client that never got its state_init. Live frames
// without the initial snapshot are useless to it.
func (s *Server) dropClient(c *Client) {
	c.closeSend()
	s.hub.unregister <- c
}

// ============================================================================
// Broadcaster
// ============================================================================

// wsOverrunCoalesceWindow bounds how often tick_overrun frames are sent.
// Overruns arrive in bursts when the host stalls; missed counts are summed.
const wsOverrunCoalesceWindow = 250 * time.Millisecond

// RunBroadcaster reads reducer broadcasts, marshals them, and hands them to
// the hub. Intended to run as a single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var (
		pendingMissed uint64
		pendingAt     time.Time
		flushTimer    *time.Timer
		flushC        <-chan time.Time
	)

	emit := func(ev wsOutboundEvent) {
		msg, err := marshalEnvelope(ev)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushOverruns := func() {
		if pendingMissed == 0 {
			return
		}
		emit(wsOutboundEvent{
			Type: "tick_overrun",
			Data: wsTickOverrunData{Missed: pendingMissed},
			At:   pendingAt,
		})
		pendingMissed = 0
		if flushTimer != nil {
			flushTimer.Stop()
			flushTimer = nil
			flushC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushOverruns()
			return

		case <-flushC:
			flushTimer = nil
			flushC = nil
			flushOverruns()

		case b, ok := <-src:
			if !ok {
				flushOverruns()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			if o, isOverrun := b.(BroadcastTickOverrun); isOverrun {
				pendingMissed += o.Missed
				pendingAt = o.At
				if flushTimer == nil {
					flushTimer = time.NewTimer(wsOverrunCoalesceWindow)
					flushC = flushTimer.C
				}
				continue
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastTurnChanged:
		return wsOutboundEvent{
			Type: "turn_changed",
			Data: wsTurnChangedData{From: ev.From.String(), To: ev.To.String()},
			At:   ev.At,
		}, true

	case BroadcastTurnOutcome:
		return wsOutboundEvent{
			Type: "turn_outcome",
			Data: wsTurnOutcomeData{
				Player:  ev.Player,
				Outcome: ev.Outcome.String(),
				Input:   ev.Input,
				Length:  ev.Length,
				Cursor:  ev.Cursor,
			},
			At: ev.At,
		}, true

	case BroadcastInputConfirmed:
		return wsOutboundEvent{
			Type: "input_confirmed",
			Data: wsInputConfirmedData{Player: ev.Player, Input: ev.Input, Level: ev.Level.String()},
			At:   ev.At,
		}, true

	case BroadcastIndicatorChanged:
		return wsOutboundEvent{
			Type: "indicator_changed",
			Data: wsIndicatorChangedData{Indicator: ev.ID.String(), On: ev.On},
			At:   ev.At,
		}, true

	case BroadcastTickOverrun:
		return wsOutboundEvent{
			Type: "tick_overrun",
			Data: wsTickOverrunData{Missed: ev.Missed},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}

// broadcastType names a broadcast for logging.
func broadcastType(b StateBroadcast) string {
	if ev, ok := convertBroadcast(b); ok {
		return ev.Type
	}
	return "unknown"
}
