package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CreditIntel/internal/domain/models"
	domrepo "CreditIntel/internal/domain/repository"
	xhttp "CreditIntel/pkg/http"
	applogger "CreditIntel/pkg/logger"
)

const (
	MessageSnapshot = "credit.snapshot"

	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultBufferSize   = 16
	maxReadBytes        = 512
)

// Message is the frame pushed to widget subscribers.
type Message struct {
	Type string                `json:"type"`
	Data models.CreditSnapshot `json:"data"`
}

type subscriber struct {
	conn     *websocket.Conn
	clientID int64 // 0 receives every client
	send     chan []byte
	once     sync.Once
	done     chan struct{}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub broadcasts persisted snapshots to WebSocket subscribers of /ws/credit.
// A subscriber that falls behind by more than its buffer is disconnected.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
	bufferSize   int
	l            *applogger.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Hub)

// WithAllowedOrigins restricts the Origin header; empty allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(h *Hub) { h.l = l }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: defaultPingInterval,
		writeWait:    defaultWriteWait,
		bufferSize:   defaultBufferSize,
		l:            applogger.Nop(),
		subs:         make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/credit", h.Serve)
}

// Serve upgrades the request. ?clientId= narrows the stream to one client.
func (h *Hub) Serve(c echo.Context) error {
	var clientID int64
	if v := c.QueryParam("clientId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_GT", "clientId", "clientId must be a positive integer", http.StatusBadRequest))
		}
		clientID = id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}

	sub := &subscriber{
		conn:     conn,
		clientID: clientID,
		send:     make(chan []byte, h.bufferSize),
		done:     make(chan struct{}),
	}
	if !h.add(sub) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeWait))
		_ = conn.Close()
		return nil
	}
	h.l.Debug("websocket subscriber joined", applogger.ClientID(clientID))

	go h.writeLoop(sub)
	go h.readLoop(sub)
	return nil
}

// PublishSnapshot implements repository.SnapshotPublisher.
func (h *Hub) PublishSnapshot(_ context.Context, snap models.CreditSnapshot) error {
	b, err := json.Marshal(Message{Type: MessageSnapshot, Data: snap})
	if err != nil {
		return fmt.Errorf("encode snapshot frame: %w", err)
	}

	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subs {
		if sub.clientID != 0 && sub.clientID != snap.ClientID {
			continue
		}
		select {
		case sub.send <- b:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.l.Warn("websocket subscriber too slow, disconnecting", applogger.ClientID(sub.clientID))
		h.remove(sub)
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
	h.wg.Wait()
	return nil
}

// add registers sub and reserves its two loops on the wait group while holding
// the lock, so Close either sees the reservation or rejects the subscriber.
func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub] = struct{}{}
	h.wg.Add(2)
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.stop()
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case b := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := sub.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		case <-sub.done:
			_ = sub.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeWait))
			return
		}
	}
}

// readLoop only consumes control frames; any read error ends the subscription.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.wg.Done()
	defer h.remove(sub)

	sub.conn.SetReadLimit(maxReadBytes)
	deadline := 2 * h.pingInterval
	_ = sub.conn.SetReadDeadline(time.Now().Add(deadline))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ domrepo.SnapshotPublisher = (*Hub)(nil)
