// Package ws streams box and channel events to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmylchreest/skyrad/internal/events"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	readLimit    = 512
	queueDepth   = 64
	backlog      = 256
)

// envelope is an event encoded once, with the fields the hub filters on.
type envelope struct {
	typ  events.EventType
	box  string
	data []byte
}

// subscriber is one connected client and its outbound queue.
type subscriber struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte
	sub   Subscription
}

// Hub fans events from the bus out to subscribers. The subscriber set is
// owned by the Run goroutine.
type Hub struct {
	logger  *slog.Logger
	inbox   chan envelope
	join    chan *subscriber
	leave   chan *subscriber
	done    chan struct{}
	clients atomic.Int64
	unsub   func()
}

// NewHub subscribes a hub to bus. Nothing is delivered until Run starts.
func NewHub(logger *slog.Logger, bus *events.Bus) *Hub {
	h := &Hub{
		logger: logger,
		inbox:  make(chan envelope, backlog),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		done:   make(chan struct{}),
	}
	h.unsub = bus.Subscribe(h.enqueue)
	return h
}

// enqueue runs on the publisher's goroutine and must not block it.
func (h *Hub) enqueue(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("ws: cannot encode event", "type", e.Type, "error", err)
		return
	}
	select {
	case h.inbox <- envelope{typ: e.Type, box: events.BoxID(e), data: data}:
	default:
		h.logger.Warn("ws: backlog full, dropping event", "type", e.Type)
	}
}

// Run delivers events until ctx is done, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[*subscriber]struct{})
	drop := func(s *subscriber, reason string) {
		if _, ok := subs[s]; !ok {
			return
		}
		delete(subs, s)
		close(s.queue)
		h.clients.Store(int64(len(subs)))
		h.logger.Info("ws: subscriber removed", "reason", reason, "clients", len(subs))
	}

	defer func() {
		h.unsub()
		close(h.done)
		for s := range subs {
			drop(s, "shutdown")
		}
		h.logger.Info("ws: hub stopped")
	}()
	h.logger.Info("ws: hub started")

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.join:
			subs[s] = struct{}{}
			h.clients.Store(int64(len(subs)))
			h.logger.Info("ws: subscriber added", "clients", len(subs), "types", s.sub.Types, "boxes", s.sub.Boxes)
		case s := <-h.leave:
			drop(s, "closed")
		case env := <-h.inbox:
			for s := range subs {
				if !s.sub.Wants(env.typ, env.box) {
					continue
				}
				select {
				case s.queue <- env.data:
				default:
					drop(s, "too slow")
				}
			}
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	return int(h.clients.Load())
}

// attach hands a new subscriber to Run. It reports false once the hub has
// stopped.
func (h *Hub) attach(s *subscriber) bool {
	select {
	case h.join <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(s *subscriber) {
	select {
	case h.leave <- s:
	case <-h.done:
	}
}

func (h *Hub) newSubscriber(conn *websocket.Conn, sub Subscription) *subscriber {
	return &subscriber{hub: h, conn: conn, queue: make(chan []byte, queueDepth), sub: sub}
}

// writeLoop sends queued events and keepalive pings. A closed queue ends
// the connection with a close frame.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "skyrad event stream closed"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only services control frames; the stream is one-way.
func (s *subscriber) readLoop() {
	defer func() {
		s.hub.detach(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("ws: subscriber read failed", "error", err)
			}
			return
		}
	}
}
