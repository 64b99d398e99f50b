package console

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"playback-console/internal/platform/logger"
	"playback-console/internal/platform/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewer is one websocket connection receiving snapshots.
type viewer struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the connected viewers and fans snapshots out to them.
// Register, unregister and broadcast are serialized through Run.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	viewers    map[*viewer]bool
	broadcast  chan []byte
	register   chan *viewer
	unregister chan *viewer
	count      chan int
	done       chan struct{}

	latest []byte
}

// NewHub returns a hub; call Run to start it.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		log:        log,
		metrics:    m,
		viewers:    make(map[*viewer]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *viewer),
		unregister: make(chan *viewer),
		count:      make(chan int),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for v := range h.viewers {
				h.drop(v)
			}
			return

		case v := <-h.register:
			h.viewers[v] = true
			if h.latest != nil {
				v.send <- h.latest
			}
			h.setGauge()

		case v := <-h.unregister:
			if h.viewers[v] {
				h.drop(v)
			}

		case msg := <-h.broadcast:
			h.latest = msg
			for v := range h.viewers {
				select {
				case v.send <- msg:
				default:
					h.log.Debug("slow viewer dropped")
					h.drop(v)
				}
			}

		case h.count <- len(h.viewers):
		}
	}
}

// Broadcast queues msg for every viewer. It never blocks the caller;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug("snapshot broadcast dropped")
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers(ctx context.Context) int {
	select {
	case n := <-h.count:
		return n
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}

// ServeWS upgrades the request and registers the connection as a viewer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	v := &viewer{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- v:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	go v.writePump()
	go v.readPump()
}

func (h *Hub) drop(v *viewer) {
	delete(h.viewers, v)
	close(v.send)
	h.setGauge()
}

func (h *Hub) setGauge() {
	if h.metrics != nil {
		h.metrics.SetViewers(len(h.viewers))
	}
}

// readPump discards inbound messages and unregisters the viewer when the
// connection goes away.
func (v *viewer) readPump() {
	defer func() {
		select {
		case v.hub.unregister <- v:
		case <-v.hub.done:
		}
		_ = v.conn.Close()
	}()
	v.conn.SetReadLimit(maxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
