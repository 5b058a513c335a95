//go:build !production

package debug

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/prodtrack/pkg/bus"
	"github.com/sirupsen/logrus"
)

const clientBuffer = 64

// StreamEvent is one websocket message.
type StreamEvent struct {
	ID      string                 `json:"id"`
	Action  string                 `json:"action"`
	Payload map[string]interface{} `json:"payload"`
	Time    time.Time              `json:"time"`
}

// hub fans dispatched actions out to websocket clients. Slow clients lose
// events rather than block dispatch.
type hub struct {
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan StreamEvent]struct{}
	closed  bool
}

func newHub(logger *logrus.Entry) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local inspection tool; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[chan StreamEvent]struct{}),
	}
}

// ObserveAction implements bus.Observer.
func (h *hub) ObserveAction(a bus.Action) {
	ev := StreamEvent{
		ID:      a.ID,
		Action:  a.Kind.String(),
		Payload: sanitize(map[string]interface{}(a.Payload)),
		Time:    a.Payload.Timestamp(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.WithField("action", ev.Action).Debug("Dropped event for slow stream client")
		}
	}
}

func (h *hub) add() (chan StreamEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan StreamEvent, clientBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *hub) remove(ch chan StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serveWS upgrades the request and streams actions until either side
// closes.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.add()
	if !ok {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.remove(ch)
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer h.remove(ch)

	h.logger.Debug("Stream client connected")

	// Reader: detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Debug("Stream client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.WithError(err).Debug("Stream write failed")
				return
			}
		}
	}
}
