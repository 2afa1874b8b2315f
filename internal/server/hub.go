package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meshdiag/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 1024

	sendBuffer = 8
)

var errHubClosed = errors.New("hub closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// subscriber is one websocket client following snapshot reloads.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	// node, when set, adds that node's detail to every event.
	node *model.NodeID
}

type hub struct {
	log    *zap.Logger
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newHub(logger *zap.Logger) *hub {
	return &hub{log: logger, subs: make(map[*subscriber]struct{})}
}

// register queues the first event and adds sub in one step under the hub
// lock, so a reload is either in the first event or broadcast afterwards.
func (h *hub) register(sub *subscriber, first func(node *model.NodeID) ([]byte, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	msg, err := first(sub.node)
	if err != nil {
		return err
	}
	sub.send <- msg
	h.subs[sub] = struct{}{}
	return nil
}

func (h *hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// broadcast renders a message per subscriber and queues it. Slow
// subscribers whose buffer is full are dropped.
func (h *hub) broadcast(render func(node *model.NodeID) ([]byte, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		msg, err := render(sub.node)
		if err != nil {
			h.log.Warn("render event", zap.Error(err))
			continue
		}
		select {
		case sub.send <- msg:
		default:
			h.log.Info("dropping slow websocket subscriber")
			delete(h.subs, sub)
			close(sub.send)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.send)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var node *model.NodeID
	if v := r.URL.Query().Get("node"); v != "" {
		id, err := model.ParseNodeID(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		node = &id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer), node: node}
	err = s.hub.register(sub, func(node *model.NodeID) ([]byte, error) {
		return s.event(s.holder.Current(), node)
	})
	if err != nil {
		s.log.Debug("websocket register", zap.Error(err))
		conn.Close()
		return
	}

	go sub.writePump()
	sub.readPump()
	s.hub.unregister(sub)
}

// readPump discards client frames until the connection fails.
func (sub *subscriber) readPump() {
	sub.conn.SetReadLimit(maxMessageSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps queued events to the websocket connection.
func (sub *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
