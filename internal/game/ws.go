package game

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer     = 256
	pingInterval   = 25 * time.Second
	writeWait      = 10 * time.Second
	maxInboundSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // clients are served from anywhere
}

type ClientConn struct {
	id   ConnID
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClientConn(ws *websocket.Conn, buffer int) *ClientConn {
	return &ClientConn{
		id:   ConnID(uuid.NewString()),
		ws:   ws,
		send: make(chan []byte, buffer),
	}
}

func (c *ClientConn) ID() ConnID { return c.id }

// enqueue never blocks; false means the frame was dropped.
func (c *ClientConn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// handleWS upgrades the request and pumps frames between the socket and the
// session until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	ws.SetReadLimit(maxInboundSize)

	cc := newClientConn(ws, sendBuffer)
	s.session.Connect(cc)
	s.log.Info("client connected", "conn", cc.id, "remote", r.RemoteAddr)

	go cc.writePump()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Debug("dropping malformed frame", "conn", cc.id, "err", err)
			continue
		}
		s.session.Handle(cc.id, env)
	}

	// unregister first so nothing enqueues on a closed channel
	s.session.Disconnect(cc.id)
	cc.Close()
	s.log.Info("client disconnected", "conn", cc.id)
}

func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
