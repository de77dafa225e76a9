package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/api/middleware"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/shared/id"
	"github.com/GriffinCanCode/x11host/internal/terminal"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
	maxInbound = 64 << 10
)

// Sessions is the terminal session owner the hub attaches to
type Sessions interface {
	Current() (*terminal.Session, bool)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
}

// Message is a control message sent to clients
type Message struct {
	Type      string           `json:"type"`
	ClientID  id.ClientID      `json:"client_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Status    *terminal.Status `json:"status,omitempty"`
	Blink     *bool            `json:"blink,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

type inbound struct {
	Type string `json:"type"`
	Data string `json:"data"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

type frame struct {
	binary []byte
	msg    *Message
}

type client struct {
	id   id.ClientID
	conn *websocket.Conn
	send chan frame
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue drops the frame when the client is not keeping up
func (c *client) enqueue(f frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// Hub fans terminal output and status out to websocket clients
type Hub struct {
	sessions Sessions
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[id.ClientID]*client
	blink   bool
	status  *terminal.Status
	changed chan struct{}
}

// NewHub creates a hub over sessions
func NewHub(sessions Sessions, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		sessions: sessions,
		logger:   logger.For("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.IsLoopbackOrigin(origin)
			},
		},
		clients: make(map[id.ClientID]*client),
		changed: make(chan struct{}),
	}
}

// Report implements terminal.StatusReporter. It must not block: the
// session manager calls it with its lock held.
func (h *Hub) Report(st terminal.Status) {
	h.mu.Lock()
	h.status = &st
	if st.Kind == terminal.StatusRunning {
		close(h.changed)
		h.changed = make(chan struct{})
	}
	h.mu.Unlock()

	h.broadcast(&Message{Type: "status", Message: st.Message, Status: &st})
}

// SetCursorBlink implements the lifecycle cursor view
func (h *Hub) SetCursorBlink(on bool) {
	h.mu.Lock()
	h.blink = on
	h.mu.Unlock()

	h.broadcast(&Message{Type: "cursor", Blink: &on})
}

// CursorBlink reports the current cursor blink state
func (h *Hub) CursorBlink() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.blink
}

// LastStatus returns the most recent status message, if any
func (h *Hub) LastStatus() (terminal.Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status == nil {
		return terminal.Status{}, false
	}
	return *h.status, true
}

// Clients returns the number of attached clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and serves one client
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   id.NewClientID(),
		conn: conn,
		send: make(chan frame, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[cl.id] = cl
	blink := h.blink
	status := h.status
	h.mu.Unlock()

	h.logger.Info("Terminal client attached", zap.String("client_id", cl.id.String()))

	cl.enqueue(frame{msg: stamp(&Message{Type: "hello", ClientID: cl.id})})
	cl.enqueue(frame{msg: stamp(&Message{Type: "cursor", Blink: &blink})})
	if status != nil {
		cl.enqueue(frame{msg: stamp(&Message{Type: "status", Message: status.Message, Status: status})})
	}

	go h.writePump(cl)
	go h.outputPump(cl)
	h.readPump(cl)

	h.mu.Lock()
	delete(h.clients, cl.id)
	h.mu.Unlock()
	cl.close()

	h.logger.Info("Terminal client detached", zap.String("client_id", cl.id.String()))
}

func (h *Hub) broadcast(msg *Message) {
	stamp(msg)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.clients {
		if !cl.enqueue(frame{msg: msg}) {
			h.logger.Debug("Dropping message for slow client",
				zap.String("client_id", cl.id.String()),
				zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) readPump(cl *client) {
	cl.conn.SetReadLimit(maxInbound)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inbound
		if err := cl.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch in.Type {
		case "input":
			if _, err := h.sessions.Write([]byte(in.Data)); err != nil {
				cl.enqueue(frame{msg: errorMessage(err)})
			}
		case "resize":
			if !terminal.ValidSize(in.Cols, in.Rows) {
				cl.enqueue(frame{msg: stamp(&Message{Type: "error", Message: "invalid terminal size"})})
				continue
			}
			if err := h.sessions.Resize(in.Cols, in.Rows); err != nil {
				cl.enqueue(frame{msg: errorMessage(err)})
			}
		case "ping":
			cl.enqueue(frame{msg: stamp(&Message{Type: "pong"})})
		default:
			cl.enqueue(frame{msg: stamp(&Message{Type: "error", Message: "unknown message type"})})
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case <-cl.done:
			cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case f := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			var err error
			if f.msg != nil {
				err = cl.conn.WriteJSON(f.msg)
			} else {
				err = cl.conn.WriteMessage(websocket.BinaryMessage, f.binary)
			}
			if err != nil {
				cl.close()
				return
			}

		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cl.close()
				return
			}
		}
	}
}

// outputPump follows the current session, replaying its scrollback on
// attach, and moves to the next session when one starts
func (h *Hub) outputPump(cl *client) {
	var attached *terminal.Session

	for {
		h.mu.RLock()
		changed := h.changed
		h.mu.RUnlock()

		if s, ok := h.sessions.Current(); ok && s != attached && !s.Exited() {
			attached = s
			out, cancel := s.Subscribe()
			if snap := s.Snapshot(); len(snap) > 0 {
				cl.enqueue(frame{binary: snap})
			}

			h.forward(cl, out)
			cancel()
			continue
		}

		select {
		case <-changed:
		case <-cl.done:
			return
		}
	}
}

func (h *Hub) forward(cl *client, out <-chan []byte) {
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return
			}
			cl.enqueue(frame{binary: chunk})
		case <-cl.done:
			return
		}
	}
}

func stamp(m *Message) *Message {
	m.Timestamp = time.Now().Unix()
	return m
}

func errorMessage(err error) *Message {
	return stamp(&Message{Type: "error", Message: err.Error()})
}
