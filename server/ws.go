package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/room4-2/OpenCanteen/config"
	"github.com/room4-2/OpenCanteen/dialogue"
	"github.com/room4-2/OpenCanteen/fragment"
	"github.com/room4-2/OpenCanteen/messages"
)

const (
	wsWriteTimeout  = 10 * time.Second
	writeBufferSize = 256
)

var errConnClosed = errors.New("websocket connection closed")

// wsHub upgrades chat connections and runs one read loop per client.
type wsHub struct {
	upgrader   websocket.Upgrader
	controller *dialogue.Controller
}

func newWSHub(cfg *config.Config, ctrl *dialogue.Controller) *wsHub {
	return &wsHub{
		controller: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// wsConn wraps one client connection. All writes go through writeChan so a
// single goroutine owns the socket.
type wsConn struct {
	conn      *websocket.Conn
	writeChan chan *messages.ServerMessage
	closeChan chan struct{}

	mu         sync.Mutex
	closed     bool
	sessionID  string
	turnCancel context.CancelFunc
	turnGen    uint64
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsConn{
		conn:      conn,
		writeChan: make(chan *messages.ServerMessage, writeBufferSize),
		closeChan: make(chan struct{}),
	}
	go c.writePump()
	defer c.close()

	h.readLoop(r.Context(), c)
}

func (h *wsHub) readLoop(ctx context.Context, c *wsConn) {
	for {
		var msg messages.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case "chat":
			var chat messages.ChatPayload
			if err := sonic.Unmarshal(msg.Payload, &chat); err != nil || chat.Message == "" {
				_ = c.queue(messages.NewErrorMessage(c.session(), messages.ErrCodeInvalidMessage, "chat payload needs a message"))
				continue
			}
			// Run in a goroutine so "stop" frames can still be read while
			// the reply streams. Same-session turns are serialized by the
			// session's turn slot.
			go h.runTurn(ctx, c, chat)

		case "control":
			var ctl messages.ControlPayload
			if err := sonic.Unmarshal(msg.Payload, &ctl); err != nil {
				_ = c.queue(messages.NewErrorMessage(c.session(), messages.ErrCodeInvalidMessage, "bad control payload"))
				continue
			}
			if ctl.Action == "stop" {
				c.cancelTurn()
			}

		default:
			_ = c.queue(messages.NewErrorMessage(c.session(), messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
		}
	}
}

// runTurn executes one chat turn. The cancel func is armed before the turn
// starts so a "stop" control frame can abort the stream at any point.
func (h *wsHub) runTurn(ctx context.Context, c *wsConn, chat messages.ChatPayload) {
	turnCtx, cancel := context.WithCancel(ctx)
	gen := c.armTurn(cancel)
	defer c.disarmTurn(gen)
	defer cancel()

	sid := chat.SessionID
	if sid == "" {
		sid = c.session()
	}

	sink := func(f fragment.Fragment) error {
		var m *messages.ServerMessage
		if f.Kind == fragment.KindStatus {
			m = messages.NewStatusMessage(c.session(), f.Text)
		} else {
			m = messages.NewContentMessage(c.session(), f.Text)
		}
		return c.queue(m)
	}

	gotID, err := h.controller.HandleTurn(turnCtx, dialogue.Request{
		Message:   chat.Message,
		SessionID: sid,
	}, sink)
	c.setSession(gotID)

	if err != nil {
		_ = c.queue(messages.NewErrorMessage(gotID, messages.ErrCodeSessionFailed, err.Error()))
		return
	}
	_ = c.queue(messages.NewDoneMessage(gotID, turnCtx.Err() != nil))
}

// writePump handles all outgoing messages in a single goroutine
func (c *wsConn) writePump() {
	defer func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-c.closeChan:
			return
		case msg, ok := <-c.writeChan:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

			n := len(c.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-c.writeChan:
					if !ok {
						return
					}
					if err := c.conn.WriteJSON(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

// queue blocks until the message is accepted or the connection closes, so
// fragments are never silently dropped mid-reply.
func (c *wsConn) queue(msg *messages.ServerMessage) error {
	select {
	case c.writeChan <- msg:
		return nil
	case <-c.closeChan:
		return errConnClosed
	}
}

func (c *wsConn) armTurn(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnGen++
	c.turnCancel = cancel
	return c.turnGen
}

// disarmTurn clears the cancel hook, but only if no newer turn replaced it.
func (c *wsConn) disarmTurn(gen uint64) {
	c.mu.Lock()
	if c.turnGen == gen {
		c.turnCancel = nil
	}
	c.mu.Unlock()
}

func (c *wsConn) cancelTurn() {
	c.mu.Lock()
	if c.turnCancel != nil {
		c.turnCancel()
	}
	c.mu.Unlock()
}

func (c *wsConn) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *wsConn) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *wsConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.turnCancel != nil {
		c.turnCancel()
	}
	c.mu.Unlock()

	close(c.closeChan)
	_ = c.conn.Close()
}
