package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// InboundHandler receives events read off a connection. Implemented by the
// session actor manager.
type InboundHandler interface {
	HandleInbound(c *Client, data []byte)
	HandleDisconnect(c *Client)
}

// Client is a middleman between one websocket connection and the session
// actor it is attached to.
type Client struct {
	Conn      *websocket.Conn
	SessionId uuid.UUID
	UserId    uuid.UUID

	// Buffered channel of outbound frames.
	Send chan []byte

	handler InboundHandler
}

func NewClient(conn *websocket.Conn, sessionId, userId uuid.UUID, handler InboundHandler) *Client {
	return &Client{
		Conn:      conn,
		SessionId: sessionId,
		UserId:    userId,
		Send:      make(chan []byte, 256),
		handler:   handler,
	}
}

// Run pumps the connection until it closes. writePump runs in a new
// goroutine; readPump runs in the caller's goroutine (the fiber handler).
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		c.handler.HandleInbound(c, data)
	}
}

// writePump pumps frames from the Send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The actor closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Flush any queued frames into the same websocket message.
			// Order is preserved, which is all the protocol requires.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
