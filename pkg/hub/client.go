package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Large enough for encoded frames.
	maxMessageSize = 512 * 1024
)

// Client is a single websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers a connection with the hub. If the hub has already
// shut down the connection is closed instead.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
	}
	return client
}

// Run pumps the connection until it closes. Call from the websocket handler;
// it blocks for the connection's lifetime.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// write sends one websocket frame under the write deadline.
func (c *Client) write(wsType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(wsType, data)
}

// readPump drains inbound traffic. Subscribers send nothing meaningful, but
// reading is required to receive pongs and notice disconnects. On exit it
// unregisters, unless the hub itself is already gone.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection. It drains
// the send channel and keeps the peer alive with pings; a closed send
// channel means the hub dropped us and the connection should close.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			wsType := websocket.TextMessage
			if message.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}
			if err := c.write(wsType, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
