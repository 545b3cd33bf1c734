package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps what clients may send; they only send pongs
	maxMessageSize = 4 * 1024

	// sendBuffer holds live messages while the backlog is written
	sendBuffer = 256

	// maxBatch bounds how many queued messages one write pass drains
	maxBatch = 64
)

// Client represents a single websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	joined bool
}

// NewClient creates a new client and registers it with the hub. Messages
// broadcast from now on are queued for it until Run starts writing.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	client.joined = hub.join(client)
	return client
}

// Run writes backlog, then the live stream, until the connection closes.
// Messages broadcast while the backlog was collected are already queued,
// so a consumer deduping on sequence numbers sees no gap.
func (c *Client) Run(backlog ...Message) {
	go c.writePump(backlog)
	c.readPump()
}

// readPump reads until the connection fails, which is how disconnects and
// pongs are observed.
func (c *Client) readPump() {
	defer func() {
		if c.joined {
			c.hub.leave(c)
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
			break
		}
	}
}

func (c *Client) write(m Message) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, m.Data)
}

// writePump is the only goroutine that writes to the connection. Each pass
// drains what is queued and collapses stale track updates.
func (c *Client) writePump(backlog []Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for _, m := range backlog {
		if err := c.write(m); err != nil {
			return
		}
	}

	batch := make([]Message, 0, maxBatch)
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			batch = append(batch[:0], message)
			closed := false
		drain:
			for len(batch) < maxBatch {
				select {
				case m, ok := <-c.send:
					if !ok {
						closed = true
						break drain
					}
					batch = append(batch, m)
				default:
					break drain
				}
			}

			for _, m := range coalesce(batch) {
				if err := c.write(m); err != nil {
					return
				}
			}
			if closed {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
