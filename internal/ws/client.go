package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Client is one authenticated websocket connection. Outbound frames go
// through a buffered channel drained by the write pump; a full buffer drops
// the frame rather than blocking the broadcaster.
type Client struct {
	ID      string
	Ref     models.AccountRef
	Profile *models.Profile

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func NewClient(conn *websocket.Conn, ref models.AccountRef, profile *models.Profile, sendBuffer int) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Ref:     ref,
		Profile: profile,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Enqueue queues an envelope for delivery. Returns false if the frame was
// dropped because the client is slow.
func (c *Client) Enqueue(env Envelope) bool {
	b, err := json.Marshal(env)
	if err != nil {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// WritePump drains the send channel and keeps the connection alive with
// pings. It exits when the send channel closes or a write fails.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Shutdown stops the write pump. Safe to call once, from the read loop's
// cleanup path.
func (c *Client) Shutdown() {
	close(c.done)
}
