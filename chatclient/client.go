// Package chatclient implements the client-side chat controller: it keeps
// one realtime connection per authenticated session, reconciles REST-fetched
// history with socket-pushed messages, and tracks conversation previews.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yg10008/GuildHire-YG/internal/models"
	"github.com/yg10008/GuildHire-YG/internal/ws"
)

var (
	ErrNotConnected = errors.New("chatclient: not connected")
	ErrJoinRefused  = errors.New("chatclient: join refused")
)

// Preview is the conversation-list entry kept up to date for every
// conversation, open or not.
type Preview struct {
	LastMessage models.Message
	UpdatedAt   time.Time
}

// Controller mirrors the server's room model on the client side. Room
// membership is connection-scoped, so Open re-joins the room every time a
// conversation is opened, including after reconnects.
type Controller struct {
	endpoint string
	token    string

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	identity   *ws.IdentityPayload
	active     string
	transcript []models.Message
	seen       map[string]struct{}
	previews   map[string]Preview
	pendJoins  map[string]chan error
	idReady    chan struct{}

	// OnMessage, when set, observes every pushed message after reconciliation.
	OnMessage func(conversationID string, msg models.Message)
}

// New prepares a controller for the given websocket endpoint (e.g.
// "ws://host:5000/ws") and bearer token.
func New(endpoint, token string) *Controller {
	return &Controller{
		endpoint:  endpoint,
		token:     token,
		seen:      make(map[string]struct{}),
		previews:  make(map[string]Preview),
		pendJoins: make(map[string]chan error),
	}
}

// Dial connects, authenticates via the handshake token, and waits for the
// server's identity confirmation.
func (c *Controller) Dial(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.idReady = make(chan struct{})
	ready := c.idReady
	c.mu.Unlock()

	go c.readLoop(conn)

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}
}

// Close tears the connection down. Previews survive so the list stays
// rendered while disconnected; room membership does not.
func (c *Controller) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Connected reports realtime availability, for the disconnected indicator.
// Messaging stays functional over REST regardless.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Identity returns the profile confirmed by the server at authentication.
func (c *Controller) Identity() *ws.IdentityPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Open selects a conversation: the REST-fetched history seeds the visible
// transcript and the room is (re-)joined so pushes start flowing.
func (c *Controller) Open(ctx context.Context, conversationID string, history []models.Message) error {
	c.mu.Lock()
	c.active = conversationID
	c.transcript = nil
	c.seen = make(map[string]struct{})
	for _, m := range history {
		key := dedupKey(m)
		if _, dup := c.seen[key]; dup {
			continue
		}
		c.seen[key] = struct{}{}
		c.transcript = append(c.transcript, m)
	}
	ack := make(chan error, 1)
	c.pendJoins[conversationID] = ack
	c.mu.Unlock()

	if err := c.write(ws.EventJoinRoom, ws.JoinRoomPayload{ConversationID: conversationID}); err != nil {
		c.mu.Lock()
		delete(c.pendJoins, conversationID)
		c.mu.Unlock()
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pendJoins, conversationID)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Relay re-emits a REST-persisted message to the room. The server-side
// broadcast is authoritative; peers dedup if both arrive.
func (c *Controller) Relay(conversationID string, msg models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(ws.EventRelayMessage, ws.MessagePayload{
		ConversationID: conversationID,
		Message:        raw,
	})
}

// Transcript returns the open conversation's reconciled message list.
func (c *Controller) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// PreviewFor returns the last-message preview for any conversation.
func (c *Controller) PreviewFor(conversationID string) (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.previews[conversationID]
	return p, ok
}

func (c *Controller) write(event string, payload any) error {
	env, err := ws.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(env)
}

func (c *Controller) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.connected = false
		}
		c.mu.Unlock()
	}()

	for {
		var env ws.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		switch env.Event {
		case ws.EventIdentity:
			var id ws.IdentityPayload
			if err := json.Unmarshal(env.Data, &id); err != nil {
				continue
			}
			c.mu.Lock()
			c.identity = &id
			if c.idReady != nil {
				close(c.idReady)
				c.idReady = nil
			}
			c.mu.Unlock()

		case ws.EventJoinAck:
			var ack ws.JoinAckPayload
			if err := json.Unmarshal(env.Data, &ack); err != nil {
				continue
			}
			c.mu.Lock()
			ch := c.pendJoins[ack.ConversationID]
			delete(c.pendJoins, ack.ConversationID)
			c.mu.Unlock()
			if ch != nil {
				if ack.Success {
					ch <- nil
				} else {
					ch <- fmt.Errorf("%w: %s", ErrJoinRefused, ack.Error)
				}
			}

		case ws.EventReceiveMessage:
			var payload ws.MessagePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			var msg models.Message
			if err := json.Unmarshal(payload.Message, &msg); err != nil {
				continue
			}
			c.apply(payload.ConversationID, msg)
		}
	}
}

// apply reconciles a pushed message: only the open conversation's transcript
// changes, but the preview updates for any conversation.
func (c *Controller) apply(conversationID string, msg models.Message) {
	c.mu.Lock()
	fresh := false
	if conversationID == c.active {
		key := dedupKey(msg)
		if _, dup := c.seen[key]; !dup {
			c.seen[key] = struct{}{}
			c.transcript = append(c.transcript, msg)
			fresh = true
		}
	} else {
		fresh = true
	}
	c.previews[conversationID] = Preview{LastMessage: msg, UpdatedAt: msg.SentAt}
	cb := c.OnMessage
	c.mu.Unlock()

	if fresh && cb != nil {
		cb(conversationID, msg)
	}
}

// dedupKey prefers the server-assigned message id and falls back to the
// (sentAt, content, sender) triple for messages that lack one.
func dedupKey(m models.Message) string {
	if !m.ID.IsZero() {
		return "id:" + m.ID.Hex()
	}
	return fmt.Sprintf("%d|%s|%s", m.SentAt.UnixNano(), m.Content, m.SenderRef())
}
