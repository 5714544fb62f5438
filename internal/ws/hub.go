package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/metrics"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Hub tracks connections and room membership for this process. Rooms map
// 1:1 onto conversations and exist only while members are joined; they do
// not survive reconnects, so clients re-join on every open.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	metrics.ConnectionsActive.Set(float64(len(h.clients)))
}

// Remove drops the connection and clears it from every room it had joined.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for id, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, id)
		}
	}
	close(c.send)
	metrics.ConnectionsActive.Set(float64(len(h.clients)))
}

func (h *Hub) Join(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
}

// BroadcastMessage pushes a persisted message to the conversation's room,
// skipping every connection owned by the excluded account. Called by the
// chat service after a successful append.
func (h *Hub) BroadcastMessage(conversationID string, msg *models.Message, exclude models.AccountRef) {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnw("broadcast marshal failed", "conversation", conversationID, "err", err)
		return
	}
	h.broadcast(conversationID, raw, func(c *Client) bool {
		return c.Ref.Equal(exclude)
	})
}

// RelayFrom fans a client-relayed message out to the room, excluding the
// originating connection only.
func (h *Hub) RelayFrom(origin *Client, conversationID string, message json.RawMessage) {
	h.broadcast(conversationID, message, func(c *Client) bool {
		return c == origin
	})
}

func (h *Hub) broadcast(conversationID string, message json.RawMessage, skip func(*Client) bool) {
	env, err := NewEnvelope(EventReceiveMessage, MessagePayload{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	for c := range members {
		if skip(c) {
			continue
		}
		if c.Enqueue(env) {
			metrics.BroadcastsDelivered.Inc()
		} else {
			metrics.BroadcastsDropped.Inc()
			h.log.Warnw("broadcast dropped for slow client",
				"conversation", conversationID, "client", c.ID)
		}
	}
}

// RoomSize reports current membership, for observability.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
