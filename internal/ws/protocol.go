package ws

import (
	"encoding/json"

	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Event names carried in the connection envelope.
const (
	// server -> client
	EventIdentity       = "identity"
	EventJoinAck        = "joinAck"
	EventReceiveMessage = "receiveMessage"

	// client -> server
	EventJoinRoom = "joinRoom"
	// EventRelayMessage is the client-side re-emit after a REST send. The
	// server-side broadcast after persistence is authoritative; the relay is
	// kept for clients that still emit it and is delivered room-scoped with
	// the originating connection excluded.
	EventRelayMessage = "relayMessage"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: b}, nil
}

// IdentityPayload confirms authentication, echoing the resolved account.
type IdentityPayload struct {
	AccountID string             `json:"accountId"`
	Kind      models.AccountKind `json:"kind"`
	Profile   *models.Profile    `json:"profile,omitempty"`
}

// JoinRoomPayload asks to join a conversation's room.
type JoinRoomPayload struct {
	ConversationID string `json:"conversationId"`
}

// JoinAckPayload answers a join request. Error is set when the join was
// refused; the connection itself stays open.
type JoinAckPayload struct {
	ConversationID string `json:"conversationId"`
	Success        bool   `json:"success,omitempty"`
	Error          string `json:"error,omitempty"`
}

// MessagePayload carries a message pushed to (or relayed by) a room.
type MessagePayload struct {
	ConversationID string          `json:"conversationId"`
	Message        json.RawMessage `json:"message"`
}
