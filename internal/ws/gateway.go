package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/auth"
	"github.com/yg10008/GuildHire-YG/internal/config"
	"github.com/yg10008/GuildHire-YG/internal/directory"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// RoomAuthorizer re-verifies that an account may join a conversation's
// room. The chat service implements it with a fresh conversation fetch.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, conversationID string, ref models.AccountRef) error
}

// Gateway authenticates websocket connections and routes room-scoped
// events. Authentication failures close the connection before any event is
// emitted; join failures only fail the join.
type Gateway struct {
	hub      *Hub
	verifier *auth.Verifier
	resolver directory.ProfileResolver
	rooms    RoomAuthorizer
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewGateway(hub *Hub, verifier *auth.Verifier, resolver directory.ProfileResolver, rooms RoomAuthorizer, cfg *config.Config, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, verifier: verifier, resolver: resolver, rooms: rooms, cfg: cfg, log: log}
}

// Upgrade is the fiber route handler for GET /ws.
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(g.handle)(c)
}

func (g *Gateway) handle(conn *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	identity, err := g.verifier.Verify(ctx, conn.Query("token"))
	cancel()
	if err != nil {
		g.log.Infow("ws auth rejected", "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication error"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	// profile resolution is best-effort; identity still confirms without it
	rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	profile, perr := g.resolver.Resolve(rctx, identity.Ref)
	rcancel()
	if perr != nil {
		g.log.Warnw("ws profile resolution failed", "ref", identity.Ref.String(), "err", perr)
	}

	client := NewClient(conn, identity.Ref, profile, g.cfg.WS.SendBufferSize)
	g.hub.Add(client)
	go client.WritePump(g.cfg.PingInterval, g.cfg.WriteDeadline)

	env, _ := NewEnvelope(EventIdentity, IdentityPayload{
		AccountID: identity.Ref.AccountID.Hex(),
		Kind:      identity.Ref.Kind,
		Profile:   profile,
	})
	client.Enqueue(env)
	g.log.Infow("ws connected", "client", client.ID, "ref", identity.Ref.String())

	g.readLoop(client, conn)

	client.Shutdown()
	g.hub.Remove(client)
	g.log.Infow("ws disconnected", "client", client.ID, "ref", identity.Ref.String())
}

func (g *Gateway) readLoop(client *Client, conn *websocket.Conn) {
	conn.SetReadLimit(g.cfg.WS.MaxMessageSizeBytes)
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.ReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.ReadDeadline))
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.ReadDeadline))
		if mt != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Event {
		case EventJoinRoom:
			g.handleJoin(client, env.Data)
		case EventRelayMessage:
			g.handleRelay(client, env.Data)
		default:
			g.log.Debugw("ws unknown event", "event", env.Event, "client", client.ID)
		}
	}
}

func (g *Gateway) handleJoin(client *Client, data json.RawMessage) {
	var req JoinRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		g.ack(client, JoinAckPayload{ConversationID: req.ConversationID, Error: "conversationId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := g.rooms.CanJoin(ctx, req.ConversationID, client.Ref)
	cancel()
	if err != nil {
		reason := "failed to join chat"
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			reason = "chat not found"
		case errors.Is(err, apperr.ErrForbidden):
			reason = "unauthorized to join this chat"
		}
		g.ack(client, JoinAckPayload{ConversationID: req.ConversationID, Error: reason})
		return
	}

	g.hub.Join(req.ConversationID, client)
	g.ack(client, JoinAckPayload{ConversationID: req.ConversationID, Success: true})
	g.log.Infow("ws joined room", "client", client.ID, "conversation", req.ConversationID)
}

func (g *Gateway) handleRelay(client *Client, data json.RawMessage) {
	var req MessagePayload
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return
	}
	g.hub.RelayFrom(client, req.ConversationID, req.Message)
}

func (g *Gateway) ack(client *Client, payload JoinAckPayload) {
	env, err := NewEnvelope(EventJoinAck, payload)
	if err != nil {
		return
	}
	client.Enqueue(env)
}
