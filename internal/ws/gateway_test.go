package ws

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/auth"
	"github.com/yg10008/GuildHire-YG/internal/config"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

const gatewaySecret = "gateway-test-secret"

type stubResolver struct {
	profile *models.Profile
	err     error
}

func (s stubResolver) Resolve(context.Context, models.AccountRef) (*models.Profile, error) {
	return s.profile, s.err
}

// stubRooms authorizes every join except the conversations it is told to
// refuse.
type stubRooms struct {
	deny map[string]error
}

func (s stubRooms) CanJoin(_ context.Context, conversationID string, _ models.AccountRef) error {
	return s.deny[conversationID]
}

// startGateway serves the real upgrade handler on a loopback listener so
// tests exercise the full dial -> auth -> event path.
func startGateway(t *testing.T, rooms RoomAuthorizer) (string, *Hub) {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		WS: config.WSConfig{
			PingIntervalSeconds:  25,
			WriteDeadlineSeconds: 5,
			ReadDeadlineSeconds:  10,
			MaxMessageSizeBytes:  64 * 1024,
			SendBufferSize:       16,
		},
		PingInterval:  25 * time.Second,
		WriteDeadline: 5 * time.Second,
		ReadDeadline:  10 * time.Second,
	}

	hub := NewHub(log)
	verifier := auth.NewVerifier(gatewaySecret, nil)
	resolver := stubResolver{profile: &models.Profile{Name: "Gateway Tester"}}
	gw := NewGateway(hub, verifier, resolver, rooms, cfg, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", gw.Upgrade)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws", hub
}

func dialGateway(t *testing.T, endpoint string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *gws.Conn) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestGatewayRejectsMissingToken(t *testing.T) {
	endpoint, _ := startGateway(t, stubRooms{})

	conn := dialGateway(t, endpoint)
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, gws.ClosePolicyViolation),
		"closed without emitting any event, got %v", err)
}

func TestGatewayRejectsBadToken(t *testing.T) {
	endpoint, _ := startGateway(t, stubRooms{})

	conn := dialGateway(t, endpoint+"?token=not-a-jwt")
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, gws.ClosePolicyViolation))
}

func TestGatewayIdentityThenJoin(t *testing.T) {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: models.KindUser}
	endpoint, hub := startGateway(t, stubRooms{})

	token, err := auth.Sign(gatewaySecret, ref, time.Minute)
	require.NoError(t, err)
	conn := dialGateway(t, endpoint+"?token="+token)

	env := readEnvelope(t, conn)
	require.Equal(t, EventIdentity, env.Event, "identity confirms before anything else")
	var id IdentityPayload
	require.NoError(t, json.Unmarshal(env.Data, &id))
	assert.Equal(t, ref.AccountID.Hex(), id.AccountID)
	assert.Equal(t, models.KindUser, id.Kind)
	require.NotNil(t, id.Profile)
	assert.Equal(t, "Gateway Tester", id.Profile.Name)

	join, err := NewEnvelope(EventJoinRoom, JoinRoomPayload{ConversationID: "c1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(join))

	env = readEnvelope(t, conn)
	require.Equal(t, EventJoinAck, env.Event)
	var ack JoinAckPayload
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	assert.True(t, ack.Success)
	assert.Equal(t, "c1", ack.ConversationID)
	assert.Equal(t, 1, hub.RoomSize("c1"))
}

func TestGatewayRefusedJoinKeepsConnection(t *testing.T) {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: models.KindRecruiter}
	endpoint, hub := startGateway(t, stubRooms{deny: map[string]error{
		"locked": apperr.ErrForbidden,
		"gone":   apperr.ErrNotFound,
	}})

	token, err := auth.Sign(gatewaySecret, ref, time.Minute)
	require.NoError(t, err)
	conn := dialGateway(t, endpoint+"?token="+token)
	require.Equal(t, EventIdentity, readEnvelope(t, conn).Event)

	for conv, reason := range map[string]string{
		"locked": "unauthorized to join this chat",
		"gone":   "chat not found",
	} {
		join, err := NewEnvelope(EventJoinRoom, JoinRoomPayload{ConversationID: conv})
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(join))

		var ack JoinAckPayload
		env := readEnvelope(t, conn)
		require.Equal(t, EventJoinAck, env.Event)
		require.NoError(t, json.Unmarshal(env.Data, &ack))
		assert.False(t, ack.Success)
		assert.Equal(t, reason, ack.Error)
		assert.Equal(t, 0, hub.RoomSize(conv))
	}

	// refusals only fail the join; the connection still works
	join, err := NewEnvelope(EventJoinRoom, JoinRoomPayload{ConversationID: "open"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(join))

	var ack JoinAckPayload
	env := readEnvelope(t, conn)
	require.Equal(t, EventJoinAck, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	assert.True(t, ack.Success)
	assert.Equal(t, 1, hub.RoomSize("open"))
}
