package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/models"
)

func testClient(kind models.AccountKind) *Client {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: kind}
	return NewClient(nil, ref, nil, 8)
}

func drain(t *testing.T, c *Client) (Envelope, bool) {
	t.Helper()
	select {
	case b := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env, true
	default:
		return Envelope{}, false
	}
}

func testMessage(sender models.AccountRef, content string) *models.Message {
	return &models.Message{
		ID:       primitive.NewObjectID(),
		SenderID: sender.AccountID,
		Kind:     sender.Kind,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
}

func TestBroadcastExcludesSenderConnections(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	a := testClient(models.KindUser)
	a2 := NewClient(nil, a.Ref, nil, 8) // second device, same account
	b := testClient(models.KindRecruiter)

	for _, c := range []*Client{a, a2, b} {
		hub.Add(c)
		hub.Join("conv-1", c)
	}

	hub.BroadcastMessage("conv-1", testMessage(a.Ref, "hello"), a.Ref)

	_, got := drain(t, a)
	assert.False(t, got, "sender connection must not receive its own message")
	_, got = drain(t, a2)
	assert.False(t, got, "every connection of the sender account is excluded")

	env, got := drain(t, b)
	require.True(t, got, "joined peer receives the push")
	assert.Equal(t, EventReceiveMessage, env.Event)

	var payload MessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "conv-1", payload.ConversationID)
	var msg models.Message
	require.NoError(t, json.Unmarshal(payload.Message, &msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, a.Ref, msg.SenderRef())
}

func TestBroadcastOnlyReachesRoomMembers(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	member := testClient(models.KindUser)
	outsider := testClient(models.KindRecruiter)
	hub.Add(member)
	hub.Add(outsider)
	hub.Join("conv-1", member)
	// outsider is connected but never joined conv-1

	hub.BroadcastMessage("conv-1", testMessage(outsider.Ref, "hi"), models.AccountRef{})

	_, got := drain(t, member)
	assert.True(t, got)
	_, got = drain(t, outsider)
	assert.False(t, got, "connected but unjoined clients get nothing")
}

func TestRelayExcludesOriginConnectionOnly(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	origin := testClient(models.KindUser)
	sameAccount := NewClient(nil, origin.Ref, nil, 8)
	peer := testClient(models.KindRecruiter)

	for _, c := range []*Client{origin, sameAccount, peer} {
		hub.Add(c)
		hub.Join("conv-9", c)
	}

	raw, _ := json.Marshal(testMessage(origin.Ref, "relayed"))
	hub.RelayFrom(origin, "conv-9", raw)

	_, got := drain(t, origin)
	assert.False(t, got)
	_, got = drain(t, sameAccount)
	assert.True(t, got, "relay only excludes the originating connection")
	_, got = drain(t, peer)
	assert.True(t, got)
}

func TestRemoveClearsAllRooms(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := testClient(models.KindUser)
	peer := testClient(models.KindRecruiter)
	hub.Add(c)
	hub.Add(peer)
	hub.Join("conv-1", c)
	hub.Join("conv-2", c)
	hub.Join("conv-1", peer)

	require.Equal(t, 2, hub.RoomSize("conv-1"))
	require.Equal(t, 1, hub.RoomSize("conv-2"))

	hub.Remove(c)

	assert.Equal(t, 1, hub.RoomSize("conv-1"))
	assert.Equal(t, 0, hub.RoomSize("conv-2"))

	// a removed client's membership is gone: broadcasts reach peers only
	hub.BroadcastMessage("conv-1", testMessage(c.Ref, "after"), models.AccountRef{})
	_, got := drain(t, peer)
	assert.True(t, got)
}

func TestJoinRequiresRegisteredClient(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	ghost := testClient(models.KindUser)
	// never added to the hub
	hub.Join("conv-1", ghost)
	assert.Equal(t, 0, hub.RoomSize("conv-1"))
}
