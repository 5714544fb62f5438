package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ref(kind AccountKind) AccountRef {
	return AccountRef{AccountID: primitive.NewObjectID(), Kind: kind}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	a := ref(KindUser)
	b := ref(KindRecruiter)

	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, ref(KindRecruiter)))
}

func TestPairKeyDistinguishesKind(t *testing.T) {
	// same id under both kinds is structurally allowed: ids are scoped per kind
	id := primitive.NewObjectID()
	asUser := AccountRef{AccountID: id, Kind: KindUser}
	asRecruiter := AccountRef{AccountID: id, Kind: KindRecruiter}

	require.NoError(t, ValidatePair(asUser, asRecruiter))
	assert.NotEqual(t, PairKey(asUser, asUser), PairKey(asUser, asRecruiter))
}

func TestValidatePair(t *testing.T) {
	a := ref(KindUser)
	b := ref(KindRecruiter)

	assert.NoError(t, ValidatePair(a, b))
	assert.Error(t, ValidatePair(a, a), "self chat with same id+kind")
	assert.Error(t, ValidatePair(a, AccountRef{AccountID: primitive.NewObjectID(), Kind: "Admin"}))
	assert.Error(t, ValidatePair(AccountRef{Kind: KindUser}, b), "zero id")
}

func TestValidateContentBounds(t *testing.T) {
	assert.Error(t, ValidateContent(""))
	assert.NoError(t, ValidateContent("h"))
	assert.NoError(t, ValidateContent(strings.Repeat("x", MaxMessageLength)))
	assert.Error(t, ValidateContent(strings.Repeat("x", MaxMessageLength+1)))
}

func TestHasParticipant(t *testing.T) {
	a := ref(KindUser)
	b := ref(KindRecruiter)
	conv := &Conversation{Participants: []Participant{{AccountRef: a}, {AccountRef: b}}}

	assert.True(t, conv.HasParticipant(a))
	assert.True(t, conv.HasParticipant(b))
	assert.False(t, conv.HasParticipant(ref(KindUser)))
	// same id, wrong kind must not match
	assert.False(t, conv.HasParticipant(AccountRef{AccountID: a.AccountID, Kind: KindRecruiter}))
}
