package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

const testSecret = "test-secret"

func TestVerifyRoundTrip(t *testing.T) {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: models.KindRecruiter}
	token, err := Sign(testSecret, ref, time.Hour)
	require.NoError(t, err)

	v := NewVerifier(testSecret, nil)
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, ref, id.Ref)
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: models.KindUser}
	token, err := Sign("other-secret", ref, time.Hour)
	require.NoError(t, err)

	v := NewVerifier(testSecret, nil)
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ref := models.AccountRef{AccountID: primitive.NewObjectID(), Kind: models.KindUser}
	token, err := Sign(testSecret, ref, -time.Minute)
	require.NoError(t, err)

	v := NewVerifier(testSecret, nil)
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerifyRejectsUnknownKind(t *testing.T) {
	token, err := Sign(testSecret, models.AccountRef{
		AccountID: primitive.NewObjectID(),
		Kind:      "Admin",
	}, time.Hour)
	require.NoError(t, err)

	v := NewVerifier(testSecret, nil)
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
