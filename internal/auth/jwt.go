package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yg10008/GuildHire-YG/internal/apperr"
	"github.com/yg10008/GuildHire-YG/internal/models"
)

// Claims carries the account identity issued at login. The field names
// match the tokens minted by the account service.
type Claims struct {
	AccountID string             `json:"_id"`
	Kind      models.AccountKind `json:"model"`
	jwt.RegisteredClaims
}

// Identity is a verified token resolved to an account reference.
type Identity struct {
	Ref models.AccountRef
}

// Verifier checks bearer tokens and, when a Redis client is configured,
// rejects tokens that were blacklisted at logout.
type Verifier struct {
	secret    []byte
	blacklist *redis.Client
}

func NewVerifier(secret string, blacklist *redis.Client) *Verifier {
	return &Verifier{secret: []byte(secret), blacklist: blacklist}
}

func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: no token provided", apperr.ErrUnauthorized)
	}

	if v.blacklist != nil {
		n, err := v.blacklist.Exists(ctx, blacklistKey(tokenStr)).Result()
		if err == nil && n > 0 {
			return nil, fmt.Errorf("%w: token is blacklisted", apperr.ErrUnauthorized)
		}
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", apperr.ErrUnauthorized)
	}
	if !claims.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid account kind %q", apperr.ErrUnauthorized, claims.Kind)
	}
	id, err := primitive.ObjectIDFromHex(claims.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed account id", apperr.ErrUnauthorized)
	}

	return &Identity{Ref: models.AccountRef{AccountID: id, Kind: claims.Kind}}, nil
}

// Blacklist marks a token as revoked until it would have expired anyway.
func (v *Verifier) Blacklist(ctx context.Context, tokenStr string, ttl time.Duration) error {
	if v.blacklist == nil {
		return nil
	}
	return v.blacklist.Set(ctx, blacklistKey(tokenStr), 1, ttl).Err()
}

// Sign mints a token for the given account. Used by the account service in
// production and by tests here.
func Sign(secret string, ref models.AccountRef, ttl time.Duration) (string, error) {
	claims := Claims{
		AccountID: ref.AccountID.Hex(),
		Kind:      ref.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}
