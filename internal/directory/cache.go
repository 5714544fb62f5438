package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yg10008/GuildHire-YG/internal/models"
)

const profileTTL = 5 * time.Minute

// CachedResolver puts a short-lived Redis cache in front of another
// resolver. Cache failures fall through to the inner resolver.
type CachedResolver struct {
	inner ProfileResolver
	rdb   *redis.Client
	log   *zap.SugaredLogger
}

func NewCachedResolver(inner ProfileResolver, rdb *redis.Client, log *zap.SugaredLogger) *CachedResolver {
	return &CachedResolver{inner: inner, rdb: rdb, log: log}
}

func (c *CachedResolver) Resolve(ctx context.Context, ref models.AccountRef) (*models.Profile, error) {
	key := fmt.Sprintf("profile:%s", ref)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var p models.Profile
		if err := json.Unmarshal(b, &p); err == nil {
			return &p, nil
		}
	}

	p, err := c.inner.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, b, profileTTL).Err(); err != nil {
			c.log.Warnw("profile cache write failed", "ref", ref.String(), "err", err)
		}
	}
	return p, nil
}
