package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "helpdesk/internal/platform/redis"
	id "helpdesk/pkg/domain"
)

const unreadCacheTTL = 10 * time.Minute

// UnreadCache keeps per-user unread counts in Redis so badge reads skip the
// record store. Every write path that changes a count refreshes the entry;
// the TTL bounds staleness if a writer dies between store and cache.
type UnreadCache struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewUnreadCache(client *platformredis.Client, logger *slog.Logger) *UnreadCache {
	if client == nil {
		return nil
	}
	return &UnreadCache{client: client, logger: logger}
}

func unreadKey(userID id.UserID) string {
	return fmt.Sprintf("notification:unread:%s", userID.String())
}

// Get returns the cached count and whether the entry exists.
func (c *UnreadCache) Get(ctx context.Context, userID id.UserID) (int, bool) {
	val, err := c.client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		if err != goredis.Nil {
			c.logger.WarnContext(ctx, "unread cache read", "user_id", userID.String(), "error", err)
		}
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count. Failures are logged, never propagated.
func (c *UnreadCache) Set(ctx context.Context, userID id.UserID, count int) {
	if err := c.client.Set(ctx, unreadKey(userID), strconv.Itoa(count), unreadCacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread cache write", "user_id", userID.String(), "error", err)
	}
}

// Invalidate drops the entry so the next read recomputes from the store.
func (c *UnreadCache) Invalidate(ctx context.Context, userID id.UserID) {
	if err := c.client.Del(ctx, unreadKey(userID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "unread cache invalidate", "user_id", userID.String(), "error", err)
	}
}
