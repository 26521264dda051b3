package cachesvc

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/notice"
)

const (
	unreadKeyPrefix    = "masomo:notices:unread:"
	unreadGenKeyPrefix = "masomo:notices:unread-gen:"
	defaultUnreadTTL   = 5 * time.Minute
	unreadGenTTL       = 24 * time.Hour
)

// setIfGen stores ARGV[2] at KEYS[1] for ARGV[3] ms, unless the generation at KEYS[2] moved past ARGV[1].
var setIfGen = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// UnreadCache keeps per-user unread notice counts in Redis.
// A nil *UnreadCache is valid and caches nothing.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ notice.UnreadCache = (*UnreadCache)(nil) // interface compliance check

// NewUnreadCache returns nil when no Redis address is configured.
func NewUnreadCache(conf core.RedisConfig) *UnreadCache {
	if conf.Addr == "" {
		return nil
	}
	return NewUnreadCacheWithClient(
		redis.NewClient(&redis.Options{
			Addr:     conf.Addr,
			Password: conf.Password,
			DB:       conf.DB,
		}),
		conf.UnreadTTL,
	)
}

func NewUnreadCacheWithClient(client *redis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = defaultUnreadTTL
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func unreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

func unreadGenKey(userID string) string {
	return unreadGenKeyPrefix + userID
}

func (c *UnreadCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return errors.Wrap(c.client.Ping(ctx).Err(), "pinging redis")
}

// GetUnread returns the cached count. On a miss, gen is the generation to hand back to SetUnread.
func (c *UnreadCache) GetUnread(ctx context.Context, userID string) (int, bool, int64, error) {
	if c == nil {
		return 0, false, 0, nil
	}
	vals, err := c.client.MGet(ctx, unreadKey(userID), unreadGenKey(userID)).Result()
	if err != nil {
		return 0, false, 0, errors.Wrap(err, "getting cached unread count")
	}

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, false, 0, errors.Wrap(err, "parsing unread count generation")
		}
	}
	s, ok := vals[0].(string)
	if !ok {
		return 0, false, gen, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, 0, errors.Wrap(err, "parsing cached unread count")
	}
	return n, true, gen, nil
}

// SetUnread caches count unless userID was invalidated after gen was read.
func (c *UnreadCache) SetUnread(ctx context.Context, userID string, count int, gen int64) error {
	if c == nil {
		return nil
	}
	err := setIfGen.Run(
		ctx,
		c.client,
		[]string{unreadKey(userID), unreadGenKey(userID)},
		strconv.FormatInt(gen, 10), strconv.Itoa(count), c.ttl.Milliseconds(),
	).Err()
	return errors.Wrap(err, "caching unread count")
}

// InvalidateUnread drops the cached counts and bumps their generations in one transaction.
func (c *UnreadCache) InvalidateUnread(ctx context.Context, userIDs ...string) error {
	if c == nil || len(userIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Del(ctx, unreadKey(id))
			pipe.Incr(ctx, unreadGenKey(id))
			pipe.Expire(ctx, unreadGenKey(id), unreadGenTTL)
		}
		return nil
	})
	return errors.Wrap(err, "invalidating unread counts")
}

func (c *UnreadCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
