package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// LiveCounts mirrors per-campaign active call counts into Redis so other
// processes (the stats API) can report live concurrency. The in-process
// registry stays authoritative for capacity decisions; this mirror is
// best-effort.
type LiveCounts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLiveCounts constructs the mirror with a key TTL.
func NewLiveCounts(client *redis.Client, ttl time.Duration) *LiveCounts {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LiveCounts{client: client, ttl: ttl}
}

// Incr bumps the active count for the campaign.
func (l *LiveCounts) Incr(ctx context.Context, campaignID uuid.UUID) error {
	key := l.key(campaignID)
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("live counts: incr: %w", err)
	}
	return nil
}

// Decr lowers the active count, deleting the key if it would go negative.
func (l *LiveCounts) Decr(ctx context.Context, campaignID uuid.UUID) error {
	script := redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 1 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)
	if _, err := script.Run(ctx, l.client, []string{l.key(campaignID)}).Int(); err != nil {
		return fmt.Errorf("live counts: decr: %w", err)
	}
	return nil
}

// Get returns the mirrored active count for the campaign.
func (l *LiveCounts) Get(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	val, err := l.client.Get(ctx, l.key(campaignID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("live counts: get: %w", err)
	}
	return val, nil
}

func (l *LiveCounts) key(campaignID uuid.UUID) string {
	return fmt.Sprintf("dialer:campaign:%s:active", campaignID.String())
}
