package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caresync-health/booking-platform/pkg/logging"
)

// Cache is a short-TTL redis cache for availability reads. Misses and
// redis failures fall through to the calculator; stale hits are tolerated
// because the ledger re-checks under lock on every write.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates an availability cache.
func NewCache(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{redis: redisClient, ttl: ttl, logger: logger}
}

func cacheKey(doctorID, branchID string, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s:%s", doctorID, branchID, date.Format(time.DateOnly))
}

// Get returns a cached availability if present.
func (c *Cache) Get(ctx context.Context, doctorID, branchID string, date time.Time) (*SlotAvailability, bool) {
	data, err := c.redis.Get(ctx, cacheKey(doctorID, branchID, date)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("availability cache read failed", "error", err)
		return nil, false
	}
	var out SlotAvailability
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("availability cache decode failed", "error", err)
		return nil, false
	}
	return &out, true
}

// Set stores an availability snapshot. Failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, avail *SlotAvailability) {
	data, err := json.Marshal(avail)
	if err != nil {
		c.logger.Warn("availability cache encode failed", "error", err)
		return
	}
	date, err := time.Parse(time.DateOnly, avail.Date)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(avail.DoctorID, avail.BranchID, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "error", err)
	}
}

// Invalidate drops the cached snapshot for a doctor's day. Called after
// every mutating ledger operation touching that day.
func (c *Cache) Invalidate(ctx context.Context, doctorID, branchID string, date time.Time) {
	if c == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKey(doctorID, branchID, date)).Err(); err != nil {
		c.logger.Warn("availability cache invalidate failed", "error", err)
	}
}
