package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"eventattend/internal/attendance"
)

const keyPrefix = "report:instance:"

// Reports caches instance reports in Redis as JSON. A nil client disables the cache:
// every lookup misses and writes are dropped.
type Reports struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReports builds a report cache. A non-positive ttl keeps entries until invalidated.
func NewReports(client *redis.Client, ttl time.Duration) *Reports {
	if ttl < 0 {
		ttl = 0
	}
	return &Reports{client: client, ttl: ttl}
}

// Key returns the Redis key holding the report of an instance.
func Key(instanceID string) string {
	return keyPrefix + instanceID
}

func (c *Reports) GetInstanceReport(ctx context.Context, instanceID string) (attendance.InstanceReport, bool, error) {
	if c == nil || c.client == nil {
		return attendance.InstanceReport{}, false, nil
	}
	raw, err := c.client.Get(ctx, Key(instanceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return attendance.InstanceReport{}, false, nil
	}
	if err != nil {
		return attendance.InstanceReport{}, false, err
	}
	var rep attendance.InstanceReport
	if err := json.Unmarshal(raw, &rep); err != nil {
		// A stale payload from an older layout is a miss.
		_ = c.client.Del(ctx, Key(instanceID)).Err()
		return attendance.InstanceReport{}, false, nil
	}
	return rep, true, nil
}

func (c *Reports) SetInstanceReport(ctx context.Context, rep attendance.InstanceReport) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(rep.Instance.ID), raw, c.ttl).Err()
}

func (c *Reports) Invalidate(ctx context.Context, instanceID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, Key(instanceID)).Err()
}
