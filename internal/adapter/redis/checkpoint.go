// Package redis stores the stream cursor in Redis so a restarted stream
// resumes where the last delivered chunk ended.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

// Checkpoint implements pipeline.CheckpointStore on a single Redis key.
type Checkpoint struct {
	rdb    *goredis.Client
	key    string
	logger *slog.Logger
}

// New connects to addr and verifies the connection with PING.
func New(ctx context.Context, addr, key string, logger *slog.Logger) (*Checkpoint, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if key == "" {
		return nil, errors.New("checkpoint key is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Checkpoint{rdb: rdb, key: key, logger: logger}, nil
}

// Load returns the saved chunk end. ok is false when nothing has been saved.
func (c *Checkpoint) Load(ctx context.Context) (time.Time, bool, error) {
	v, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis GET %s: %w", c.key, err)
	}
	end, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("checkpoint %s: %w", c.key, err)
	}
	return end.UTC(), true, nil
}

// Save records end as the resume point.
func (c *Checkpoint) Save(ctx context.Context, end time.Time) error {
	if err := c.rdb.Set(ctx, c.key, end.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", c.key, err)
	}
	c.logger.Debug("checkpoint saved", "key", c.key, "chunk_end", end.UTC().Format(time.RFC3339))
	return nil
}

// CheckReadiness pings Redis.
func (c *Checkpoint) CheckReadiness(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Checkpoint) Close() error {
	return c.rdb.Close()
}
