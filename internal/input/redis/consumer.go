// Package redis reads raw alerts queued on a Redis list.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertlens/internal/artifact"
	"alertlens/internal/logger"
	"alertlens/internal/normalize"
)

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
	// MaxAlerts stops a drain after this many alerts; zero drains until idle.
	MaxAlerts int
}

// Consumer wraps a Redis list popper.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	maxAlerts    int
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		maxAlerts:    cfg.MaxAlerts,
	}, nil
}

// Pop pops one message from the list. It returns nil, nil when the list
// stayed empty for the block timeout.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Drain pops until the list is idle or the alert limit is reached.
func (c *Consumer) Drain(ctx context.Context) ([]normalize.Record, error) {
	recs, err := Drain(ctx, c, c.maxAlerts)
	if err != nil {
		return nil, fmt.Errorf("drain redis list %s: %w", c.key, err)
	}
	return recs, nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// Popper yields queued messages; nil means the queue is idle.
type Popper interface {
	Pop(ctx context.Context) ([]byte, error)
}

// Drain collects raw alerts from p. A message may hold one alert or any
// layout artifact.DecodeAlertRecords accepts.
func Drain(ctx context.Context, p Popper, max int) ([]normalize.Record, error) {
	var out []normalize.Record
	messages := 0
	for max <= 0 || len(out) < max {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := p.Pop(ctx)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			break
		}
		messages++

		recs, err := artifact.DecodeAlertRecords(msg)
		if err != nil {
			logger.Warnf("Skipping undecodable queued alert message %d: %v", messages, err)
			continue
		}
		out = append(out, recs...)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	logger.Infof("Drained %d alerts from %d queued messages", len(out), messages)
	return out, nil
}
