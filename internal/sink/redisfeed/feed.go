// Package redisfeed mirrors emitted events into a capped Redis list so
// external consumers can tail them.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/hamed0406/netprobe/internal/domain"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	MaxLen   int64
}

type Feed struct {
	client *redis.Client
	key    string
	maxLen int64
}

// New connects and pings Redis.
func New(cfg Config) (*Feed, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis feed: %w", err)
	}
	return NewWithClient(client, cfg.Key, cfg.MaxLen), nil
}

func NewWithClient(client *redis.Client, key string, maxLen int64) *Feed {
	if strings.TrimSpace(key) == "" {
		key = "netprobe:events"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Feed{client: client, key: key, maxLen: maxLen}
}

// Mirror appends ev and trims the list to the newest MaxLen entries.
func (f *Feed) Mirror(ctx context.Context, ev domain.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	pipe := f.client.Pipeline()
	pipe.RPush(ctx, f.key, b)
	pipe.LTrim(ctx, f.key, -f.maxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror event to redis: %w", err)
	}
	return nil
}

func (f *Feed) Close() error {
	return f.client.Close()
}
