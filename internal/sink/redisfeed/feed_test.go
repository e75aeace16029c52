package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

func TestFeed_MirrorTrims(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis integration test")
	}
	key := fmt.Sprintf("netprobe:test:%d", time.Now().UnixNano())
	f, err := New(Config{Addr: addr, Key: key, MaxLen: 3})
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	defer f.Close()
	ctx := context.Background()
	defer f.client.Del(ctx, key)

	for i := 0; i < 5; i++ {
		ev := domain.NewEvent(domain.Sample{
			Kind:     domain.KindTCP,
			TargetID: fmt.Sprintf("t%d", i),
			TCP:      &domain.TCPDetail{Host: "127.0.0.1", Port: 9},
		})
		if err := f.Mirror(ctx, ev); err != nil {
			t.Fatalf("mirror: %v", err)
		}
	}

	vals, err := f.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("want 3 entries after trim, got %d", len(vals))
	}
	var last domain.Event
	if err := json.Unmarshal([]byte(vals[2]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Data.TargetID != "t4" {
		t.Fatalf("want newest last, got %q", last.Data.TargetID)
	}
}

func TestNewWithClient_Defaults(t *testing.T) {
	f := NewWithClient(nil, " ", 0)
	if f.key != "netprobe:events" || f.maxLen != 10000 {
		t.Fatalf("defaults not applied: %+v", f)
	}
}
