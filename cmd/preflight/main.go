// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/config"
	"github.com/hamed0406/netprobe/internal/repo/postgres"
	"github.com/hamed0406/netprobe/internal/sink/redisfeed"
	"github.com/hamed0406/netprobe/internal/targets"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fail("config: " + err.Error())
	}
	ok("API_ADDR=" + cfg.Addr)

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (config changes would be open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; admin keys are required for reads too.")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(strings.TrimSpace(os.Getenv(name)), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	st, err := targets.LoadFile(cfg.TargetsFile)
	if err != nil {
		fail("targets: " + err.Error())
	}
	ok(fmt.Sprintf("targets: %d tcp, %d dns, %d http", len(st.TCP), len(st.DNS), len(st.HTTP)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; samples and rollups stay in memory.")
	} else {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
		if err != nil {
			fail("DATABASE_URL: " + err.Error())
		}
		_ = pg.Close()
		ok("DATABASE_URL reachable")
	}

	if cfg.RedisAddr != "" {
		feed, err := redisfeed.New(redisfeed.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			warn("REDIS_ADDR unreachable; the event mirror will be disabled: " + err.Error())
		} else {
			_ = feed.Close()
			ok("REDIS_ADDR reachable")
		}
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts go to the log only.")
	}

	ok("preflight passed")
}
