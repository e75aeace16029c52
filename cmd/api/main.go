package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/netprobe/internal/bus"
	"github.com/hamed0406/netprobe/internal/config"
	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/httpapi"
	apimw "github.com/hamed0406/netprobe/internal/httpapi/middleware"
	"github.com/hamed0406/netprobe/internal/logging"
	"github.com/hamed0406/netprobe/internal/metrics"
	"github.com/hamed0406/netprobe/internal/notify"
	"github.com/hamed0406/netprobe/internal/probe"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/repo/memory"
	"github.com/hamed0406/netprobe/internal/repo/postgres"
	"github.com/hamed0406/netprobe/internal/ringbuf"
	"github.com/hamed0406/netprobe/internal/rollup"
	"github.com/hamed0406/netprobe/internal/scheduler"
	"github.com/hamed0406/netprobe/internal/sink"
	"github.com/hamed0406/netprobe/internal/sink/redisfeed"
	"github.com/hamed0406/netprobe/internal/targets"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogConsole)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	seed, err := targets.LoadFile(cfg.TargetsFile)
	if err != nil {
		return err
	}
	reg := targets.NewRegistry(seed)

	b := bus.New(cfg.ReplaySize, cfg.SubscriberQueue, m)
	sinks := &sink.Set{
		Bus:     b,
		Ring:    ringbuf.New[domain.Event](cfg.RingSize),
		Store:   store,
		Logger:  logger,
		Metrics: m,
	}
	if cfg.RedisAddr != "" {
		feed, err := redisfeed.New(redisfeed.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
			MaxLen:   cfg.RedisMaxLen,
		})
		if err != nil {
			// the mirror is optional; run without it
			logger.Warn("redis_mirror_disabled", zap.Error(err))
		} else {
			sinks.Mirror = feed
			defer feed.Close()
			logger.Info("redis_mirror_enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	tcp := probe.NewTCPChecker()
	dns := probe.NewDNSChecker()
	web := probe.NewHTTPChecker(cfg.ProbeTimeoutCap)
	var checker probe.Checker = probe.NewMux(tcp, dns, web)
	if cfg.RetryAttempts > 1 {
		checker = &probe.RetryChecker{Inner: checker, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}

	sched := scheduler.New(logger, reg, checker, sinks, m, scheduler.Options{
		PollInterval:   cfg.ConfigPoll,
		MinDelay:       cfg.MinDelay,
		JitterFraction: cfg.JitterFraction,
		TimeoutCap:     cfg.ProbeTimeoutCap,
	})
	engine := rollup.NewEngine(store, rollup.Config{
		Interval:  cfg.RollupInterval,
		Lookback:  cfg.RollupLookback,
		Width:     cfg.RollupBucket,
		Retention: cfg.Retention,
	}, logger, m)

	notifiers := notify.Multi{notify.NewLog(logger)}
	if slack := notify.NewSlack(cfg.SlackWebhookURL); slack != nil {
		notifiers = append(notifiers, slack)
	}
	alerter := scheduler.NewAlerter(b, store, notifiers, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	}, logger)

	api := httpapi.NewServer(logger, reg, sinks, store, httpapi.Probers{TCP: tcp, DNS: dns, HTTP: web})
	api.Gatherer = promReg
	api.Version = version
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// End open streams first so Shutdown does not wait on them.
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return ignoreCanceled(sched.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(engine.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(alerter.Run(gctx)) })

	return g.Wait()
}

// openStore picks Postgres when DATABASE_URL is set, memory otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("store_memory", zap.String("reason", "DATABASE_URL empty; samples are not durable"))
		return memory.New(), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	logger.Info("store_postgres")
	return pg, func() { _ = pg.Close() }, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
