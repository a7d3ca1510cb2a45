package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/logger"
	"bugtrack/backend/internal/mailer"
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/storage"
	"bugtrack/backend/internal/storage/memory"
	"bugtrack/backend/internal/storage/postgres"
	"bugtrack/backend/internal/storage/redis"
	sqlstore "bugtrack/backend/internal/storage/sql"
)

// main 独立的邮件投递任务：周期性 drain 通知队列。
// 配合 email.send_using_cron 使用，服务进程只入队，投递交给本任务。
func main() {
	var (
		interval = flag.Duration("interval", time.Minute, "投递轮询间隔")
		once     = flag.Bool("once", false, "只 drain 一次后退出")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 队列存储与服务进程共享：Postgres 走 pgx 队列存储，MySQL 走 GORM，
	// 否则退回内存存储（只用于本地验证，和服务进程不共享数据）
	var queueStore storage.EmailQueueRepository
	switch {
	case cfg.Database.Type == "postgres" && cfg.Database.DSN != "":
		pgStore, err := postgres.NewQueueStore(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to postgres queue: %v", err))
		}
		defer pgStore.Close() //nolint:errcheck
		queueStore = pgStore
	case cfg.Database.Type != "" && cfg.Database.DSN != "":
		store, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		defer store.Close() //nolint:errcheck
		queueStore = store
	default:
		queueStore = memory.NewStore()
		log.Warn("no database configured, using memory queue store")
	}

	var claimer notify.Claimer
	if cfg.Redis.Enabled {
		redisClaimer, err := redis.NewClaimer(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ClaimTTL)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisClaimer.Close() //nolint:errcheck
		claimer = redisClaimer
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	transport := mailer.NewSMTPTransport(cfg.Email, log)
	defer transport.Close() //nolint:errcheck

	queue := notify.NewQueue(queueStore, transport, claimer, cfg, nil, hostname, log)

	log.Info("mailer started",
		zap.Duration("interval", *interval),
		zap.Bool("once", *once),
		zap.String("smtp_host", cfg.Email.SMTPHost),
	)

	drain := func() {
		depth, err := queueStore.QueueDepth()
		if err != nil {
			log.Error("failed to read queue depth", zap.Error(err))
			return
		}
		if depth == 0 {
			return
		}
		log.Info("draining email queue", zap.Int("depth", depth))
		if err := queue.Drain(ctx, false); err != nil {
			log.Warn("queue drain incomplete", zap.Error(err))
		}
	}

	drain()
	if *once {
		log.Info("single drain complete")
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("mailer stopped")
			return
		case <-ticker.C:
			drain()
		}
	}
}
