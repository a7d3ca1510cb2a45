package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bugtrack/backend/internal/access"
	"bugtrack/backend/internal/cache"
	"bugtrack/backend/internal/config"
	"bugtrack/backend/internal/health"
	"bugtrack/backend/internal/lang"
	"bugtrack/backend/internal/logger"
	"bugtrack/backend/internal/mailer"
	"bugtrack/backend/internal/monitoring"
	"bugtrack/backend/internal/notify"
	"bugtrack/backend/internal/plugin"
	"bugtrack/backend/internal/service"
	"bugtrack/backend/internal/storage"
	"bugtrack/backend/internal/storage/memory"
	"bugtrack/backend/internal/storage/redis"
	sqlstore "bugtrack/backend/internal/storage/sql"
	httptransport "bugtrack/backend/internal/transport/http"
)

// main 启动缺陷通知服务的 HTTP 入口。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting bugtrack server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Bool("email_enabled", cfg.Email.Enabled),
	)

	// 存储层：配置了数据库用 SQL 存储，否则退回内存存储
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close() //nolint:errcheck

	metrics := monitoring.NewMetrics()
	checker := health.NewChecker(store)

	// 可选的 Redis 投递认领
	var claimer notify.Claimer
	if cfg.Redis.Enabled {
		redisClaimer, err := redis.NewClaimer(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ClaimTTL)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisClaimer.Close() //nolint:errcheck
		claimer = redisClaimer
		checker.AddReadinessCheck("redis", redisClaimer.Health)
		log.Info("redis delivery claim enabled", zap.String("address", cfg.Redis.Address))
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	// 通知流水线
	policy := access.NewPolicy(store, cfg.Access)
	hooks := plugin.NewBus()
	catalog := lang.NewCatalog(cfg.Email.DefaultLanguage, cfg.Email.FallbackLang)
	noteCache := cache.NewNoteCache(store)
	transport := mailer.NewSMTPTransport(cfg.Email, log)
	defer transport.Close() //nolint:errcheck

	queue := notify.NewQueue(store, transport, claimer, cfg, metrics, hostname, log)
	resolver := notify.NewResolver(store, policy, hooks, cfg, metrics, log)
	renderer := notify.NewRenderer(store, policy, noteCache, catalog, hooks, cfg, hostname)
	dispatcher := notify.NewDispatcher(store, policy, resolver, renderer, queue, catalog, cfg, log)

	noteService := service.NewNoteService(store, noteCache, dispatcher, cfg, nil, log)
	bugService := service.NewBugService(store, noteCache, dispatcher, cfg, log)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		BugService:  bugService,
		NoteService: noteService,
		Dispatcher:  dispatcher,
		Queue:       queue,
		Store:       store,
		Metrics:     metrics,
		Health:      checker,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 周期性重试滞留在队列里的邮件；cron 模式下由 cmd/mailer 负责
	if cfg.Email.Enabled && !cfg.Email.SendUsingCron {
		group.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if err := queue.Drain(groupCtx, false); err != nil {
						log.Warn("periodic queue drain failed", zap.Error(err))
					}
				}
			}
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
