package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"campusmart/internal/auth"
	"campusmart/internal/config"
	"campusmart/internal/database"
	"campusmart/internal/logging"
	"campusmart/internal/queue"
	"campusmart/internal/realtime"
	"campusmart/internal/repository"
	"campusmart/internal/router"
	"campusmart/internal/service"
	rediskit "campusmart/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "campusmart:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// 1. database, schema migrated on open
	db, err := database.OpenWithLogger(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. optional Redis: rate limit, backplane, presence, outbox
	var rdb *rd.Client
	if cfg.RedisEnabled() {
		rdb = rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		defer rdb.Close()
	} else {
		log.Warn("REDIS_ADDR empty: rate limiting, backplane and delivery outbox disabled")
	}

	// 3. live events
	var hubOpts []realtime.HubOption
	var presence realtime.Presence
	var outbox service.Outbox
	if rdb != nil {
		hubOpts = append(hubOpts, realtime.WithBackplane(realtime.NewRedisBackplane(rdb, cfg.EventChannel, log)))
		presence = rediskit.NewPresence(rdb)
		if cfg.OutboxEnabled() {
			outbox = rediskit.NewOutbox(rdb, cfg.OutboxStream)
		}
	}
	hub := realtime.NewHub(realtime.NewMemoryRegistry(), log, hubOpts...)

	// 4. repositories and services
	orderRepo := repository.NewOrderRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	notify := service.NewNotificationService(repository.NewNotificationRepository(db), hub, outbox, log)
	chat := service.NewChatService(db, repository.NewChatRepository(db), catalogRepo, notify, hub, log)
	orders := service.NewOrderService(db, orderRepo, catalogRepo, chat, notify, hub, log)
	reviews := service.NewReviewService(db, reviewRepo, orderRepo, catalogRepo, notify, log)
	admin := service.NewAdminService(db, orderRepo, reviewRepo, catalogRepo, repository.NewAdminRoleRepository(db), notify, log)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// 5. background workers
	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	spawn(hub.Run)

	if outbox != nil {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()

		consumerName := cfg.OutboxConsumer
		if consumerName == "" {
			host, _ := os.Hostname()
			consumerName = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
		}
		relay := queue.NewRelay(rdb, producer, cfg.OutboxStream, cfg.OutboxGroup, consumerName, log)
		spawn(relay.Run)

		if cfg.ConsumerEnabled {
			consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
				queue.LogDeliverer{Log: log}, log)
			defer consumer.Close()
			spawn(consumer.Run)
		}
	}

	// 6. HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	router.Setup(r, router.Deps{
		Tokens:        tokens,
		Users:         catalogRepo,
		Orders:        orders,
		Chat:          chat,
		Notifications: notify,
		Reviews:       reviews,
		Catalog:       service.NewCatalogService(catalogRepo),
		Admin:         admin,
		Socket:        realtime.NewServer(hub, tokens, catalogRepo, chat, presence, log),
		Redis:         rdb,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", slog.String("addr", cfg.HTTPAddr), slog.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("http: %w", err)
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", slog.Any("err", err))
	}
	stop()
	wg.Wait()
	return nil
}
