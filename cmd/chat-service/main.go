package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yg10008/GuildHire-YG/internal/auth"
	"github.com/yg10008/GuildHire-YG/internal/config"
	"github.com/yg10008/GuildHire-YG/internal/directory"
	"github.com/yg10008/GuildHire-YG/internal/events"
	"github.com/yg10008/GuildHire-YG/internal/handlers"
	"github.com/yg10008/GuildHire-YG/internal/logger"
	"github.com/yg10008/GuildHire-YG/internal/repository"
	"github.com/yg10008/GuildHire-YG/internal/server"
	"github.com/yg10008/GuildHire-YG/internal/service"
	"github.com/yg10008/GuildHire-YG/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("CHAT_JWT_SECRET is required")
	}

	zlog, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	mc, err := repository.NewMongoClient(ctx, cfg)
	if err != nil {
		zlog.Fatalw("mongo init failed", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	chatRepo := repository.NewChatRepository(db)
	if err := chatRepo.EnsureIndexes(ctx); err != nil {
		zlog.Fatalw("chat index creation failed", "err", err)
	}

	// redis backs the token blacklist and the profile cache; both degrade
	// gracefully when it is not configured
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warnw("redis unreachable, blacklist and profile cache disabled", "err", err)
			rdb = nil
		}
	}

	var resolver directory.ProfileResolver = directory.NewMongoDirectory(db)
	if rdb != nil {
		resolver = directory.NewCachedResolver(resolver, rdb, zlog)
	}

	verifier := auth.NewVerifier(cfg.JWT.Secret, rdb)
	hub := ws.NewHub(zlog)

	var sink service.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer func() { _ = pub.Close() }()
		sink = pub
	}

	chatSvc := service.NewChatService(chatRepo, resolver, hub, sink, zlog)
	gateway := ws.NewGateway(hub, verifier, resolver, chatSvc, cfg, zlog)
	chatHandler := handlers.NewChatHandler(chatSvc, zlog)

	app := server.New(cfg, chatHandler, gateway, verifier, zlog)

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(fmt.Sprintf(":%d", cfg.App.Port))
	}()
	zlog.Infow("chat service started", "port", cfg.App.Port, "env", cfg.App.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case sig := <-quit:
		zlog.Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Warnw("shutdown error", "err", err)
	}
}
