package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"script-to-video-server/adapters"
	"script-to-video-server/config"
	"script-to-video-server/models"
	"script-to-video-server/notify"
	"script-to-video-server/routers"
	"script-to-video-server/routers/api"
	"script-to-video-server/service"
	"script-to-video-server/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	db, err := models.OpenDB(cfg.MySQL.DSN)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	store := models.NewStore(db)

	objects, err := storage.NewMinIOStore(cfg)
	if err != nil {
		logger.Fatal("object store", zap.Error(err))
	}
	uploader := storage.NewUploader(objects,
		cfg.Pipeline.UploadAttempts,
		cfg.Pipeline.BackoffBase(),
		cfg.Pipeline.BackoffMax(),
		logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()

	bridge := notify.NewRedisBridge(redisClient, logger)
	notifier := notify.NewNotifier(store, bridge, logger)

	registry := adapters.NewRegistry(cfg)
	orch := service.NewOrchestrator(store, registry, uploader, notifier, cfg.Pipeline, logger)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password}
	enqueuer := service.NewEnqueuer(redisOpt, logger)
	defer enqueuer.Close()

	processor := service.NewProcessor(redisOpt, cfg.Pipeline.Concurrency, orch, logger)
	if err := processor.Start(); err != nil {
		logger.Fatal("start processor", zap.Error(err))
	}

	handler := api.NewHandler(store, enqueuer, orch, notifier, objects, registry.Voices, logger)
	router := routers.InitRouter(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	processor.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
