package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"snapfixer/internal/api"
	"snapfixer/internal/catalog"
	"snapfixer/internal/config"
	"snapfixer/internal/database"
	"snapfixer/internal/jobs"
	"snapfixer/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("db_sslmode", cfg.Database.SSLMode),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	rules, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("load rule catalog: %v", err)
	}
	logger.Info("rule catalog loaded", slog.Int("rules", len(rules.Entries())))

	service := jobs.NewService(db, storageClient, logger, jobs.Config{
		Retention:   cfg.Jobs.Retention,
		Queue:       cfg.Jobs.Queue,
		TaskTimeout: cfg.Jobs.TaskTimeout,
	}, jobs.WithQueue(asynqClient))

	policy := api.UploadPolicy{
		MaxBytes:          cfg.Upload.MaxBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		AllowedMIMETypes:  cfg.Upload.AllowedMIMETypes,
		ClamdAddr:         cfg.Upload.ClamdAddr,
	}
	limit := api.RateLimit{Limit: cfg.Upload.RateLimit, Window: cfg.Upload.RateWindow}

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Handlers{
		Photos:         api.NewPhotoHandler(service, rules, redisClient, policy, limit),
		Rules:          api.NewRulesHandler(rules),
		Ws:             api.NewWsHandler(api.NewRedisStatusSubscriber(redisClient), service, cfg.API.AllowedOrigins),
		Internal:       api.NewInternalHandler(service),
		InternalSecret: cfg.API.InternalSecret,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("addr", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
