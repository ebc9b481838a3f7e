package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"snapfixer/internal/config"
	"snapfixer/internal/database"
	"snapfixer/internal/jobs"
	"snapfixer/internal/metrics"
	"snapfixer/internal/storage"
	"snapfixer/internal/tasks"
	"snapfixer/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	processor, err := worker.NewPipeline(cfg.Segmenter, cfg.Face, logger)
	if err != nil {
		log.Fatalf("init photo pipeline: %v", err)
	}

	service := jobs.NewService(db, storageClient, logger, jobs.Config{
		Retention:   cfg.Jobs.Retention,
		Queue:       cfg.Jobs.Queue,
		TaskTimeout: cfg.Jobs.TaskTimeout,
	}, jobs.WithProcessor(processor))

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues:      map[string]int{cfg.Jobs.Queue: 1},
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypePhotoProcess, worker.NewPhotoTaskHandler(service, redisClient, logger))
	mux.Handle(tasks.TypePhotoSweep, worker.NewSweepTaskHandler(service, logger))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(cfg.Jobs.SweepSchedule, tasks.NewPhotoSweepTask(),
		asynq.Queue(cfg.Jobs.Queue),
		asynq.MaxRetry(0),
	); err != nil {
		log.Fatalf("register sweep schedule: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}()

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.String("queue", cfg.Jobs.Queue),
		slog.String("sweep_schedule", cfg.Jobs.SweepSchedule),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
