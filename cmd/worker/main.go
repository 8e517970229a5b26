package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"craftResume/internal/config"
	"craftResume/internal/database"
	"craftResume/internal/metrics"
	"craftResume/internal/storage"
	"craftResume/internal/tasks"
	"craftResume/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
	})

	reconcileHandler := worker.NewReconcileHandler(db, storageClient, logger, cfg.Reconciler.GracePeriod)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMiddleware())
	mux.Handle(tasks.TypeStorageReconcile, reconcileHandler)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	reconcileTask, err := tasks.NewStorageReconcileTask("resumes/")
	if err != nil {
		log.Fatalf("build reconcile task: %v", err)
	}
	entryID, err := scheduler.Register("@every "+cfg.Reconciler.Interval.String(), reconcileTask)
	if err != nil {
		log.Fatalf("register reconcile schedule: %v", err)
	}
	logger.Info("reconcile sweep scheduled",
		slog.String("entry_id", entryID),
		slog.Duration("interval", cfg.Reconciler.Interval),
	)

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", slog.Any("error", err))
		}
	}()

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
