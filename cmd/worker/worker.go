package main

import (
	"context"
	"log"
	"time"

	"cv-rag-platform/internal/ai"
	"cv-rag-platform/internal/config"
	"cv-rag-platform/internal/logger"
	"cv-rag-platform/internal/queue"
	"cv-rag-platform/internal/telemetry"
	"cv-rag-platform/services"

	"github.com/hibiken/asynq"
)

const workerConcurrency = 10

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg, "worker")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	store := services.NewCVStore(mongoClient.Database(cfg.DBName))

	embedder, err := ai.NewEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure queue:", err)
	}

	// Pending and failed CVs are re-enqueued from here; asynq.Unique keeps
	// this from doubling up with uploads still in the queue.
	enqueuer := queue.NewEnqueuer(redisOpt)
	defer enqueuer.Close()
	reconciler := services.NewReconciler(store, enqueuer, cfg.ReconcileInterval)
	if err := reconciler.Start(); err != nil {
		logger.Warn("Embedding reconciler not started", "error", err)
	}
	defer reconciler.Stop()

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(store, embedder, cfg.VectorDimensions, metrics)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskEmbedCV, processor.EmbedCV)

	logger.Info("Starting embedding worker",
		"concurrency", workerConcurrency,
		"provider", cfg.EmbeddingsProvider,
		"dimensions", cfg.VectorDimensions)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
