package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv-rag-platform/internal/ai"
	"cv-rag-platform/internal/auth"
	"cv-rag-platform/internal/config"
	"cv-rag-platform/internal/fingerprint"
	"cv-rag-platform/internal/ingest"
	"cv-rag-platform/internal/logger"
	"cv-rag-platform/internal/queue"
	"cv-rag-platform/internal/redact"
	"cv-rag-platform/internal/telemetry"
	"cv-rag-platform/middleware"
	"cv-rag-platform/routes"
	"cv-rag-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg, "api")
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
	// ConnectMongoDB has already ensured the indexes.
	store := services.NewCVStore(mongoClient.Database(cfg.DBName))

	// Redis backs the ingest lock, rate limiting and token revocation.
	// The API still serves without it.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without lock and rate limit", "error", err)
	} else {
		defer rdb.Close()
	}

	redactor, err := redact.New(redact.WithRuleFile(cfg.RedactionRulesFile))
	if err != nil {
		log.Fatal("Failed to load redaction rules:", err)
	}

	ctx := context.Background()
	scheduler, closeScheduler := buildScheduler(ctx, cfg, store, metrics)
	defer closeScheduler()

	opts := []ingest.Option{
		ingest.WithRecorder(metrics),
		ingest.WithDetectorOptions(
			fingerprint.WithScanLimit(cfg.DuplicateScanLimit),
			fingerprint.WithScanTimeout(cfg.DuplicateScanTimeout),
		),
	}
	if rdb != nil {
		opts = append(opts, ingest.WithLocker(services.NewIngestLock(rdb, cfg.IngestLockTTL)))
	}
	if cfg.CVValidationEnabled {
		validator, err := ai.NewCVValidator(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to initialize CV validator:", err)
		}
		defer validator.Close()
		opts = append(opts, ingest.WithValidator(validator))
	}
	ingester := ingest.NewService(services.NewPDFExtractor(), store, redactor, scheduler, opts...)

	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens, err = auth.NewTokenManager(cfg.JWTSecret, rdb)
		if err != nil {
			log.Fatal("Failed to initialize token auth:", err)
		}
	} else {
		logger.Warn("JWT_SECRET not set, /cvs is unauthenticated")
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "X-Total-Count", "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestIDMiddleware())
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(cfg.ServiceName), middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	// Multipart framing needs some room above the file limit.
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1<<20))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	handler := routes.NewCVHandler(ingester, store, services.NewExportService(store), cfg.MaxFileSize)
	uploadLimit := middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second)
	routes.SetupCVRoutes(router, handler, middleware.NewAuthMiddleware(tokens), uploadLimit)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "queue_enabled", cfg.QueueEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// buildScheduler returns the asynq enqueuer when the queue is enabled.
// Otherwise embedding runs inline and this process also runs the
// reconciler that the worker would normally own.
func buildScheduler(ctx context.Context, cfg *config.Config, store *services.CVStore, metrics *telemetry.Metrics) (ingest.EmbedScheduler, func()) {
	if cfg.QueueEnabled {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Failed to configure queue:", err)
		}
		enqueuer := queue.NewEnqueuer(redisOpt)
		return enqueuer, func() { enqueuer.Close() }
	}

	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	processor := queue.NewTaskProcessor(store, embedder, cfg.VectorDimensions, metrics)
	inline := services.NewInlineEmbedder(processor)

	reconciler := services.NewReconciler(store, inline, cfg.ReconcileInterval)
	if err := reconciler.Start(); err != nil {
		logger.Warn("Embedding reconciler not started", "error", err)
	}

	return inline, func() {
		reconciler.Stop()
		embedder.Close()
	}
}
