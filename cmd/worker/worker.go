package main

import (
	"context"
	"log"
	"time"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/internal/logger"
	"filerepo-extraction/internal/queue"
	"filerepo-extraction/internal/telemetry"
	"filerepo-extraction/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to Postgres (embedding store)
	pool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pool.Close()

	// Connect to MongoDB (file metadata)
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Build services
	files := services.NewMongoFileService(mongoClient, cfg)
	store := services.NewPostgresEmbeddingStore(pool, files, cfg.VectorDim)
	ocr := services.NewOCRClient(cfg)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	embedder, err := services.NewGeminiEmbedder(initCtx, cfg)
	initCancel()
	if err != nil {
		log.Fatal("Failed to init embedder:", err)
	}
	defer embedder.Close()

	if healthy, err := ocr.IsHealthy(context.Background()); !healthy {
		logger.Warn("OCR service unreachable at startup", "url", cfg.OCRServiceURL, "error", err)
	}

	locks := services.NewRedisIndexLocker(rdb, cfg.IndexingTimeout+time.Minute)

	pipeline := services.NewIndexingPipeline(cfg, services.PipelineDeps{
		Extractor:  services.NewPopplerPageExtractor(cfg),
		Recognizer: ocr,
		Embedder:   embedder,
		Store:      store,
		Files:      files,
		Locks:      locks,
		Cache:      rdb,
		Metrics:    metrics,
	})

	// Background sweep of embeddings whose file record is gone
	sweeper := services.NewOrphanSweeper(store, files, cfg.OrphanSweepInterval)
	if err := sweeper.Start(); err != nil {
		logger.Warn("Orphan sweeper failed to start", "error", err)
	}
	defer sweeper.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 20, // Process 20 tasks concurrently
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexEmbeddings, processor.ProcessIndexEmbeddings)

	logger.Info("Starting Asynq worker",
		"concurrency", 20,
		"queues", "critical(6), default(3), low(1)")

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
