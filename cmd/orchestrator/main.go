// Command orchestrator runs the RAG orchestrator: hybrid retrieval,
// optional reranking, grounded generation, session checkpointing, and
// SSE streaming (spec.md §4.8), plus the session-store API (spec.md
// §4.11) it shares a SQLite data directory with.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragsuite/internal/apierr"
	"ragsuite/internal/cache"
	"ragsuite/internal/checkpoint"
	"ragsuite/internal/config"
	"ragsuite/internal/inference"
	"ragsuite/internal/lineage"
	"ragsuite/internal/logging"
	"ragsuite/internal/metrics"
	"ragsuite/internal/observability/tracing"
	"ragsuite/internal/opmanager"
	"ragsuite/internal/orchestrator"
	"ragsuite/internal/reranker"
	"ragsuite/internal/retrieval"
	"ragsuite/internal/session"
	"ragsuite/internal/store"
	"ragsuite/internal/vectorstore"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New("orchestrator", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCtx := context.Background()
	shutdownTracing, err := tracing.Init(rootCtx, "orchestrator")
	if err != nil {
		logger.Warn("tracing unavailable", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	metricsReg := metrics.New("orchestrator")

	db, err := store.Open(cfg.SQLiteDataDir, "orchestrator.db")
	if err != nil {
		logger.Fatal("open sqlite", zap.Error(err))
	}
	defer db.Close()

	lineageDB, err := store.Open(cfg.SQLiteDataDir, "ingestion.db")
	if err != nil {
		logger.Fatal("open lineage sqlite", zap.Error(err))
	}
	defer lineageDB.Close()

	lineageStore, err := lineage.NewStore(lineageDB)
	if err != nil {
		logger.Fatal("init lineage schema", zap.Error(err))
	}
	checkpointStore, err := checkpoint.NewStore(db)
	if err != nil {
		logger.Fatal("init checkpoint schema", zap.Error(err))
	}
	sessionStore, err := session.NewStore(db)
	if err != nil {
		logger.Fatal("init session schema", zap.Error(err))
	}

	vectors, err := vectorstore.Dial(cfg.QdrantURL)
	if err != nil {
		logger.Fatal("dial qdrant", zap.Error(err))
	}

	var queryCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, query-embedding cache disabled", zap.Error(err))
		} else {
			queryCache = redisCache
		}
	}

	ollama := inference.NewOllamaClient(cfg.OllamaURL, cfg.HTTPTimeout)
	retrievalSvc := retrieval.NewService(lineageStore, vectors, inference.QueryEmbedAdapter{Client: ollama}, queryCache)

	rerankClient := reranker.NewClient(cfg.RerankerAPIURL, cfg.HTTPTimeout)
	rerankAdapter := reranker.OrchestratorAdapter{Client: rerankClient}

	chatAdapter := inference.OrchestratorChatAdapter{Client: ollama}

	orch := orchestrator.New(retrievalSvc, rerankAdapter, chatAdapter, checkpointStore, orchestrator.DefaultPromptSet(), logger)
	ops := opmanager.New()
	handler := orchestrator.NewHandler(orch, ops, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), apierr.Middleware(), metricsReg.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", metricsReg.Handler())

	v1 := r.Group("/v1")
	v1.POST("/generate", handler.Generate)
	v1.POST("/generate/stream", handler.GenerateStream)
	v1.POST("/operations/:operation_id/cancel", func(c *gin.Context) {
		cancelled := ops.Cancel(c.Param("operation_id"))
		c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
	})
	session.NewHandler(sessionStore).RegisterRoutes(v1)

	srv := &http.Server{Addr: getAddr(), Handler: r}

	go func() {
		logger.Info("server.listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutdown.start")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown.error", zap.Error(err))
	}
	logger.Info("shutdown.complete")
}

func getAddr() string {
	if addr := os.Getenv("RAGSUITE_ORCHESTRATOR_ADDR"); addr != "" {
		return addr
	}
	return ":8083"
}
