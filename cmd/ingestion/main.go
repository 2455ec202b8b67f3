// Command ingestion runs the project/document ingestion control plane:
// project CRUD plus the automatic and manual ingestion workflows
// (spec.md §4.9).
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
	"ragsuite/internal/blobstore"
	"ragsuite/internal/config"
	"ragsuite/internal/inference"
	"ragsuite/internal/ingestion"
	"ragsuite/internal/lineage"
	"ragsuite/internal/logging"
	"ragsuite/internal/metrics"
	"ragsuite/internal/observability/tracing"
	"ragsuite/internal/store"
	"ragsuite/internal/vectorstore"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New("ingestion", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCtx := context.Background()
	shutdownTracing, err := tracing.Init(rootCtx, "ingestion")
	if err != nil {
		logger.Warn("tracing unavailable", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	metricsReg := metrics.New("ingestion")

	db, err := store.Open(cfg.SQLiteDataDir, "ingestion.db")
	if err != nil {
		logger.Fatal("open sqlite", zap.Error(err))
	}
	defer db.Close()

	lineageStore, err := lineage.NewStore(db)
	if err != nil {
		logger.Fatal("init lineage schema", zap.Error(err))
	}

	vectors, err := vectorstore.Dial(cfg.QdrantURL)
	if err != nil {
		logger.Fatal("dial qdrant", zap.Error(err))
	}

	ollama := inference.NewOllamaClient(cfg.OllamaURL, cfg.HTTPTimeout)
	embedder := inference.EmbedAdapter{Client: ollama}

	var archiver ingestion.BlobArchiver
	if cfg.MinioEndpoint != "" {
		blobs, err := blobstore.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Warn("minio unavailable, raw blob archival disabled", zap.Error(err))
		} else {
			archiver = blobs
		}
	}

	svc := ingestion.NewService(lineageStore, vectors, embedder, archiver, logger)
	svc.ChatClient = inference.ChatAdapter{Client: ollama}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), apierr.Middleware(), metricsReg.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", metricsReg.Handler())
	ingestion.NewHandler(svc, lineageStore, cfg.QdrantCollectionPrefix).RegisterRoutes(r.Group("/v1"))

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
	if addr := os.Getenv("RAGSUITE_INGESTION_ADDR"); addr != "" {
		return addr
	}
	return ":8090"
}
