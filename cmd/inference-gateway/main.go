// Command inference-gateway fronts an Ollama-compatible runtime with an
// OpenAI-compatible HTTP surface (spec.md §2, §6).
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
	"ragsuite/internal/config"
	"ragsuite/internal/inference"
	"ragsuite/internal/logging"
	"ragsuite/internal/metrics"
	"ragsuite/internal/observability/tracing"
	"ragsuite/internal/opmanager"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New("inference-gateway", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCtx := context.Background()
	shutdownTracing, err := tracing.Init(rootCtx, "inference-gateway")
	if err != nil {
		logger.Warn("tracing unavailable", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	metricsReg := metrics.New("inference-gateway")

	client := inference.NewOllamaClient(cfg.OllamaURL, cfg.HTTPTimeout)
	ops := opmanager.New()
	gateway := inference.NewGateway(client, ops, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), apierr.Middleware(), metricsReg.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", metricsReg.Handler())
	gateway.RegisterRoutes(r.Group("/v1"))

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
	if addr := os.Getenv("RAGSUITE_INFERENCE_ADDR"); addr != "" {
		return addr
	}
	return ":8081"
}
