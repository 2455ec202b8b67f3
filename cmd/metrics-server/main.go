// Command metrics-server runs a standalone Prometheus exporter, kept
// separate from the four RAG services so scraping survives a service
// restart (spec.md's ambient observability stack). It composes
// internal/metrics for the exposition surface and adds one domain gauge of
// its own: per-service liveness, polled from each binary's /healthz.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"ragsuite/internal/config"
	"ragsuite/internal/metrics"
)

// serviceTarget is one ragsuite binary this exporter polls for liveness.
type serviceTarget struct {
	name string
	url  string
}

func main() {
	cfg := config.Load()
	reg := metrics.New("metrics-server")

	targets := []serviceTarget{
		{"ingestion", cfg.IngestionAPIURL},
		{"inference-gateway", cfg.InferenceAPIURL},
		{"reranker", cfg.RerankerAPIURL},
		{"orchestrator", cfg.OrchestratorAPIURL},
	}

	serviceUp := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ragsuite_service_up", Help: "1 if the service's /healthz responded 200, 0 otherwise."},
		[]string{"service"},
	)
	reg.Registerer().MustRegister(serviceUp)

	client := &http.Client{Timeout: 5 * time.Second}
	pollTargets := func() {
		for _, target := range targets {
			up := 0.0
			resp, err := client.Get(target.url + "/healthz")
			if err == nil {
				if resp.StatusCode == http.StatusOK {
					up = 1
				}
				resp.Body.Close()
			}
			serviceUp.WithLabelValues(target.name).Set(up)
		}
	}
	pollTargets()

	stopPolling := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pollTargets()
			case <-stopPolling:
				return
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), reg.Middleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", reg.Handler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: r}

	go srv.ListenAndServe()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	close(stopPolling)
	srv.Close()
}
