package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrowauction_node_requests_total",
		Help: "Node requests by type and result code.",
	},
	[]string{"type", "code"},
)

var connectionsRejected = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "escrowauction_node_connections_rejected_total",
		Help: "Connections closed because the worker pool was full.",
	},
)

// serveMetrics exposes the Prometheus registry on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", zap.Error(err))
	}
}
