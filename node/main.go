// Command node runs a local escrowed auction network behind a JSON socket.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cloudx-io/escrowauction/core"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := NewLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys, err := NewKeyManager()
	if err != nil {
		logger.Fatal("failed to initialize key manager", zap.Error(err))
	}
	node := NewNode(cfg, logger, keys, core.SystemClock())

	if cfg.App.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.App.MetricsAddr, logger)
	}

	listener, err := Listen(cfg)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	server := NewServer(node, logger, cfg.Server.MaxWorkers, cfg.Server.ReadTimeout)
	if err := server.Serve(ctx, listener); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
