package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	logpkg "github.com/maryammo2000/fast-flow-web/common/logger"
	"github.com/maryammo2000/fast-flow-web/internal/config"
	"github.com/maryammo2000/fast-flow-web/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "fastflow-collector")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting fastflow-collector service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("sink_type", cfg.Sink.Type),
		zap.Bool("camera_enabled", cfg.Camera.Enabled),
		zap.Duration("debounce", cfg.Sampling.Debounce),
		zap.Duration("stabilization", cfg.Sampling.Stabilization),
	)

	// 创建服务
	collector, err := service.NewCollectorService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create collector service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 在 goroutine 中启动服务
	go func() {
		if err := collector.Start(ctx); err != nil {
			logger.Fatal("Failed to start collector service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := collector.Stop(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
