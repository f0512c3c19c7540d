package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alfred/common/logger"
	"alfred/internal/config"
	"alfred/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "alfred")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	if cfg.UserID == "" {
		log.Warn("ALFRED_USER_ID not set, waiting for login via /api/v1/session")
	}

	// 3. 创建服务
	alfredService, err := service.NewAlfredService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create alfred service", zap.Error(err))
	}

	// 4. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. 启动服务（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := alfredService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serviceErrChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := alfredService.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop alfred service", zap.Error(err))
	}

	log.Info("Alfred service stopped")
}
