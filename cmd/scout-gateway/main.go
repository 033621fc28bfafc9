package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"scout-gateway/common/logger"
	"scout-gateway/internal/config"
	"scout-gateway/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const serviceName = "scout-gateway"

func main() {
	flagSet := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", os.Getenv("SCOUT_CONFIG"), "path to YAML config file (env overrides still apply)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting scout-gateway service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("inbound_topic", cfg.Bridge.Topics.Inbound),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.Bool("db_enabled", cfg.DBEnabled),
	)

	// 创建服务
	gatewayService, err := service.NewGatewayService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create gateway service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gatewayService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start gateway service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := gatewayService.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
