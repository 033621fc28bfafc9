package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"scout-gateway/common/database"
	mqttcommon "scout-gateway/common/mqtt"
	rediscommon "scout-gateway/common/redis"
	"scout-gateway/internal/config"
	"scout-gateway/internal/consumer"
	"scout-gateway/internal/gateway"
	"scout-gateway/internal/handoff"
	"scout-gateway/internal/httpapi"
	"scout-gateway/internal/hub"
	"scout-gateway/internal/repository"
	"scout-gateway/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// GatewayService 组装总线监听、广播、命令网关、识别结果缓存与 HTTP 服务
type GatewayService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	queue    *handoff.Queue
	hub      *hub.Hub
	consumer *consumer.MQTTConsumer
	store    *telemetry.Store
	server   *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGatewayService 创建网关服务。Redis 与 PostgreSQL 按配置可选
func NewGatewayService(cfg *config.Config, logger *zap.Logger) (*GatewayService, error) {
	s := &GatewayService{config: cfg, logger: logger}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	s.mqttClient = mqttClient

	// 可选组件保持接口值为 nil，避免 typed nil
	var (
		relay         consumer.RelayMirror
		snapshotSync  telemetry.SnapshotMirror
		auditRecorder gateway.AuditRecorder
		auditReader   httpapi.AuditReader
	)

	// 初始化Redis
	if cfg.RedisEnabled {
		client, err := rediscommon.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
		relay = rediscommon.NewStreamWriter(client, cfg.Bridge.RelayStream, cfg.Bridge.RelayStreamMax)
		snapshotSync = telemetry.NewKVMirror(telemetry.NewRedisKVStore(client), cfg.Telemetry.SnapshotKey, cfg.Telemetry.SnapshotTTL)
	}

	// 初始化数据库
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(context.Background(), &cfg.Database)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		repo := repository.NewCommandAuditRepository(db, logger)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to prepare command audit table: %w", err)
		}
		auditRecorder = repo
		auditReader = repo
	}

	s.queue = handoff.NewQueue(cfg.Bridge.HandoffCapacity)
	s.hub = hub.NewHub(s.queue, hub.Options{
		FramePrefix:  cfg.Bridge.FramePrefix,
		ClientBuffer: cfg.Bridge.ClientBuffer,
		WriteTimeout: cfg.Bridge.WriteTimeout,
		PingPeriod:   cfg.Bridge.PingPeriod,
	}, logger)
	s.consumer = consumer.NewMQTTConsumer(cfg.Bridge.Topics.Inbound, cfg.MQTT.QoS, mqttClient, s.queue, relay, logger)
	s.store = telemetry.NewStore(cfg.Telemetry.CSVPath, snapshotSync, logger)

	commands := gateway.NewCommandGateway(
		mqttClient,
		gateway.NewDirArtifactStore(cfg.Artifacts.Dir),
		auditRecorder,
		gateway.Topics{Pattern: cfg.Bridge.Topics.Pattern, Mission: cfg.Bridge.Topics.Mission},
		cfg.MQTT.QoS,
		logger,
	)

	handler := httpapi.NewHandler(commands, s.store, s.hub, auditReader, s.Status, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(handler, httpapi.NewCommandLimiter(cfg.Commands.RatePerSecond, cfg.Commands.Burst))

	s.server = &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}
	return s, nil
}

// Start 启动服务：首次加载缓存、订阅总线、启动广播与 HTTP
func (s *GatewayService) Start(ctx context.Context) error {
	s.logger.Info("Starting gateway service components")

	// 文件不存在时以空缓存启动
	if _, err := s.store.Load(ctx); err != nil {
		s.logger.Warn("Initial telemetry load failed", zap.Error(err))
	}

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		if err := s.hub.Run(runCtx); err != nil {
			s.logger.Error("Broadcast hub exited", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		s.store.RunReloader(runCtx, s.config.Telemetry.ReloadInterval)
	}()
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("Gateway service started successfully")
	return nil
}

// Stop 停止服务
func (s *GatewayService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping gateway service")

	// 调用方的 ctx 可能已取消，关闭 HTTP 使用独立超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	// 停止Consumer，队列关闭后 hub.Run 返回
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Error("Error stopping consumer", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.hub.Close()
	s.wg.Wait()

	s.closeClients()

	s.logger.Info("Gateway service stopped")
	return nil
}

// Status 汇总运行状态
func (s *GatewayService) Status() httpapi.Status {
	snap := s.store.Snapshot()
	return httpapi.Status{
		MQTTConnected:     s.mqttClient.IsConnected(),
		StreamClients:     s.hub.Count(),
		Broadcasts:        s.hub.Broadcasts(),
		EvictedClients:    s.hub.Evicted(),
		HandoffDepth:      s.queue.Len(),
		HandoffDropped:    s.queue.Dropped(),
		TelemetryRecords:  snap.Len(),
		TelemetryLoadedAt: snap.LoadedAt(),
	}
}

func (s *GatewayService) closeClients() {
	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	// 关闭Redis
	if s.redis != nil {
		if err := rediscommon.Close(s.redis); err != nil {
			s.logger.Warn("Error closing redis", zap.Error(err))
		}
	}
	// 关闭数据库
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Warn("Error closing database", zap.Error(err))
		}
	}
}
