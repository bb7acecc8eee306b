// Package service 体征采集服务组装
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maryammo2000/fast-flow-web/common/database"
	mqttcommon "github.com/maryammo2000/fast-flow-web/common/mqtt"
	rediscommon "github.com/maryammo2000/fast-flow-web/common/redis"
	"github.com/maryammo2000/fast-flow-web/internal/cache"
	"github.com/maryammo2000/fast-flow-web/internal/config"
	"github.com/maryammo2000/fast-flow-web/internal/consumer"
	"github.com/maryammo2000/fast-flow-web/internal/detector"
	"github.com/maryammo2000/fast-flow-web/internal/extractor"
	"github.com/maryammo2000/fast-flow-web/internal/httpapi"
	"github.com/maryammo2000/fast-flow-web/internal/sampler"
	"github.com/maryammo2000/fast-flow-web/internal/session"
	"github.com/maryammo2000/fast-flow-web/internal/sink"
	"github.com/maryammo2000/fast-flow-web/internal/submit"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var errMQTTDisconnected = errors.New("mqtt disconnected")

// CollectorService 体征采集服务
type CollectorService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	manager     *session.Manager
	rowSink     sink.RowSink
	consumer    *consumer.FrameConsumer
	server      *http.Server
}

// NewCollectorService 创建体征采集服务
func NewCollectorService(cfg *config.Config, logger *zap.Logger) (*CollectorService, error) {
	s := &CollectorService{
		config: cfg,
		logger: logger,
	}

	// 初始化Redis（实时缓存，stream 持久化端也使用）
	s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
		s.closeConnections()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 只有 postgres 持久化端需要数据库
	if cfg.Sink.Type == sink.TypePostgres {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.closeConnections()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
	}

	rowSink, err := sink.New(cfg, sink.Deps{DB: s.db, Redis: s.redisClient, Logger: logger})
	if err != nil {
		s.closeConnections()
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}
	if pg, ok := rowSink.(*sink.PostgresSink); ok && cfg.Sink.EnsureSchema {
		if err := pg.EnsureSchema(context.Background()); err != nil {
			s.closeConnections()
			return nil, err
		}
	}
	s.rowSink = rowSink

	// 会话管理
	seed := cfg.Extractor.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	synthetic := extractor.NewSynthetic(seed)
	s.manager = session.NewManager(
		session.Config{
			Sampler: sampler.Config{
				DebounceInterval:   cfg.Sampling.Debounce,
				StabilizationDelay: cfg.Sampling.Stabilization,
			},
			IdleTimeout: cfg.Session.IdleTimeout,
		},
		detector.NewRegionDetector(cfg.Face.MinConfidence, cfg.Face.MinSize),
		synthetic.ForFrame,
		cfg.Vitals.Thresholds,
		logger,
	)

	// 实时缓存
	realtime := cache.NewRealtimeCache(
		cache.NewRedisKVStore(s.redisClient),
		cfg.Cache.RealtimeKeyPrefix,
		cfg.Cache.RealtimeTTL,
		logger,
	)
	s.manager.SetObserver(realtime.Observer())
	s.manager.SetCloseHook(func(ctx context.Context, sessionID string) {
		if err := realtime.Delete(ctx, sessionID); err != nil {
			logger.Warn("Failed to delete realtime view",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	})

	// 摄像头帧事件
	if cfg.Camera.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.closeConnections()
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		s.mqttClient = mqttClient
		s.consumer = consumer.NewFrameConsumer(mqttClient, s.manager, cfg.Camera.TopicFrame, cfg.MQTT.QoS, logger)
	}

	// HTTP
	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes(s.healthChecks())
	router.RegisterSessionRoutes(httpapi.NewSessionHandler(
		s.manager,
		submit.NewSubmitter(rowSink, logger),
		realtime,
		logger,
	))
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start 启动服务，阻塞到 HTTP 服务退出
func (s *CollectorService) Start(ctx context.Context) error {
	s.logger.Info("Starting collector service components")

	go s.manager.Run(ctx)

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("Frame consumer failed", zap.Error(err))
			}
		}()
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.config.HTTP.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *CollectorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping collector service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if s.consumer != nil {
		if err := s.consumer.Stop(shutdownCtx); err != nil {
			s.logger.Error("Error stopping frame consumer", zap.Error(err))
		}
	}

	s.manager.Shutdown(shutdownCtx)

	if s.rowSink != nil {
		if err := s.rowSink.Close(); err != nil {
			s.logger.Error("Error closing sink", zap.Error(err))
		}
	}

	s.closeConnections()

	s.logger.Info("Collector service stopped")
	return nil
}

// healthChecks Redis 必检；启用摄像头入口时检查 MQTT 连接
func (s *CollectorService) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{
		"redis": func(ctx context.Context) error {
			return rediscommon.Ping(ctx, s.redisClient)
		},
	}
	if s.mqttClient != nil {
		checks["mqtt"] = func(ctx context.Context) error {
			if !s.mqttClient.IsConnected() {
				return errMQTTDisconnected
			}
			return nil
		}
	}
	return checks
}

func (s *CollectorService) closeConnections() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}
}
