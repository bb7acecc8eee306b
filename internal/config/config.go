package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/maryammo2000/fast-flow-web/common/config"
	"github.com/maryammo2000/fast-flow-web/internal/vitals"
)

// Config 体征采集服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string // 监听地址，如 ":8080"
	}

	// 摄像头帧事件入口
	Camera struct {
		Enabled    bool   // 是否订阅 MQTT 帧事件
		TopicFrame string // 订阅主题，如 "camera/+/frame"
	}

	// 采样状态机
	Sampling struct {
		Debounce      time.Duration // 两次采样最小间隔，默认 1 秒
		Stabilization time.Duration // 稳定快照预热时长，默认 30 秒
	}

	Session struct {
		IdleTimeout time.Duration // 无帧超过该时长回收会话，默认 10 分钟
	}

	Face struct {
		MinConfidence float64 // 人脸置信度下限
		MinSize       int     // 人脸框最小边长（像素）
	}

	Extractor struct {
		Seed int64 // 0 表示按当前时间
	}

	Sink struct {
		Type  string // postgres | excel | sheet | stream
		Excel struct {
			Path  string
			Sheet string
		}
		Sheet struct {
			URL     string
			Token   string
			Name    string
			Timeout time.Duration
		}
		Stream struct {
			Name   string
			MaxLen int64
		}
		EnsureSchema bool // postgres 启动时建表
	}

	// Redis 实时缓存
	Cache struct {
		RealtimeKeyPrefix string        // 键前缀，如 "fastflow:session:"
		RealtimeTTL       time.Duration // 默认 10 秒
	}

	Vitals struct {
		ThresholdsFile string
		Thresholds     vitals.Thresholds
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "fastflow"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "fastflow-collector"
	cfg.MQTT.QoS = 0
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Camera.Enabled = getEnvBool("MQTT_ENABLED", true)
	cfg.Camera.TopicFrame = getEnv("CAMERA_TOPIC_FRAME", "camera/+/frame")

	cfg.Sampling.Debounce = time.Duration(getEnvInt("SAMPLING_DEBOUNCE_MS", 1000)) * time.Millisecond
	cfg.Sampling.Stabilization = time.Duration(getEnvInt("SAMPLING_STABILIZATION_MS", 30000)) * time.Millisecond
	cfg.Session.IdleTimeout = time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_SEC", 600)) * time.Second

	cfg.Face.MinConfidence = getEnvFloat("FACE_MIN_CONFIDENCE", 0.5)
	cfg.Face.MinSize = getEnvInt("FACE_MIN_SIZE", 0)
	cfg.Extractor.Seed = int64(getEnvInt("EXTRACTOR_SEED", 0))

	cfg.Sink.Type = getEnv("SINK_TYPE", "excel")
	cfg.Sink.Excel.Path = getEnv("SINK_EXCEL_PATH", "fast_flow_data.xlsx")
	cfg.Sink.Excel.Sheet = getEnv("SINK_EXCEL_SHEET", "Fast Flow Data")
	cfg.Sink.Sheet.URL = getEnv("SINK_SHEET_URL", "")
	cfg.Sink.Sheet.Token = getEnv("SINK_SHEET_TOKEN", "")
	cfg.Sink.Sheet.Name = getEnv("SINK_SHEET_NAME", "Fast Flow Data")
	cfg.Sink.Sheet.Timeout = time.Duration(getEnvInt("SINK_SHEET_TIMEOUT_SEC", 10)) * time.Second
	cfg.Sink.Stream.Name = getEnv("SINK_STREAM", "vital:submissions:stream")
	cfg.Sink.Stream.MaxLen = int64(getEnvInt("SINK_STREAM_MAXLEN", 10000))
	cfg.Sink.EnsureSchema = getEnvBool("SINK_ENSURE_SCHEMA", true)

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "fastflow:session:")
	cfg.Cache.RealtimeTTL = time.Duration(getEnvInt("CACHE_REALTIME_TTL", 10)) * time.Second

	cfg.Vitals.Thresholds = vitals.DefaultThresholds()
	cfg.Vitals.ThresholdsFile = getEnv("VITALS_THRESHOLDS_FILE", "")
	if cfg.Vitals.ThresholdsFile != "" {
		t, err := vitals.LoadThresholdsFile(cfg.Vitals.ThresholdsFile, cfg.Vitals.Thresholds)
		if err != nil {
			return nil, err
		}
		cfg.Vitals.Thresholds = t
	}
	cfg.Vitals.Thresholds.Temperature.Max = getEnvFloat("VITALS_TEMP_MAX", cfg.Vitals.Thresholds.Temperature.Max)
	cfg.Vitals.Thresholds.Systolic.Max = getEnvFloat("VITALS_SYSTOLIC_MAX", cfg.Vitals.Thresholds.Systolic.Max)
	cfg.Vitals.Thresholds.Diastolic.Max = getEnvFloat("VITALS_DIASTOLIC_MAX", cfg.Vitals.Thresholds.Diastolic.Max)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Sampling.Debounce <= 0 {
		return fmt.Errorf("SAMPLING_DEBOUNCE_MS must be positive")
	}
	if c.Sampling.Stabilization <= 0 {
		return fmt.Errorf("SAMPLING_STABILIZATION_MS must be positive")
	}
	switch c.Sink.Type {
	case "postgres", "excel", "sheet", "stream":
	default:
		return fmt.Errorf("unknown SINK_TYPE: %s", c.Sink.Type)
	}
	return c.Vitals.Thresholds.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}
