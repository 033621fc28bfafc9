package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"scout-gateway/common/config"

	"gopkg.in/yaml.v3"
)

// Config 网关服务配置
// 加载顺序：默认值 -> YAML 文件（可选）-> 环境变量
type Config struct {
	MQTT     config.MQTTConfig     `yaml:"mqtt"`
	Redis    config.RedisConfig    `yaml:"redis"`
	Database config.DatabaseConfig `yaml:"database"`

	RedisEnabled bool `yaml:"redis_enabled"`
	DBEnabled    bool `yaml:"db_enabled"`

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Bridge struct {
		Topics struct {
			Inbound string `yaml:"inbound"` // 转发给浏览器的总线主题
			Pattern string `yaml:"pattern"` // 航线生成参数
			Mission string `yaml:"mission"` // 任务指令
		} `yaml:"topics"`
		// 0 表示无界；> 0 时满队列丢弃最旧消息
		HandoffCapacity int           `yaml:"handoff_capacity"`
		FramePrefix     string        `yaml:"frame_prefix"`
		ClientBuffer    int           `yaml:"client_buffer"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		PingPeriod      time.Duration `yaml:"ping_period"` // 0 表示不发送 ping
		RelayStream     string        `yaml:"relay_stream"`
		RelayStreamMax  int64         `yaml:"relay_stream_max"`
	} `yaml:"bridge"`

	Telemetry struct {
		CSVPath        string        `yaml:"csv_path"`
		ReloadInterval time.Duration `yaml:"reload_interval"`
		SnapshotKey    string        `yaml:"snapshot_key"`
		SnapshotTTL    time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"telemetry"`

	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	Commands struct {
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"commands"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置，path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.MQTT.Broker = "tcp://localhost:1883"
	c.MQTT.ClientID = "scout-gateway"
	c.MQTT.QoS = 1
	c.MQTT.ConnectTimeout = 10 * time.Second

	c.Redis.Addr = "localhost:6379"

	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.User = "postgres"
	c.Database.Password = "postgres"
	c.Database.Database = "scout"
	c.Database.SSLMode = "disable"

	c.HTTP.Addr = ":8000"
	c.HTTP.ReadTimeout = 15 * time.Second
	c.HTTP.IdleTimeout = 60 * time.Second
	c.HTTP.ShutdownTimeout = 5 * time.Second

	c.Bridge.Topics.Inbound = "ros_to_react_topic"
	c.Bridge.Topics.Pattern = "/planning/generate_pattern"
	c.Bridge.Topics.Mission = "/mission_commands"
	c.Bridge.FramePrefix = "📨 ROS2: "
	c.Bridge.ClientBuffer = 256
	c.Bridge.WriteTimeout = 5 * time.Second
	c.Bridge.PingPeriod = 30 * time.Second
	c.Bridge.RelayStream = "scout:relay:stream"
	c.Bridge.RelayStreamMax = 10000

	c.Telemetry.CSVPath = "/home/aseel/data/inference.csv"
	c.Telemetry.SnapshotKey = "scout:telemetry:snapshot"

	c.Artifacts.Dir = "/home/aseel/data"

	c.Commands.RatePerSecond = 5
	c.Commands.Burst = 10

	c.Log.Level = "info"
	c.Log.Format = "json"
}

func (c *Config) loadFromEnv() {
	c.MQTT.LoadFromEnv("MQTT")
	c.Redis.LoadFromEnv("REDIS")
	c.Database.LoadFromEnv("DB")

	c.RedisEnabled = getEnvBool("REDIS_ENABLED", c.RedisEnabled)
	c.DBEnabled = getEnvBool("DB_ENABLED", c.DBEnabled)

	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ShutdownTimeout = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)

	c.Bridge.Topics.Inbound = getEnv("BRIDGE_TOPIC_INBOUND", c.Bridge.Topics.Inbound)
	c.Bridge.Topics.Pattern = getEnv("BRIDGE_TOPIC_PATTERN", c.Bridge.Topics.Pattern)
	c.Bridge.Topics.Mission = getEnv("BRIDGE_TOPIC_MISSION", c.Bridge.Topics.Mission)
	c.Bridge.HandoffCapacity = getEnvInt("HANDOFF_CAPACITY", c.Bridge.HandoffCapacity)
	c.Bridge.FramePrefix = getEnv("BRIDGE_FRAME_PREFIX", c.Bridge.FramePrefix)
	c.Bridge.ClientBuffer = getEnvInt("BRIDGE_CLIENT_BUFFER", c.Bridge.ClientBuffer)
	c.Bridge.WriteTimeout = getEnvDuration("BRIDGE_WRITE_TIMEOUT", c.Bridge.WriteTimeout)
	c.Bridge.PingPeriod = getEnvDuration("BRIDGE_PING_PERIOD", c.Bridge.PingPeriod)
	c.Bridge.RelayStream = getEnv("BRIDGE_RELAY_STREAM", c.Bridge.RelayStream)
	c.Bridge.RelayStreamMax = int64(getEnvInt("BRIDGE_RELAY_STREAM_MAX", int(c.Bridge.RelayStreamMax)))

	c.Telemetry.CSVPath = getEnv("TELEMETRY_CSV_PATH", c.Telemetry.CSVPath)
	c.Telemetry.ReloadInterval = getEnvDuration("TELEMETRY_RELOAD_INTERVAL", c.Telemetry.ReloadInterval)
	c.Telemetry.SnapshotKey = getEnv("TELEMETRY_SNAPSHOT_KEY", c.Telemetry.SnapshotKey)
	c.Telemetry.SnapshotTTL = getEnvDuration("TELEMETRY_SNAPSHOT_TTL", c.Telemetry.SnapshotTTL)

	c.Artifacts.Dir = getEnv("ARTIFACT_DIR", c.Artifacts.Dir)

	if v := os.Getenv("COMMAND_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Commands.RatePerSecond = f
		}
	}
	c.Commands.Burst = getEnvInt("COMMAND_BURST", c.Commands.Burst)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if c.DBEnabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if c.RedisEnabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty when redis is enabled")
	}
	if c.Bridge.Topics.Inbound == "" || c.Bridge.Topics.Pattern == "" || c.Bridge.Topics.Mission == "" {
		return fmt.Errorf("bridge topics cannot be empty")
	}
	if c.Bridge.Topics.Pattern == c.Bridge.Topics.Mission {
		return fmt.Errorf("pattern and mission topics must differ")
	}
	if c.Bridge.HandoffCapacity < 0 {
		return fmt.Errorf("handoff capacity must be >= 0")
	}
	if c.Bridge.ClientBuffer < 1 {
		return fmt.Errorf("client buffer must be at least 1")
	}
	if c.Bridge.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Bridge.PingPeriod < 0 {
		return fmt.Errorf("ping period must be >= 0")
	}
	if c.Telemetry.CSVPath == "" {
		return fmt.Errorf("telemetry csv path cannot be empty")
	}
	if c.Telemetry.ReloadInterval < 0 {
		return fmt.Errorf("telemetry reload interval must be >= 0")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifact dir cannot be empty")
	}
	if c.Commands.RatePerSecond < 0 || c.Commands.Burst < 0 {
		return fmt.Errorf("command rate limit must be >= 0")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
