package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"alfred/common/config"

	"github.com/joho/godotenv"
)

// Config Alfred 伴侣服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 设备配置
	Device struct {
		ID           string // 可穿戴设备标识，如 "alfred-01"
		TopicPrefix  string // 主题前缀，如 "alfred"
		StreamName   string // 原始值镜像的 Redis Stream
		StreamMaxLen int64
	}

	// 当前登录用户（启动时绑定，可通过 HTTP 会话接口修改）
	UserID string

	// 紧急报警配置
	Alert struct {
		CountdownSeconds int           // 取消窗口（秒），默认 10
		TickInterval     time.Duration // 倒计时步长，默认 1s
		HapticInterval   time.Duration // 振动重复间隔，默认 1s
		StateKeyPrefix   string        // 报警状态缓存键前缀，如 "alfred:alert:"
		StateTTL         time.Duration
	}

	// 联系人缓存
	Contacts struct {
		CacheKeyPrefix string
		CacheTTL       time.Duration // 默认 24 小时
	}

	// 短信网关（Twilio 兼容）
	SMS struct {
		BaseURL    string
		AccountSID string
		AuthToken  string
		From       string
		Timeout    time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// 当前目录存在 .env 时先加载，已设置的环境变量优先
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "alfred",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  2,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       "alfred-companion",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Device.ID = getEnv("DEVICE_ID", "alfred-01")
	cfg.Device.TopicPrefix = getEnv("DEVICE_TOPIC_PREFIX", "alfred")
	cfg.Device.StreamName = getEnv("DEVICE_STREAM", "alfred:device:stream")
	cfg.Device.StreamMaxLen = 10000

	cfg.UserID = getEnv("ALFRED_USER_ID", "")

	cfg.Alert.CountdownSeconds = parseInt(getEnv("ALERT_COUNTDOWN_SECONDS", "10"), 10)
	cfg.Alert.TickInterval = time.Second
	cfg.Alert.HapticInterval = time.Second
	cfg.Alert.StateKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "alfred:alert:")
	cfg.Alert.StateTTL = 60 * time.Second

	cfg.Contacts.CacheKeyPrefix = getEnv("CACHE_CONTACTS_PREFIX", "alfred:contacts:")
	cfg.Contacts.CacheTTL = 24 * time.Hour

	cfg.SMS.BaseURL = getEnv("SMS_BASE_URL", "https://api.twilio.com")
	cfg.SMS.AccountSID = getEnv("TWILIO_ACCOUNT_SID", "")
	cfg.SMS.AuthToken = getEnv("TWILIO_AUTH_TOKEN", "")
	cfg.SMS.From = getEnv("TWILIO_PHONE_NUMBER", "")
	cfg.SMS.Timeout = parseDuration(getEnv("SMS_TIMEOUT", "15s"), 15*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
