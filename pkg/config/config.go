package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Messaging MessagingConfig `mapstructure:"messaging" yaml:"messaging"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Mode           string   `mapstructure:"mode" yaml:"mode"`
	StaticDir      string   `mapstructure:"static_dir" yaml:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// 登录接口每个IP每分钟允许的请求数
	LoginRatePerMinute int `mapstructure:"login_rate_per_minute" yaml:"login_rate_per_minute"`
}

type DatabaseConfig struct {
	// mysql | postgres | sqlite
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" yaml:"secret"`
	Expiration time.Duration `mapstructure:"expiration" yaml:"expiration"`
}

type SessionConfig struct {
	// cookie | redis
	Store  string `mapstructure:"store" yaml:"store"`
	Secret string `mapstructure:"secret" yaml:"secret"`
	MaxAge int    `mapstructure:"max_age" yaml:"max_age"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"`
}

type StorageConfig struct {
	Root        string `mapstructure:"root" yaml:"root"`
	MaxFileSize int64  `mapstructure:"max_file_size" yaml:"max_file_size"`
}

type LogConfig struct {
	Level          string `mapstructure:"level" yaml:"level"`
	ProductionMode bool   `mapstructure:"production_mode" yaml:"production_mode"`
	Folder         string `mapstructure:"folder" yaml:"folder"`
}

// 备份由外部调度执行，这里只保存配置
type BackupConfig struct {
	Folder   string `mapstructure:"folder" yaml:"folder"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

type MessagingConfig struct {
	// channel | kafka
	Provider string      `mapstructure:"provider" yaml:"provider"`
	Kafka    KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers" yaml:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group" yaml:"consumer_group"`
	TopicPrefix   string   `mapstructure:"topic_prefix" yaml:"topic_prefix"`
}

type WebSocketConfig struct {
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	WriteWaitSeconds int `mapstructure:"write_wait_seconds" yaml:"write_wait_seconds"`
	PongWaitSeconds  int `mapstructure:"pong_wait_seconds" yaml:"pong_wait_seconds"`
	MaxMessageSize   int `mapstructure:"max_message_size" yaml:"max_message_size"`
}

var GlobalConfig Config

// 示例配置中出现过的占位密钥
var placeholderSecrets = map[string]bool{
	"":              true,
	"change-me":     true,
	"change-me-too": true,
	"secret":        true,
}

// Validate 检查服务端启动前必须设置的项，测试配置不经过这里
func (c Config) Validate() error {
	if placeholderSecrets[strings.TrimSpace(c.JWT.Secret)] {
		return fmt.Errorf("jwt.secret is empty or a placeholder; set SHARESPHERE_JWT_SECRET or run sharesphere-admin init")
	}
	if placeholderSecrets[strings.TrimSpace(c.Session.Secret)] {
		return fmt.Errorf("session.secret is empty or a placeholder; set SHARESPHERE_SESSION_SECRET or run sharesphere-admin init")
	}
	return nil
}

// 项目根目录下的 config 目录
func configDir() string {
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	return filepath.Join(basepath, "config")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.login_rate_per_minute", 20)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/sharesphere.db")
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("session.store", "cookie")
	v.SetDefault("session.max_age", 86400)
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("storage.max_file_size", 50*1024*1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.folder", "logs")
	v.SetDefault("backup.folder", "backups")
	v.SetDefault("backup.schedule", "0 2 * * *")
	v.SetDefault("messaging.provider", "channel")
	v.SetDefault("messaging.kafka.consumer_group", "sharesphere")
	v.SetDefault("messaging.kafka.topic_prefix", "sharesphere")
}

func load(v *viper.Viper) error {
	// .env 中的变量作为环境变量覆盖配置文件
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvPrefix("SHARESPHERE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	GlobalConfig = cfg
	return nil
}

// Init 加载配置。path 为空时使用项目 config 目录下的 config.yaml
func Init(path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}
	return load(v)
}

// 测试用的配置文件
func InitTest() error {
	v := viper.New()
	v.SetConfigName("config.test")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir())
	return load(v)
}

// Default 只包含默认值的配置
func Default() (Config, error) {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return cfg, nil
}

// Save 将配置写为 yaml 文件，已存在的文件不会被覆盖
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
