package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Media    MediaConfig    `mapstructure:"media"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	NodeID   int64  `mapstructure:"node_id"`   // 消息 ID 生成器节点号，多实例部署时必须互异
	HTTPAddr string `mapstructure:"http_addr"` // API 监听地址
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MediaConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	URLTTL     time.Duration `mapstructure:"url_ttl"`
	BaseDir    string        `mapstructure:"base_dir"` // 媒体对象落盘目录
}

type SyncConfig struct {
	PageSize          int           `mapstructure:"page_size"`
	UnsendWindow      time.Duration `mapstructure:"unsend_window"`
	StreakPeriod      time.Duration `mapstructure:"streak_period"`
	StreakWarningLead time.Duration `mapstructure:"streak_warning_lead"`
	SnapViewTTL       time.Duration `mapstructure:"snap_view_ttl"`
	WorkerCount       int           `mapstructure:"worker_count"`
	BufferSize        int           `mapstructure:"buffer_size"`
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults 填充缺省值
func applyDefaults(cfg *Config) {
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 30
	}
	if cfg.Sync.UnsendWindow <= 0 {
		cfg.Sync.UnsendWindow = 10 * time.Minute
	}
	if cfg.Sync.StreakPeriod <= 0 {
		cfg.Sync.StreakPeriod = 24 * time.Hour
	}
	if cfg.Sync.StreakWarningLead <= 0 {
		cfg.Sync.StreakWarningLead = 2 * time.Hour
	}
if cfg.Sync.SnapViewTTL <= 0 {
		cfg.Sync.SnapViewTTL = 30 * time.Second
	}
	if cfg.Sync.WorkerCount <= 0 {
		cfg.Sync.WorkerCount = 50
	}
	if cfg.Sync.BufferSize <= 0 {
		cfg.Sync.BufferSize = 4096
	}
	if cfg.Media.URLTTL <= 0 {
		cfg.Media.URLTTL = 5 * time.Minute
	}
	if cfg.Media.BaseDir == "" {
		cfg.Media.BaseDir = "data/media"
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = ":8080"
	}
}
