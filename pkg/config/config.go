package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	// 服务配置
	Server ServerConfig `mapstructure:"server"`

	// 数据目录配置
	Data DataConfig `mapstructure:"data"`

	// 远程数据提供商配置
	Provider ProviderConfig `mapstructure:"provider"`

	// 股票列表刷新配置
	Refresh RefreshConfig `mapstructure:"refresh"`

	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 监听端口
	Mode string `mapstructure:"mode"` // gin 模式 (debug, release, test)
}

// DataConfig 本地数据布局配置
type DataConfig struct {
	Dir           string `mapstructure:"dir"`             // 年度分区目录的根目录
	StockListFile string `mapstructure:"stock_list_file"` // 股票列表文件
	CacheDir      string `mapstructure:"cache_dir"`       // 远程数据缓存目录
	FetchLogFile  string `mapstructure:"fetch_log_file"`  // 拉取日志文件
}

// ProviderConfig 远程数据提供商配置
type ProviderConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`        // 请求超时时间
	MaxRetries    int           `mapstructure:"max_retries"`    // 最大重试次数
	RateLimit     time.Duration `mapstructure:"rate_limit"`     // 请求间隔限制
	UserAgent     string        `mapstructure:"user_agent"`     // 用户代理
	LookbackYears int           `mapstructure:"lookback_years"` // 全量拉取回看年数
}

// RefreshConfig 股票列表定时刷新配置
type RefreshConfig struct {
	Enabled  bool   `mapstructure:"enabled"`   // 是否启用定时刷新
	CronSpec string `mapstructure:"cron_spec"` // cron 表达式
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别 (debug, info, warn, error)
	Format string `mapstructure:"format"` // 日志格式 (text, json)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Mode: "release",
		},
		Data: DataConfig{
			Dir:           "stock",
			StockListFile: "stock_list.csv",
			CacheDir:      "stock_cache",
			FetchLogFile:  "stock_cache/fetch_log.json",
		},
		Provider: ProviderConfig{
			Timeout:       8 * time.Second,
			MaxRetries:    3,
			RateLimit:     200 * time.Millisecond,
			UserAgent:     "StockView/1.0",
			LookbackYears: 10,
		},
		Refresh: RefreshConfig{
			Enabled:  false,
			CronSpec: "0 30 8 * * *", // 每天开盘前刷新
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 加载配置
// 以默认值为基础，叠加配置文件（可选）与 STOCKVIEW_* 环境变量
//
// 每个键都先通过 SetDefault 注册进 viper：Unmarshal 只解码 viper
// 已知的键，环境变量覆盖必须建立在已注册的键上才会生效
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.mode", def.Server.Mode)
	v.SetDefault("data.dir", def.Data.Dir)
	v.SetDefault("data.stock_list_file", def.Data.StockListFile)
	v.SetDefault("data.cache_dir", def.Data.CacheDir)
	v.SetDefault("data.fetch_log_file", def.Data.FetchLogFile)
	v.SetDefault("provider.timeout", def.Provider.Timeout)
	v.SetDefault("provider.max_retries", def.Provider.MaxRetries)
	v.SetDefault("provider.rate_limit", def.Provider.RateLimit)
	v.SetDefault("provider.user_agent", def.Provider.UserAgent)
	v.SetDefault("provider.lookback_years", def.Provider.LookbackYears)
	v.SetDefault("refresh.enabled", def.Refresh.Enabled)
	v.SetDefault("refresh.cron_spec", def.Refresh.CronSpec)
	v.SetDefault("logger.level", def.Logger.Level)
	v.SetDefault("logger.format", def.Logger.Format)

	v.SetEnvPrefix("STOCKVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server port must be in (0, 65535]")
	}

	if c.Data.Dir == "" {
		return errors.New("data dir cannot be empty")
	}

	if c.Data.CacheDir == "" {
		return errors.New("cache dir cannot be empty")
	}

	if c.Data.FetchLogFile == "" {
		return errors.New("fetch log file cannot be empty")
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}

	if c.Provider.MaxRetries < 0 {
		return errors.New("provider max_retries cannot be negative")
	}

	if c.Provider.RateLimit < 0 {
		return errors.New("provider rate_limit cannot be negative")
	}

	if c.Provider.LookbackYears <= 0 {
		return errors.New("provider lookback_years must be positive")
	}

	if c.Refresh.Enabled && c.Refresh.CronSpec == "" {
		return errors.New("refresh cron_spec cannot be empty when refresh is enabled")
	}

	return nil
}
