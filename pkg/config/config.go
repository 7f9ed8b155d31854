// 包 config 提供 TOML 配置加载、环境变量覆盖与基础校验
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wyfcoding/digitalbank/pkg/logger"
)

// Config 服务配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 鉴权配置
	Auth AuthConfig `mapstructure:"auth"`
	// OTP 配置
	OTP OTPConfig `mapstructure:"otp"`
	// 结算配置
	Settlement SettlementConfig `mapstructure:"settlement"`
	// 转账配置
	Transfer TransferConfig `mapstructure:"transfer"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 通知主题
	NotificationTopic string `mapstructure:"notification_topic"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// AuthConfig 鉴权配置
type AuthConfig struct {
	// JWT 签名密钥
	JWTSecret string `mapstructure:"jwt_secret"`
	// Token 有效期（小时）
	TokenTTL int `mapstructure:"token_ttl"`
}

// OTPConfig OTP 配置
type OTPConfig struct {
	// 验证码位数
	CodeLength int `mapstructure:"code_length"`
	// 有效期（分钟）
	TTLMinutes int `mapstructure:"ttl_minutes"`
	// 单用户窗口内最大签发次数
	MaxIssuesPerWindow int `mapstructure:"max_issues_per_window"`
	// 签发限流窗口（分钟）
	ThrottleWindowMinutes int `mapstructure:"throttle_window_minutes"`
}

// TTL 返回验证码有效期
func (c OTPConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ThrottleWindow 返回签发限流窗口
func (c OTPConfig) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleWindowMinutes) * time.Minute
}

// SettlementConfig 结算配置
type SettlementConfig struct {
	// 乐观锁冲突最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// PENDING 超时（分钟），超过后由对账任务处理
	PendingTimeoutMinutes int `mapstructure:"pending_timeout_minutes"`
	// 对账扫描间隔（分钟）
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
}

// PendingTimeout 返回 PENDING 超时时长
func (c SettlementConfig) PendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutMinutes) * time.Minute
}

// SweepInterval 返回对账扫描间隔
func (c SettlementConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// TransferConfig 转账配置
type TransferConfig struct {
	// 手续费率（如 0.01 表示 1%）
	FeeRate string `mapstructure:"fee_rate"`
	// 单笔最小转账金额
	MinAmount string `mapstructure:"min_amount"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if c.OTP.CodeLength < 4 || c.OTP.CodeLength > 6 {
		return fmt.Errorf("otp code_length must be between 4 and 6, got %d", c.OTP.CodeLength)
	}
	if c.Settlement.MaxRetries <= 0 {
		return fmt.Errorf("settlement max_retries must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("kafka.notification_topic", "banking.notifications")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("auth.token_ttl", 24)
	v.SetDefault("otp.code_length", 6)
	v.SetDefault("otp.ttl_minutes", 15)
	v.SetDefault("otp.max_issues_per_window", 5)
	v.SetDefault("otp.throttle_window_minutes", 10)
	v.SetDefault("settlement.max_retries", 3)
	v.SetDefault("settlement.pending_timeout_minutes", 10)
	v.SetDefault("settlement.sweep_interval_minutes", 5)
	v.SetDefault("transfer.fee_rate", "0.01")
	v.SetDefault("transfer.min_amount", "1.00")
}
