package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义邮箱注册表的核心业务配置
type MailboxConfig struct {
	Domain        string        // 邮箱地址使用的域名
	DefaultTTL    time.Duration // 邮箱生存时间，刷新后重新计时，默认 1 小时
	SweepInterval time.Duration // 过期清理任务的执行周期，默认 60 秒
}

// GeneratorConfig 定义模拟邮件生成器的配置
type GeneratorConfig struct {
	MinInterval time.Duration // 两次生成之间的最小间隔，默认 10 秒
	MaxInterval time.Duration // 两次生成之间的最大间隔，默认 25 秒
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	Enabled  bool   // 是否启动 SMTP 接收服务
	BindAddr string // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain   string // SMTP 服务器域名，用于 HELO/EHLO 响应
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// RateLimitConfig 定义创建邮箱的限流配置
type RateLimitConfig struct {
	CreatePerMinute int // 单个 IP 每分钟可创建的邮箱数量，0 表示不限制
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Mailbox   MailboxConfig   // 邮箱注册表配置
	Generator GeneratorConfig // 模拟邮件生成器配置
	SMTP      SMTPConfig      // SMTP 服务配置
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	RateLimit RateLimitConfig // 限流配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPINBOX_
// 例如: TEMPINBOX_SERVER_HOST, TEMPINBOX_MAILBOX_DEFAULT_TTL
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("tempinbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.domain", "temp-inbox.com")
	viper.SetDefault("mailbox.default_ttl", "1h")
	viper.SetDefault("mailbox.sweep_interval", "60s")
	viper.SetDefault("generator.min_interval", "10s")
	viper.SetDefault("generator.max_interval", "25s")
	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "temp-inbox.com")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("ratelimit.create_per_minute", 30)

	defaultTTL, err := time.ParseDuration(viper.GetString("mailbox.default_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.default_ttl: %w", err)
	}
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("mailbox.default_ttl must be positive")
	}

	sweepInterval, err := time.ParseDuration(viper.GetString("mailbox.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.sweep_interval: %w", err)
	}
	if sweepInterval <= 0 {
		return nil, fmt.Errorf("mailbox.sweep_interval must be positive")
	}

	minInterval, err := time.ParseDuration(viper.GetString("generator.min_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid generator.min_interval: %w", err)
	}
	maxInterval, err := time.ParseDuration(viper.GetString("generator.max_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid generator.max_interval: %w", err)
	}
	if minInterval <= 0 || maxInterval < minInterval {
		return nil, fmt.Errorf("generator interval bounds invalid: min=%s max=%s", minInterval, maxInterval)
	}

	mailboxDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mailbox.domain")))
	if mailboxDomain == "" {
		return nil, fmt.Errorf("mailbox.domain must not be empty")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			Domain:        mailboxDomain,
			DefaultTTL:    defaultTTL,
			SweepInterval: sweepInterval,
		},
		Generator: GeneratorConfig{
			MinInterval: minInterval,
			MaxInterval: maxInterval,
		},
		SMTP: SMTPConfig{
			Enabled:  viper.GetBool("smtp.enabled"),
			BindAddr: viper.GetString("smtp.bind_addr"),
			Domain:   viper.GetString("smtp.domain"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		RateLimit: RateLimitConfig{
			CreatePerMinute: viper.GetInt("ratelimit.create_per_minute"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
