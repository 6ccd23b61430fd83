package bootstrap

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Env 环境变量配置结构
type Env struct {
	Environment string // development | production
	LogLevel    string
	Port        string

	DatabaseURL string // PostgreSQL 连接字符串
	DBType      string // postgres | memory

	ClerkSecretKey     string // Clerk API 密钥
	ClerkWebhookSecret string // Clerk Webhook 签名密钥

	PlatformAPIBase       string
	PlatformToken         string
	PlatformWebhookSecret string
	UpstreamTimeout       time.Duration

	// PublicBaseURL loader 回调 Delivery Endpoint 使用的公网地址
	PublicBaseURL string
	PurgeSecret   string

	CacheTTL      time.Duration
	CacheCapacity uint64

	PageScriptMaxAttempts int
	SiteScriptMaxAttempts int
	SyncConcurrency       int

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

// 数据库类型
const (
	DBTypePostgres = "postgres"
	DBTypeMemory   = "memory"
)

// LoadEnv 加载环境变量
// 开发环境从 .env 文件加载，生产环境从系统环境变量读取
func LoadEnv() (*Env, error) {
	// logger 还没初始化，这里只能用标准库 log
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env not found, using process environment")
	}

	p := &envParser{}
	env := &Env{
		Environment: p.str("ENVIRONMENT", "development"),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		Port:        p.str("PORT", "8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBType:      strings.ToLower(p.str("DB_TYPE", DBTypePostgres)),

		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),

		PlatformAPIBase:       p.str("PLATFORM_API_BASE", "https://api.webflow.com/v2"),
		PlatformToken:         os.Getenv("PLATFORM_TOKEN"),
		PlatformWebhookSecret: os.Getenv("PLATFORM_WEBHOOK_SECRET"),
		UpstreamTimeout:       p.duration("UPSTREAM_TIMEOUT", 15*time.Second),

		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		PurgeSecret:   os.Getenv("PURGE_SECRET"),

		CacheTTL:      p.duration("CACHE_TTL", time.Hour),
		CacheCapacity: uint64(p.integer("CACHE_CAPACITY", 50_000)),

		PageScriptMaxAttempts: p.integer("PAGE_SCRIPT_MAX_ATTEMPTS", 5),
		SiteScriptMaxAttempts: p.integer("SITE_SCRIPT_MAX_ATTEMPTS", 50),
		SyncConcurrency:       p.integer("SYNC_CONCURRENCY", 4),

		RateLimitRPS:   p.float("RATE_LIMIT_RPS", 50),
		RateLimitBurst: p.integer("RATE_LIMIT_BURST", 100),
		AllowedOrigins: p.list("ALLOWED_ORIGINS"),
	}

	if env.PublicBaseURL == "" {
		env.PublicBaseURL = "http://localhost:" + env.Port
	}

	// 必需变量检查
	switch env.DBType {
	case DBTypePostgres:
		if env.DatabaseURL == "" {
			p.fail("DATABASE_URL", "required when DB_TYPE=postgres")
		}
	case DBTypeMemory:
	default:
		p.fail("DB_TYPE", "must be postgres or memory")
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(p.errs, "; "))
	}
	return env, nil
}

func (e *Env) IsProduction() bool {
	return e.Environment == "production"
}

// envParser 收集所有解析错误，一次性报告
type envParser struct {
	errs []string
}

func (p *envParser) fail(key, msg string) {
	p.errs = append(p.errs, key+": "+msg)
}

func (p *envParser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *envParser) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, "must be a non-negative integer")
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		p.fail(key, "must be a non-negative number")
		return def
	}
	return f
}

// duration 接受 "90s" 这样的时长，也接受纯数字（秒）
func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.fail(key, "must be a positive duration")
		return def
	}
	return d
}

func (p *envParser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
