package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// 一段时间没有请求的客户端，其限流器会被回收
const limiterIdleTTL = 10 * time.Minute

// RateLimiter 按客户端 IP 限流，公开的 /bundle 和 /cache/purge 使用
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter rps <= 0 表示不限流
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		limiters: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
		),
	}
}

func (rl *RateLimiter) Start() { go rl.limiters.Start() }
func (rl *RateLimiter) Stop()  { rl.limiters.Stop() }

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rl.rps, rl.burst))
	return item.Value()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
