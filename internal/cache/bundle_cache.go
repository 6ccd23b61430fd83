// Package cache 是 Delivery Endpoint 的边缘缓存
// 缓存内容随时可以从 File + Page/Site 重建，不做持久化
package cache

import (
	"time"

	"codeinject-go-server/domain/entity"

	"github.com/jellydator/ttlcache/v3"
)

// 默认配置
const (
	DefaultTTL      = time.Hour
	DefaultCapacity = 50_000
)

// Entry 缓存项，ETag/CachedAt 随命中原样返回给浏览器
type Entry struct {
	Bundle   entity.Bundle
	ETag     string
	CachedAt time.Time
}

// BundleCache 缓存抽象：按键读、写、删
// 生产环境用 TTLCache，测试可以替换成任意实现
type BundleCache interface {
	Get(key string) (*Entry, bool)
	Set(key string, entry *Entry)
	// Delete 返回 false 表示键本来就不存在
	Delete(key string) bool
}

// TTLCache 基于 ttlcache 的进程内实现
type TTLCache struct {
	cache *ttlcache.Cache[string, *Entry]
	ttl   time.Duration
}

// NewTTLCache 创建缓存；命中不续期，保证条目最长存活 ttl
func NewTTLCache(ttl time.Duration, capacity uint64) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	c := ttlcache.New[string, *Entry](
		ttlcache.WithTTL[string, *Entry](ttl),
		ttlcache.WithCapacity[string, *Entry](capacity),
		ttlcache.WithDisableTouchOnHit[string, *Entry](),
	)
	return &TTLCache{cache: c, ttl: ttl}
}

// Start 启动过期清理循环，阻塞直到 Stop
func (c *TTLCache) Start() {
	c.cache.Start()
}

func (c *TTLCache) Stop() {
	c.cache.Stop()
}

func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

func (c *TTLCache) Len() int {
	return c.cache.Len()
}

func (c *TTLCache) Get(key string) (*Entry, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *TTLCache) Set(key string, entry *Entry) {
	c.cache.Set(key, entry, ttlcache.DefaultTTL)
}

func (c *TTLCache) Delete(key string) bool {
	_, found := c.cache.GetAndDelete(key)
	return found
}
