package dns

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// DNSCache 实现DNS响应缓存
type DNSCache struct {
	mu         sync.RWMutex
	cache      map[string]*cacheEntry
	defaultTTL time.Duration
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// cacheEntry 表示缓存中的一条记录
type cacheEntry struct {
	msg      *dns.Msg
	expireAt time.Time
}

// NewDNSCache 创建新的DNS缓存，defaultTTL单位为秒
func NewDNSCache(defaultTTL int) *DNSCache {
	return &DNSCache{
		cache:      make(map[string]*cacheEntry),
		defaultTTL: time.Duration(defaultTTL) * time.Second,
		now:        time.Now,
	}
}

// Get 从缓存获取DNS响应，过期或不存在时返回nil
func (c *DNSCache) Get(key string) *dns.Msg {
	c.mu.RLock()
	entry, found := c.cache[key]
	c.mu.RUnlock()

	if !found || c.now().After(entry.expireAt) {
		c.misses.Add(1)
		return nil
	}

	c.hits.Add(1)
	// 返回缓存副本避免并发修改
	return entry.msg.Copy()
}

// Set 使用默认TTL设置缓存记录
func (c *DNSCache) Set(key string, msg *dns.Msg) {
	c.SetWithTTL(key, msg, c.defaultTTL)
}

// SetWithTTL 使用指定TTL设置缓存记录，TTL不超过默认TTL
func (c *DNSCache) SetWithTTL(key string, msg *dns.Msg, ttl time.Duration) {
	if msg == nil || ttl <= 0 {
		return
	}
	if c.defaultTTL > 0 && ttl > c.defaultTTL {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cacheEntry{
		msg:      msg.Copy(),
		expireAt: c.now().Add(ttl),
	}
}

// Delete 从缓存删除记录
func (c *DNSCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}

// CleanupExpired 清理所有过期缓存
func (c *DNSCache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.cache {
		if now.After(entry.expireAt) {
			delete(c.cache, key)
		}
	}
}

// StartCleanup 启动过期缓存清理定时任务，ctx取消时退出
func (c *DNSCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}

// Len 返回缓存条目数
func (c *DNSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// HitRate 返回缓存命中率
func (c *DNSCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// GetCacheKey 生成缓存键
func GetCacheKey(q dns.Question) string {
	return q.Name + "-" + dns.TypeToString[q.Qtype]
}
