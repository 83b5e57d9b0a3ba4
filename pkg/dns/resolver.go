package dns

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoServers 没有可用的上游DNS服务器
var ErrNoServers = errors.New("没有配置上游DNS服务器")

// TXTResolver 通过上游DNS查询域名的TXT记录，用于确认验证记录是否已发布
type TXTResolver struct {
	servers []string    // 上游DNS服务器列表
	client  *dns.Client // DNS客户端
	cache   *DNSCache   // DNS缓存
}

// NewTXTResolver 创建TXT解析器
func NewTXTResolver(servers []string, timeout time.Duration, cache *DNSCache) *TXTResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cache == nil {
		cache = NewDNSCache(60)
	}

	return &TXTResolver{
		servers: servers,
		client: &dns.Client{
			Net:     "udp",
			Timeout: timeout,
		},
		cache: cache,
	}
}

// Cache 返回解析器使用的缓存
func (r *TXTResolver) Cache() *DNSCache {
	return r.cache
}

// LookupTXT 查询域名的全部TXT记录，域名不存在时返回空列表
// 超过255字节被拆分的TXT字符串会重新拼接
func (r *TXTResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	records, _, err := r.lookup(ctx, domain, true)
	return records, err
}

// HasTXT 判断域名是否已发布指定的TXT记录
// 缓存的应答中没有该记录时丢弃缓存重新查询，刚发布的记录不会被旧应答遮蔽
func (r *TXTResolver) HasTXT(ctx context.Context, domain, want string) (bool, error) {
	records, cached, err := r.lookup(ctx, domain, true)
	if err != nil {
		return false, err
	}
	if containsTXT(records, want) {
		return true, nil
	}
	if !cached {
		return false, nil
	}

	records, _, err = r.lookup(ctx, domain, false)
	if err != nil {
		return false, err
	}
	return containsTXT(records, want), nil
}

func containsTXT(records []string, want string) bool {
	want = strings.TrimSpace(want)
	for _, record := range records {
		if strings.TrimSpace(record) == want {
			return true
		}
	}
	return false
}

// lookup 查询TXT记录，返回结果是否来自缓存
// useCache为false时跳过缓存直接查询上游，并用新应答替换缓存
func (r *TXTResolver) lookup(ctx context.Context, domain string, useCache bool) ([]string, bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, false, errors.New("域名不能为空")
	}

	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(domain), dns.TypeTXT)
	req.RecursionDesired = true

	resp, cached, err := r.resolve(ctx, req, useCache)
	if err != nil {
		return nil, false, err
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return []string{}, cached, nil
	default:
		return nil, cached, fmt.Errorf("DNS查询失败: %s", dns.RcodeToString[resp.Rcode])
	}

	records := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	return records, cached, nil
}

// resolve 查询缓存，未命中时依次尝试上游服务器
func (r *TXTResolver) resolve(ctx context.Context, req *dns.Msg, useCache bool) (*dns.Msg, bool, error) {
	if len(r.servers) == 0 {
		return nil, false, ErrNoServers
	}

	// 检查缓存
	cacheKey := GetCacheKey(req.Question[0])
	if useCache {
		if cached := r.cache.Get(cacheKey); cached != nil {
			cached.Id = req.Id
			return cached, true, nil
		}
	} else {
		r.cache.Delete(cacheKey)
	}

	// 从随机服务器开始，失败时尝试下一个
	start := rand.Intn(len(r.servers))
	var lastErr error
	for i := range r.servers {
		server := r.servers[(start+i)%len(r.servers)]

		resp, _, err := r.client.ExchangeContext(ctx, req, server)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		r.store(cacheKey, resp)
		return resp, false, nil
	}

	return nil, false, fmt.Errorf("查询上游DNS失败: %w", lastErr)
}

// store 缓存成功的响应，使用响应中最小的TTL
// NXDOMAIN和空应答不缓存
func (r *TXTResolver) store(key string, resp *dns.Msg) {
	if resp == nil || resp.Rcode != dns.RcodeSuccess || len(resp.Answer) == 0 {
		return
	}

	minTTL := resp.Answer[0].Header().Ttl
	for _, rr := range resp.Answer {
		if rr.Header().Ttl < minTTL {
			minTTL = rr.Header().Ttl
		}
	}
	r.cache.SetWithTTL(key, resp, time.Duration(minTTL)*time.Second)
}
