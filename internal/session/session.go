package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
)

// Session 会话上下文：包装令牌存储，提供过期检测和失效回调
type Session struct {
	store  Store
	logger config.Logger
	now    func() time.Time

	mu        sync.RWMutex
	onExpired []func()
}

// New 创建会话
func New(store Store, logger config.Logger) *Session {
	return &Session{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Open 根据配置创建会话，返回的io.Closer用于释放存储资源
func Open(cfg *config.Config, logger config.Logger) (*Session, io.Closer, error) {
	var (
		store  Store
		closer io.Closer = nopCloser{}
	)

	switch cfg.Session.Backend {
	case "memory":
		store = NewMemoryStore()
	case "file", "":
		store = NewFileStore(cfg.Session.File)
	case "etcd":
		etcdStore, err := NewEtcdStore(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store, closer = etcdStore, etcdStore
	default:
		return nil, nil, fmt.Errorf("不支持的会话存储类型: %s", cfg.Session.Backend)
	}

	return New(store, logger), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OnExpired 注册令牌失效（过期或收到401）时的回调
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

// Token 返回当前令牌
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.store.Token(ctx)
}

// SetToken 保存令牌
func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.store.SetToken(ctx, token)
}

// Clear 清除令牌
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Expire 清除令牌并触发失效回调
func (s *Session) Expire(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("清除会话失败", zap.Error(err))
	}

	s.mu.RLock()
	hooks := append([]func(){}, s.onExpired...)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

// Authenticated 判断当前是否已登录
// 令牌为JWT且已过期时视为未登录，同时清除令牌并触发失效回调
// 非JWT令牌无法判断过期时间，只要存在即视为已登录
func (s *Session) Authenticated(ctx context.Context) bool {
	token, err := s.store.Token(ctx)
	if err != nil {
		s.logger.Warn("读取会话失败", zap.Error(err))
		return false
	}
	if token == "" {
		return false
	}

	exp, ok := ExpiresAt(token)
	if ok && !exp.After(s.now()) {
		s.logger.Info("会话令牌已过期", zap.Time("expires_at", exp))
		s.Expire(ctx)
		return false
	}
	return true
}

// ExpiresAt 从JWT令牌中读取过期时间，不校验签名
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
