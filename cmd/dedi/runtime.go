package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
	"github.com/hewenyu/dedi-console/internal/dashboard"
	"github.com/hewenyu/dedi-console/internal/metrics"
	"github.com/hewenyu/dedi-console/internal/refresh"
	"github.com/hewenyu/dedi-console/internal/session"
	"github.com/hewenyu/dedi-console/pkg/dns"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// runtime 命令共用的组件
type runtime struct {
	cfg      *config.Config
	logger   config.Logger
	session  *session.Session
	client   *sdk.Client
	resolver *dns.TXTResolver
	feed     *dashboard.Feed
	location *dashboard.Location
	dash     *dashboard.Dashboard

	closer io.Closer
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(c *cli.Context) (*config.Config, config.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if api := c.String("api"); api != "" {
		cfg.API.BaseURL = api
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, err := config.NewLoggerWithLevel(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// newRuntime 按命令行参数加载配置并组装运行时
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return buildRuntime(cfg, logger)
}

// buildRuntime 按配置组装会话、SDK客户端、DNS解析器和面板
// 令牌过期或收到401时都经由会话失效回调跳转到登录页
func buildRuntime(cfg *config.Config, logger config.Logger) (*runtime, error) {
	sess, closer, err := session.Open(cfg, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("打开会话存储失败: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		session:  sess,
		resolver: dns.NewTXTResolver(cfg.DNS.UpstreamDNS, cfg.DNS.Timeout, dns.NewDNSCache(cfg.DNS.CacheTTL)),
		feed:     dashboard.NewFeed(dashboard.DefaultFeedSize, logger.Named("notify")),
		location: dashboard.NewLocation(logger),
		closer:   closer,
	}

	rt.client = sdk.NewClient(sdk.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  sess,
		OnUnauthorized: func() {
			sess.Expire(context.Background())
		},
		Logger:   logger.Named("sdk"),
		Observer: metrics.ObserveAPIRequest,
	})

	rt.dash = dashboard.New(dashboard.Options{
		API:       rt.client,
		Session:   sess,
		Resolver:  rt.resolver,
		Notifier:  rt.feed,
		Navigator: rt.location,
		Logger:    logger.Named("dashboard"),
		Refresh: refresh.Policy{
			BaseDelay:   cfg.Refresh.BaseDelay,
			MaxAttempts: cfg.Refresh.MaxAttempts,
		},
		UpdatePlaceholderMeta: cfg.Namespace.UpdatePlaceholderMeta,
	})
	sess.OnExpired(rt.dash.HandleUnauthorized)

	logger.Debug("组件初始化完成",
		zap.String("api_base_url", rt.client.BaseURL()),
		zap.String("session_backend", cfg.Session.Backend))
	return rt, nil
}

// Close 释放资源
func (rt *runtime) Close() {
	rt.dash.Close()
	if err := rt.closer.Close(); err != nil {
		rt.logger.Warn("关闭会话存储失败", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// flush 将面板产生的通知打印到标准错误
func (rt *runtime) flush() {
	for _, n := range rt.feed.Drain() {
		prefix := "*"
		if n.Variant == dashboard.VariantDestructive {
			prefix = "!"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", prefix, n.Title, n.Description)
	}
	if route := rt.location.Current(); route == dashboard.RouteLogin {
		fmt.Fprintln(os.Stderr, "会话已失效，请运行 dedi login 重新登录")
	}
}

// requireLogin 未登录时返回错误
func (rt *runtime) requireLogin(c *cli.Context) error {
	if !rt.dash.RequireAuth(c.Context) {
		return fmt.Errorf("尚未登录，请先运行 dedi login")
	}
	return nil
}

// withRuntime 为命令创建运行时，执行结束后打印通知并释放资源
func withRuntime(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := newRuntime(c)
		if err != nil {
			return err
		}
		defer rt.Close()
		defer rt.flush()
		return fn(c, rt)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
