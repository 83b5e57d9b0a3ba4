package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/mockdedi"
	"github.com/hewenyu/dedi-console/pkg/dns"
)

func mockCommand() *cli.Command {
	return &cli.Command{
		Name:  "mock",
		Usage: "启动本地模拟dedi后端，用于开发调试",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8089", Usage: "监听地址"},
			&cli.StringFlag{Name: "seed-email", Value: "demo@dedi.local", Usage: "演示用户邮箱"},
			&cli.StringFlag{Name: "seed-password", Value: "demo", Usage: "演示用户密码"},
			&cli.IntFlag{Name: "read-lag", Usage: "更新后列表接口返回旧数据的次数"},
			&cli.BoolFlag{Name: "check-dns", Usage: "验证域名时查询真实的TXT记录"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store := mockdedi.NewStore()
			store.SetReadLag(c.Int("read-lag"))
			if _, err := mockdedi.SeedDemo(store, c.String("seed-email"), c.String("seed-password")); err != nil {
				return err
			}

			opts := mockdedi.Options{Store: store, Logger: logger.Named("mock"), AccessLog: true}
			if c.Bool("check-dns") {
				opts.Checker = dns.NewTXTResolver(cfg.DNS.UpstreamDNS, cfg.DNS.Timeout, dns.NewDNSCache(cfg.DNS.CacheTTL))
			}
			server := mockdedi.NewServer(opts)

			logger.Info("已写入演示数据", zap.String("seed_email", c.String("seed-email")))

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(c.String("addr"))
			}()

			select {
			case err := <-errCh:
				return err
			case <-c.Context.Done():
			}

			logger.Info("接收到关闭信号，正在优雅关闭...")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
}
