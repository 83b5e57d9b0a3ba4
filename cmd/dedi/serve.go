package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/apihandler"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动本地面板API服务",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "覆盖配置中的监听端口",
			},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if port := c.Int("port"); port > 0 {
				rt.cfg.Server.Port = port
			}

			rt.logger.Info("dedi面板启动中...",
				zap.String("version", c.App.Version),
				zap.String("api_base_url", rt.cfg.API.BaseURL),
				zap.String("session_backend", rt.cfg.Session.Backend),
				zap.String("listen", rt.cfg.Address()),
			)

			rt.resolver.Cache().StartCleanup(c.Context, time.Minute)

			// 打开面板：已登录时预先加载目录
			rt.dash.Load(c.Context)

			handler := apihandler.NewAPIHandler(rt.cfg, rt.logger.Named("http"), apihandler.Deps{
				Dashboard: rt.dash,
				Auth:      rt.client,
				Session:   rt.session,
				Feed:      rt.feed,
				Location:  rt.location,
				DNSCache:  rt.resolver.Cache(),
			})
			if err := handler.Start(); err != nil {
				return err
			}

			// 等待信号以优雅关闭
			<-c.Context.Done()
			rt.logger.Info("接收到关闭信号，正在优雅关闭...")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return handler.Shutdown(ctx)
		}),
	}
}
