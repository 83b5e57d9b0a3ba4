package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	app := cli.NewApp()
	app.Name = "dedi"
	app.Usage = "dedi命名空间管理面板与域名验证工具"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "配置文件路径",
			EnvVars: []string{"DEDI_CONSOLE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "日志级别 (debug, info, warn, error)",
			EnvVars: []string{"DEDI_CONSOLE_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "api",
			Usage:   "覆盖配置中的API地址",
			EnvVars: []string{"DEDI_ENDPOINT"},
		},
	}

	app.Commands = []*cli.Command{
		serveCommand(),
		registerCommand(),
		loginCommand(),
		logoutCommand(),
		namespaceCommand(),
		dnsCommand(),
		mockCommand(),
	}

	return app.RunContext(ctx, args)
}
