package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hewenyu/dedi-console/pkg/model"
)

func dnsCommand() *cli.Command {
	return &cli.Command{
		Name:  "dns",
		Usage: "通过DNS TXT记录验证域名",
		Subcommands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "为命名空间生成TXT记录；未指定命名空间时先按表单创建",
				ArgsUsage: "<domain>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "namespace", Aliases: []string{"id"}, Usage: "命名空间ID"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "新命名空间名称"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "新命名空间描述"},
				},
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}

					draft := rt.dash.ResumeDraft(model.NamespaceInput{
						Name:        c.String("name"),
						Description: c.String("description"),
						Meta:        model.Meta{},
					}, c.String("namespace"))

					txt, err := draft.GenerateDNSTXT(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("namespace_id: %s\n", draft.ID())
					fmt.Printf("txt: %s\n", txt)
					return nil
				}),
			},
			{
				Name:      "check",
				Usage:     "查询TXT记录是否已发布",
				ArgsUsage: "<namespace_id> <domain>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "txt", Usage: "期望的TXT记录值"},
				},
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					// 未指定记录值时从目录中读取已生成的记录
					if c.String("txt") == "" {
						if err := rt.requireLogin(c); err != nil {
							return err
						}
						if err := rt.dash.Refresh(c.Context); err != nil {
							return err
						}
					}

					published, err := rt.dash.CheckDNSTXT(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("txt"))
					if err != nil {
						return err
					}
					if published {
						fmt.Println("TXT记录已发布")
					} else {
						fmt.Println("TXT记录尚未发布")
					}
					return nil
				}),
			},
			{
				Name:      "verify",
				Usage:     "验证命名空间的域名",
				ArgsUsage: "<namespace_id>",
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}
					return rt.dash.VerifyDomain(c.Context, c.Args().First())
				}),
			},
		},
	}
}
