package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/hewenyu/dedi-console/pkg/model"
)

func namespaceCommand() *cli.Command {
	formFlags := []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "命名空间名称"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "命名空间描述"},
		&cli.StringFlag{Name: "meta", Usage: "JSON格式的元数据，设置后开启元数据编辑"},
	}

	return &cli.Command{
		Name:    "namespace",
		Aliases: []string{"ns"},
		Usage:   "管理命名空间",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "列出拥有的和共享的命名空间",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "以JSON格式输出"},
				},
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}
					if err := rt.dash.Refresh(c.Context); err != nil {
						return err
					}

					dir := rt.dash.Snapshot()
					if c.Bool("json") {
						return printJSON(dir)
					}
					printNamespaces("Owned", dir.Owned)
					printNamespaces("Shared with me", dir.Delegated)
					return nil
				}),
			},
			{
				Name:  "shared",
				Usage: "列出共享给当前用户的命名空间",
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}
					list, err := rt.dash.SharedNamespaces(c.Context)
					if err != nil {
						return err
					}
					printNamespaces("Shared with me", list)
					return nil
				}),
			},
			{
				Name:  "create",
				Usage: "创建命名空间",
				Flags: formFlags,
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}
					in, err := formInput(c)
					if err != nil {
						return err
					}

					id, err := rt.dash.CreateNamespace(c.Context, in)
					if err != nil {
						return err
					}
					fmt.Println(id)
					return nil
				}),
			},
			{
				Name:      "update",
				Usage:     "更新命名空间，并等待目录刷新",
				ArgsUsage: "<namespace_id>",
				Flags:     formFlags,
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					if err := rt.requireLogin(c); err != nil {
						return err
					}
					in, err := formInput(c)
					if err != nil {
						return err
					}

					id := c.Args().First()
					if err := rt.dash.Refresh(c.Context); err == nil && id != "" {
						// 未指定的字段沿用当前值
						if v, _, ok := rt.dash.Lookup(id); ok {
							in = mergeForm(model.FormFromView(v), in)
						}
					}

					if err := rt.dash.UpdateNamespace(c.Context, id, in); err != nil {
						return err
					}
					rt.dash.WaitRefresh()
					return nil
				}),
			},
		},
	}
}

// formInput 从命令行参数读取表单
func formInput(c *cli.Context) (model.NamespaceInput, error) {
	in := model.NamespaceInput{
		Name:        c.String("name"),
		Description: c.String("description"),
		Meta:        model.Meta{},
	}
	if raw := c.String("meta"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Meta); err != nil {
			return in, fmt.Errorf("元数据不是有效的JSON对象: %w", err)
		}
		in.WithMeta = true
	}
	return in, nil
}

// mergeForm 用命令行中给出的字段覆盖预填表单
func mergeForm(prefill, in model.NamespaceInput) model.NamespaceInput {
	if in.Name != "" {
		prefill.Name = in.Name
	}
	if in.Description != "" {
		prefill.Description = in.Description
	}
	if in.WithMeta {
		prefill.Meta = in.Meta
		prefill.WithMeta = true
	}
	return prefill
}

func printNamespaces(title string, list []model.NamespaceView) {
	fmt.Printf("%s (%d)\n", title, len(list))
	if len(list) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tVERIFIED\tUPDATED")
	for _, v := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			v.NamespaceID, v.Name, v.Description, v.Verified || v.IsVerified, v.UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
