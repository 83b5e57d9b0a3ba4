package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "邮箱"},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, Usage: "密码", EnvVars: []string{"DEDI_PASSWORD"}},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "注册新用户",
		Flags: append(credentialFlags(),
			&cli.StringFlag{Name: "username", Usage: "用户名"},
			&cli.StringFlag{Name: "firstname", Usage: "名"},
			&cli.StringFlag{Name: "lastname", Usage: "姓"},
		),
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			result, err := rt.client.Register(c.Context, sdk.SignupRequest{
				Username:       strings.TrimSpace(c.String("username")),
				Firstname:      strings.TrimSpace(c.String("firstname")),
				Lastname:       strings.TrimSpace(c.String("lastname")),
				Email:          strings.TrimSpace(c.String("email")),
				HashedPassword: sdk.HashPassword(c.String("password")),
			})
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			return nil
		}),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "登录并保存会话令牌",
		Flags: credentialFlags(),
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			result, err := rt.client.Login(c.Context, sdk.LoginRequest{
				Email:          strings.TrimSpace(c.String("email")),
				HashedPassword: sdk.HashPassword(c.String("password")),
			})
			if err != nil {
				return err
			}
			if result.Token == "" {
				return errors.New(firstNonEmpty(result.Message, result.Error, "登录失败"))
			}

			if user, ok := result.User(); ok {
				fmt.Printf("已登录: %s\n", user.Email)
			} else {
				fmt.Println(result.Message)
			}
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "清除本地会话",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if err := rt.client.Logout(c.Context); err != nil {
				return err
			}
			fmt.Println("已注销")
			return nil
		}),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
