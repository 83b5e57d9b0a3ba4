package main

import (
	"context"
	"log"
	"os"
	"time"

	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// memoryTokens 最简单的令牌存储
type memoryTokens struct {
	token string
}

func (m *memoryTokens) Token(ctx context.Context) (string, error)    { return m.token, nil }
func (m *memoryTokens) SetToken(ctx context.Context, t string) error { m.token = t; return nil }
func (m *memoryTokens) Clear(ctx context.Context) error              { m.token = ""; return nil }

func main() {
	// 配置SDK客户端
	client := sdk.NewClient(sdk.Config{
		BaseURL: os.Getenv("DEDI_ENDPOINT"),
		Timeout: 5 * time.Second,
		Tokens:  &memoryTokens{},
		OnUnauthorized: func() {
			log.Println("会话已失效，需要重新登录")
		},
	})

	ctx := context.Background()

	// 登录
	result, err := client.Login(ctx, sdk.LoginRequest{
		Email:          os.Getenv("DEDI_EMAIL"),
		HashedPassword: sdk.HashPassword(os.Getenv("DEDI_PASSWORD")),
	})
	if err != nil {
		log.Fatalf("登录失败: %v", err)
	}
	if result.Token == "" {
		log.Fatalf("登录失败: %s", result.Message)
	}

	// 创建命名空间
	id, err := client.CreateNamespace(ctx, sdk.NamespaceRequest{
		Name:        "sdk-example",
		Description: "created by the Go SDK",
		Meta:        map[string]any{},
	})
	if err != nil {
		log.Fatalf("创建命名空间失败: %v", err)
	}
	log.Printf("命名空间创建成功，ID: %s", id)

	// 生成TXT记录
	txt, err := client.GenerateDNSTXT(ctx, id, "example.com")
	if err != nil {
		log.Fatalf("生成TXT记录失败: %v", err)
	}
	log.Printf("请在DNS中添加TXT记录: %s", txt.TXT)

	// 列出命名空间
	list, err := client.ListNamespaces(ctx)
	if err != nil {
		log.Fatalf("获取命名空间失败: %v", err)
	}
	for _, ns := range list.Owned {
		log.Printf("%s\t%s\t%s", ns.NamespaceID, ns.Name, ns.Description)
	}
}
