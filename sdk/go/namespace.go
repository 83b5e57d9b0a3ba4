package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hewenyu/dedi-console/pkg/model"
)

// 命名空间相关接口路径
const (
	pathProfileNamespaces = "/dedi/get-namespace-by-profile"
	pathCreateNamespace   = "/dedi/create-namespace"
	pathUpdateNamespace   = "/dedi/update-namespace/%s"
	pathGenerateDNSTXT    = "/dedi/generate-dns-txt/%s/%s"
	pathVerifyDomain      = "/dedi/verify-domain"
)

// NamespaceRequest 创建或更新命名空间的请求体
type NamespaceRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Meta        model.Meta `json:"meta"`
}

// NamespaceList 用户命名空间列表响应
type NamespaceList struct {
	Message   string
	Owned     []model.Namespace
	Delegated []model.Namespace
}

type namespaceListData struct {
	OwnedNamespaces     []model.Namespace `json:"owned_namespaces"`
	DelegatedNamespaces []model.Namespace `json:"delegated_namespaces"`
}

type createNamespaceData struct {
	NamespaceID string `json:"namespace_id"`
}

// ListNamespaces 获取当前用户拥有的和被共享的命名空间
// 返回服务端消息，由调用方根据消息判断是否成功
func (c *Client) ListNamespaces(ctx context.Context) (*NamespaceList, error) {
	resp, env, err := c.doEnvelope(ctx, request{
		endpoint: "list_namespaces",
		method:   http.MethodGet,
		path:     pathProfileNamespaces,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, NewServerError(firstNonEmpty(env.Message, env.Error, httpStatusMessage(resp.status, resp.statusText)), resp.status)
	}

	list := &NamespaceList{Message: env.Message}
	if env.Message != model.MessageNamespacesRetrieved || len(env.Data) == 0 {
		return list, nil
	}

	var data namespaceListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, NewNetworkError("解析命名空间列表失败", err)
	}
	list.Owned = data.OwnedNamespaces
	list.Delegated = data.DelegatedNamespaces
	return list, nil
}

// CreateNamespace 创建命名空间，返回服务端分配的namespace_id
func (c *Client) CreateNamespace(ctx context.Context, req NamespaceRequest) (string, error) {
	resp, env, err := c.doEnvelope(ctx, request{
		endpoint: "create_namespace",
		method:   http.MethodPost,
		path:     pathCreateNamespace,
		body:     req,
	})
	if err != nil {
		return "", err
	}

	if !resp.ok() || env.Message != model.MessageNamespaceCreated {
		return "", NewServerError(firstNonEmpty(env.Message, env.Error, "Failed to create namespace"), resp.status)
	}

	var data createNamespaceData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", NewNetworkError("解析创建响应失败", err)
		}
	}
	return data.NamespaceID, nil
}

// UpdateNamespace 更新命名空间的名称、描述和元数据
func (c *Client) UpdateNamespace(ctx context.Context, namespaceID string, req NamespaceRequest) error {
	if namespaceID == "" {
		return NewUpdateWithoutSelectionError()
	}

	resp, env, err := c.doEnvelope(ctx, request{
		endpoint: "update_namespace",
		method:   http.MethodPatch,
		path:     fmt.Sprintf(pathUpdateNamespace, url.PathEscape(namespaceID)),
		body:     req,
	})
	if err != nil {
		return err
	}

	if !resp.ok() || env.Message != model.MessageNamespaceUpdated {
		return NewServerError(firstNonEmpty(env.Message, env.Error, "Failed to update namespace"), resp.status)
	}
	return nil
}

// TXTResult 生成DNS TXT记录的响应
type TXTResult struct {
	Message string `json:"message,omitempty"`
	TXT     string `json:"txt,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerateDNSTXT 为命名空间和域名生成DNS TXT记录
func (c *Client) GenerateDNSTXT(ctx context.Context, namespaceID, domain string) (*TXTResult, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, NewValidationError("Please enter a valid domain name.")
	}

	resp, err := c.do(ctx, request{
		endpoint: "generate_dns_txt",
		method:   http.MethodGet,
		path:     fmt.Sprintf(pathGenerateDNSTXT, url.PathEscape(namespaceID), url.PathEscape(domain)),
	})
	if err != nil {
		return nil, err
	}

	var result TXTResult
	if err := resp.decode(&result); err != nil && resp.ok() {
		return nil, NewNetworkError("解析TXT响应失败", err)
	}
	if !resp.ok() {
		return nil, NewServerError(firstNonEmpty(result.Message, result.Error, "Failed to generate DNS TXT record."), resp.status)
	}
	return &result, nil
}

// VerifyResult 域名验证响应
type VerifyResult struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type verifyRequest struct {
	NamespaceID string `json:"namespace_id"`
}

// VerifyDomain 请求服务端检查已发布的TXT记录并标记命名空间为已验证
func (c *Client) VerifyDomain(ctx context.Context, namespaceID string) (*VerifyResult, error) {
	resp, env, err := c.doEnvelope(ctx, request{
		endpoint: "verify_domain",
		method:   http.MethodPost,
		path:     pathVerifyDomain,
		body:     verifyRequest{NamespaceID: namespaceID},
	})
	if err != nil {
		return nil, err
	}

	if !resp.ok() {
		return nil, NewServerError(firstNonEmpty(env.Message, env.Error, "Failed to verify domain."), resp.status)
	}
	return &VerifyResult{Message: env.Message, Data: env.Data}, nil
}
