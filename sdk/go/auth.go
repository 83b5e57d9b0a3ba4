package sdk

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// SignupRequest 用户注册请求
type SignupRequest struct {
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// LoginRequest 用户登录请求
type LoginRequest struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// User 用户信息
type User struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Firstname     string   `json:"firstname"`
	Lastname      string   `json:"lastname"`
	EmailVerified bool     `json:"email_verified"`
	RealmRoles    []string `json:"realm_roles"`
}

// AuthResult 注册、登录的响应
type AuthResult struct {
	Status  int             `json:"-"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	// Token 从登录响应中提取的访问令牌
	Token string `json:"-"`
}

// User 尝试将data解析为用户信息
func (r *AuthResult) User() (*User, bool) {
	var u User
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &u) != nil || u.Email == "" && u.ID == "" {
		return nil, false
	}
	return &u, true
}

// HashPassword 计算发送给服务端的密码摘要
func HashPassword(password string) string {
	sum := blake2b.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register 注册用户
func (c *Client) Register(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	resp, err := c.do(ctx, request{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "/dedi/register",
		body:     req,
		public:   true,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := resp.decode(&result); err != nil && resp.ok() {
		return nil, NewNetworkError("解析注册响应失败", err)
	}
	result.Status = resp.status

	if !resp.ok() {
		return nil, NewServerError(firstNonEmpty(result.Message, result.Error, httpStatusMessage(resp.status, resp.statusText)), resp.status)
	}

	if result.Message == "" {
		result.Message = "Resource created successfully"
	}
	return &result, nil
}

// Login 登录，无论成功与否都原样返回服务端结果，由调用方判断
// 响应中包含令牌时写入会话存储
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	resp, err := c.do(ctx, request{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/dedi/login",
		body:     req,
		public:   true,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := resp.decode(&result); err != nil {
		return nil, NewNetworkError("解析登录响应失败", err)
	}
	result.Status = resp.status
	result.Token = extractToken(result.Data)

	if resp.ok() && result.Token != "" && c.config.Tokens != nil {
		if err := c.config.Tokens.SetToken(ctx, result.Token); err != nil {
			c.config.Logger.Warn("保存令牌失败", zap.Error(err))
		}
	}

	return &result, nil
}

// Logout 清除本地会话
func (c *Client) Logout(ctx context.Context) error {
	if c.config.Tokens == nil {
		return nil
	}
	return c.config.Tokens.Clear(ctx)
}

// extractToken 从登录响应data中提取令牌
// data可能是令牌字符串，也可能是包含access_token或token字段的对象
func extractToken(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	var obj struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return firstNonEmpty(obj.AccessToken, obj.Token)
	}
	return ""
}
