package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultBaseURL 未配置时使用的API地址
const DefaultBaseURL = "https://dev.dedi.global"

// TokenStore 保存认证令牌的会话存储
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Logger SDK使用的日志接口
type Logger interface {
	Debug(msg string, fields ...zapcore.Field)
	Warn(msg string, fields ...zapcore.Field)
}

// RequestObserver 请求完成后的回调，用于采集指标
type RequestObserver func(endpoint, outcome string, elapsed time.Duration)

// Config SDK客户端配置
type Config struct {
	// API地址，为空时使用DefaultBaseURL
	BaseURL string
	// 操作超时时间
	Timeout time.Duration
	// 令牌存储
	Tokens TokenStore
	// 收到401时的回调（例如跳转到登录页）
	OnUnauthorized func()
	// 日志
	Logger Logger
	// 指标回调
	Observer RequestObserver
	// 自定义HTTP客户端，主要用于测试
	HTTPClient *http.Client
}

// Client dedi API客户端
type Client struct {
	config     Config
	httpClient *http.Client
}

// Envelope API响应结构
type Envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewClient 创建SDK客户端
func NewClient(config Config) *Client {
	// 设置默认值
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// BaseURL 返回API地址
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// request 描述一次API调用
type request struct {
	endpoint string
	method   string
	path     string
	body     any
	// public 为true时不携带令牌，也不触发401处理（注册、登录）
	public bool
}

// response 原始响应
type response struct {
	status     int
	statusText string
	body       []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// decode 解析响应体，空响应体不视为错误
func (r *response) decode(out any) error {
	if len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.body, out)
}

// 发送HTTP请求
func (c *Client) do(ctx context.Context, req request) (resp *response, err error) {
	start := time.Now()
	defer func() {
		c.observe(req.endpoint, resp, err, time.Since(start))
	}()

	// 准备请求体
	var bodyReader io.Reader
	if req.body != nil {
		bodyBytes, err := json.Marshal(req.body)
		if err != nil {
			return nil, NewNetworkError("序列化请求体失败", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	// 创建请求
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.config.BaseURL+req.path, bodyReader)
	if err != nil {
		return nil, NewNetworkError("创建HTTP请求失败", err)
	}

	// 设置请求头
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if !req.public && c.config.Tokens != nil {
		token, err := c.config.Tokens.Token(ctx)
		if err != nil {
			c.config.Logger.Warn("读取令牌失败", zap.Error(err))
		} else if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.config.Logger.Debug("发送API请求",
		zap.String("endpoint", req.endpoint),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.String("request_id", requestID))

	// 发送请求
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("网络请求失败: %s", req.endpoint), err)
	}
	defer httpResp.Body.Close()

	// 处理401：清除令牌并通知调用方
	if httpResp.StatusCode == http.StatusUnauthorized && !req.public {
		c.handleUnauthorized(ctx)
		return nil, NewUnauthorizedError("会话已失效，请重新登录")
	}

	// 读取响应体
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("读取响应体失败", err)
	}

	return &response{
		status:     httpResp.StatusCode,
		statusText: http.StatusText(httpResp.StatusCode),
		body:       respBody,
	}, nil
}

// doEnvelope 发送请求并解析为通用响应结构
func (c *Client) doEnvelope(ctx context.Context, req request) (*response, *Envelope, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var env Envelope
	if err := resp.decode(&env); err != nil {
		if resp.ok() {
			return resp, nil, NewNetworkError("解析响应失败", err)
		}
		// 非成功状态且响应体不是JSON时保留空结构，由调用方生成错误信息
		c.config.Logger.Debug("非JSON错误响应", zap.Int("status", resp.status))
	}

	return resp, &env, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.config.Tokens != nil {
		if err := c.config.Tokens.Clear(ctx); err != nil {
			c.config.Logger.Warn("清除令牌失败", zap.Error(err))
		}
	}
	if c.config.OnUnauthorized != nil {
		c.config.OnUnauthorized()
	}
}

func (c *Client) observe(endpoint string, resp *response, err error, elapsed time.Duration) {
	if c.config.Observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		var se *Error
		if errors.As(err, &se) && se.Code == ErrUnauthorized {
			outcome = "unauthorized"
		} else {
			outcome = "network_error"
		}
	case resp != nil && !resp.ok():
		outcome = "http_error"
	}
	c.config.Observer(endpoint, outcome, elapsed)
}
