package apihandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/config"
	"github.com/hewenyu/dedi-console/internal/dashboard"
	"github.com/hewenyu/dedi-console/internal/metrics"
	"github.com/hewenyu/dedi-console/pkg/dns"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// Auth 登录、注册和注销，*sdk.Client实现了该接口
type Auth interface {
	Register(ctx context.Context, req sdk.SignupRequest) (*sdk.AuthResult, error)
	Login(ctx context.Context, req sdk.LoginRequest) (*sdk.AuthResult, error)
	Logout(ctx context.Context) error
}

// Deps 处理器依赖
type Deps struct {
	Dashboard *dashboard.Dashboard
	Auth      Auth
	Session   dashboard.Authenticator
	Feed      *dashboard.Feed
	Location  *dashboard.Location
	// DNSCache 可选，用于健康检查和指标
	DNSCache *dns.DNSCache
}

// EchoHandler 面板的HTTP接口，供浏览器页面调用
type EchoHandler struct {
	server *echo.Echo
	cfg    *config.Config
	logger config.Logger

	dash     *dashboard.Dashboard
	auth     Auth
	session  dashboard.Authenticator
	feed     *dashboard.Feed
	location *dashboard.Location
	dnsCache *dns.DNSCache
}

// Response 通用响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewAPIHandler 创建HTTP处理器并注册路由
func NewAPIHandler(cfg *config.Config, logger config.Logger, deps Deps) *EchoHandler {
	h := &EchoHandler{
		cfg:      cfg,
		logger:   logger,
		dash:     deps.Dashboard,
		auth:     deps.Auth,
		session:  deps.Session,
		feed:     deps.Feed,
		location: deps.Location,
		dnsCache: deps.DNSCache,
	}

	// 创建Echo实例
	h.server = echo.New()
	h.server.HideBanner = true
	h.server.HidePort = true

	// 添加中间件
	h.server.Use(middleware.Recover())
	h.server.Use(middleware.RequestID())
	h.server.Use(h.requestLogger)
	h.server.Use(metricsMiddleware)

	// 添加CORS中间件
	h.server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	// 注册路由
	h.registerRoutes()
	return h
}

// registerRoutes 注册路由
func (h *EchoHandler) registerRoutes() {
	h.server.GET("/health", h.healthHandler)
	h.server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := h.server.Group("/api")

	// 认证
	api.POST("/auth/register", h.registerHandler)
	api.POST("/auth/login", h.loginHandler)
	api.POST("/auth/logout", h.logoutHandler)
	api.GET("/session", h.sessionHandler)

	// 命名空间
	api.GET("/namespaces", h.listNamespacesHandler)
	api.GET("/namespaces/shared", h.sharedNamespacesHandler)
	api.POST("/namespaces", h.createNamespaceHandler)
	api.PUT("/namespaces/:id", h.updateNamespaceHandler)

	// 域名验证
	api.POST("/namespaces/:id/dns-txt", h.generateDNSTXTHandler)
	api.GET("/namespaces/:id/dns-txt/check", h.checkDNSTXTHandler)
	api.POST("/namespaces/:id/verify", h.verifyDomainHandler)

	// 创建对话框中的组合流程
	api.POST("/drafts/dns-txt", h.draftGenerateDNSTXTHandler)
	api.POST("/drafts/verify", h.draftVerifyHandler)

	// 页面状态
	api.GET("/notifications", h.notificationsHandler)
	api.GET("/busy", h.busyHandler)
}

// ServeHTTP 实现http.Handler
func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

// Start 启动服务（非阻塞）
func (h *EchoHandler) Start() error {
	addr := h.cfg.Address()
	h.logger.Info("启动面板API服务", zap.String("address", addr))

	go func() {
		if err := h.server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("面板API服务启动失败", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 优雅关闭服务
func (h *EchoHandler) Shutdown(ctx context.Context) error {
	h.logger.Info("正在关闭面板API服务...")
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("关闭面板API服务出错", zap.Error(err))
		return err
	}
	return nil
}

// requestLogger 使用zap记录访问日志
func (h *EchoHandler) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		h.logger.Debug("HTTP请求",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
		return nil
	}
}

// metricsMiddleware 按路由模板记录请求指标
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		metrics.ObserveHTTPRequest(c.Request().Method, c.Path(), c.Response().Status, time.Since(start))
		return nil
	}
}

// 返回成功响应
func successResponse(code int, message string, data any) *Response {
	return &Response{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// 返回错误响应
func errorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// statusOf 将SDK错误映射为HTTP状态码
func statusOf(err error) int {
	var se *sdk.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}

	switch se.Code {
	case sdk.ErrValidation, sdk.ErrUpdateWithoutSelection:
		return http.StatusBadRequest
	case sdk.ErrUnauthorized:
		return http.StatusUnauthorized
	case sdk.ErrServer:
		if se.Status >= 400 {
			return se.Status
		}
		return http.StatusBadGateway
	case sdk.ErrNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failure 返回错误响应，401时附带需要跳转的路由
func (h *EchoHandler) failure(c echo.Context, err error) error {
	status := statusOf(err)
	resp := errorResponse(status, err.Error())
	if status == http.StatusUnauthorized {
		resp.Data = map[string]string{"redirect": h.location.Current()}
	}
	return c.JSON(status, resp)
}
