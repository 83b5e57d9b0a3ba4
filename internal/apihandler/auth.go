package apihandler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/dashboard"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// SignupRequest 页面提交的注册表单，密码在服务端计算摘要后再发送
type SignupRequest struct {
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest 页面提交的登录表单
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerHandler 注册用户
func (h *EchoHandler) registerHandler(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "邮箱和密码不能为空"))
	}

	result, err := h.auth.Register(c.Request().Context(), sdk.SignupRequest{
		Username:       strings.TrimSpace(req.Username),
		Firstname:      strings.TrimSpace(req.Firstname),
		Lastname:       strings.TrimSpace(req.Lastname),
		Email:          strings.TrimSpace(req.Email),
		HashedPassword: sdk.HashPassword(req.Password),
	})
	if err != nil {
		return h.failure(c, err)
	}

	h.logger.Info("用户注册成功", zap.String("email", req.Email))
	return c.JSON(http.StatusCreated, successResponse(http.StatusCreated, result.Message, result.Data))
}

// loginHandler 登录，服务端的结果原样返回给页面
func (h *EchoHandler) loginHandler(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	result, err := h.auth.Login(c.Request().Context(), sdk.LoginRequest{
		Email:          strings.TrimSpace(req.Email),
		HashedPassword: sdk.HashPassword(req.Password),
	})
	if err != nil {
		return h.failure(c, err)
	}

	if result.Token != "" {
		h.location.Navigate(dashboard.RouteHome)
		h.logger.Info("用户登录成功", zap.String("email", req.Email))
	}

	user, _ := result.User()
	return c.JSON(result.Status, &Response{
		Code:    result.Status,
		Message: firstNonEmpty(result.Message, result.Error),
		Data: map[string]any{
			"authenticated": result.Token != "",
			"user":          user,
		},
	})
}

// logoutHandler 注销并清除本地会话
func (h *EchoHandler) logoutHandler(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context()); err != nil {
		h.logger.Error("清除会话失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse(http.StatusInternalServerError, "注销失败: "+err.Error()))
	}
	h.location.Navigate(dashboard.RouteLogin)
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "已注销", nil))
}

// sessionHandler 返回登录状态和待跳转的路由
func (h *EchoHandler) sessionHandler(c echo.Context) error {
	authenticated := h.session != nil && h.session.Authenticated(c.Request().Context())
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "获取会话成功", map[string]any{
		"authenticated": authenticated,
		"redirect":      h.location.Current(),
	}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
