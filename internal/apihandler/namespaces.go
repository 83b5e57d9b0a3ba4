package apihandler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hewenyu/dedi-console/internal/dashboard"
	"github.com/hewenyu/dedi-console/pkg/model"
)

// requireAuth 未登录时返回401和需要跳转的路由
func (h *EchoHandler) requireAuth(c echo.Context) bool {
	if h.dash.RequireAuth(c.Request().Context()) {
		return true
	}
	_ = c.JSON(http.StatusUnauthorized, &Response{
		Code:    http.StatusUnauthorized,
		Message: "未登录",
		Data:    map[string]string{"redirect": h.location.Current()},
	})
	return false
}

// listNamespacesHandler 获取命名空间目录
func (h *EchoHandler) listNamespacesHandler(c echo.Context) error {
	if !h.requireAuth(c) {
		return nil
	}

	if err := h.dash.Refresh(c.Request().Context()); err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "获取命名空间成功", h.dash.Snapshot()))
}

// sharedNamespacesHandler 获取共享给当前用户的命名空间
func (h *EchoHandler) sharedNamespacesHandler(c echo.Context) error {
	if !h.requireAuth(c) {
		return nil
	}

	list, err := h.dash.SharedNamespaces(c.Request().Context())
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "获取共享命名空间成功", list))
}

// createNamespaceHandler 创建命名空间
func (h *EchoHandler) createNamespaceHandler(c echo.Context) error {
	in := new(model.NamespaceInput)
	if err := c.Bind(in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	id, err := h.dash.CreateNamespace(c.Request().Context(), *in)
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusCreated, successResponse(http.StatusCreated, model.MessageNamespaceCreated, map[string]string{
		"namespace_id": id,
	}))
}

// updateNamespaceHandler 更新命名空间，目录在后台刷新
func (h *EchoHandler) updateNamespaceHandler(c echo.Context) error {
	in := new(model.NamespaceInput)
	if err := c.Bind(in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	if err := h.dash.UpdateNamespace(c.Request().Context(), c.Param("id"), *in); err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusAccepted, successResponse(http.StatusAccepted, model.MessageNamespaceUpdated, nil))
}

type domainRequest struct {
	Domain string `json:"domain"`
}

// generateDNSTXTHandler 生成DNS TXT记录
func (h *EchoHandler) generateDNSTXTHandler(c echo.Context) error {
	req := new(domainRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	txt, err := h.dash.GenerateDNSTXT(c.Request().Context(), c.Param("id"), req.Domain)
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "生成TXT记录成功", map[string]string{"txt": txt}))
}

// checkDNSTXTHandler 查询TXT记录是否已发布
func (h *EchoHandler) checkDNSTXTHandler(c echo.Context) error {
	published, err := h.dash.CheckDNSTXT(c.Request().Context(), c.Param("id"), c.QueryParam("domain"), c.QueryParam("txt"))
	if err != nil {
		return h.failure(c, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "查询完成", map[string]bool{"published": published}))
}

// verifyDomainHandler 验证域名
func (h *EchoHandler) verifyDomainHandler(c echo.Context) error {
	id := c.Param("id")
	if err := h.dash.VerifyDomain(c.Request().Context(), id); err != nil {
		return h.failure(c, err)
	}

	v, _, _ := h.dash.Lookup(id)
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "验证成功", v))
}

// draftRequest 创建对话框提交的表单，namespace_id为空表示尚未创建
type draftRequest struct {
	model.NamespaceInput
	NamespaceID string `json:"namespace_id"`
	Domain      string `json:"domain"`
}

// draftGenerateDNSTXTHandler 生成TXT记录，命名空间不存在时先创建
func (h *EchoHandler) draftGenerateDNSTXTHandler(c echo.Context) error {
	req := new(draftRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	draft := h.dash.ResumeDraft(req.NamespaceInput, req.NamespaceID)
	txt, err := draft.GenerateDNSTXT(c.Request().Context(), req.Domain)
	if err != nil {
		return h.draftFailure(c, draft, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "生成TXT记录成功", map[string]string{
		"namespace_id": draft.ID(),
		"txt":          txt,
	}))
}

// draftVerifyHandler 验证域名，命名空间不存在时先创建
func (h *EchoHandler) draftVerifyHandler(c echo.Context) error {
	req := new(draftRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	draft := h.dash.ResumeDraft(req.NamespaceInput, req.NamespaceID)
	if err := draft.Verify(c.Request().Context()); err != nil {
		return h.draftFailure(c, draft, err)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "验证成功", map[string]string{
		"namespace_id": draft.ID(),
	}))
}

// draftFailure 失败时仍返回已创建的namespace_id，页面下次提交时复用
func (h *EchoHandler) draftFailure(c echo.Context, draft *dashboard.Draft, err error) error {
	status := statusOf(err)
	resp := errorResponse(status, err.Error())
	if id := draft.ID(); id != "" {
		resp.Data = map[string]string{"namespace_id": id}
	}
	return c.JSON(status, resp)
}

// notificationsHandler 返回通知，drain=true时读取后清空
func (h *EchoHandler) notificationsHandler(c echo.Context) error {
	var list []dashboard.Notification
	if c.QueryParam("drain") == "true" {
		list = h.feed.Drain()
	} else {
		list = h.feed.Recent(0)
	}
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "获取通知成功", list))
}

// busyHandler 返回各操作是否正在进行
func (h *EchoHandler) busyHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "获取状态成功", h.dash.BusyState()))
}
