package dashboard

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/pkg/model"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

const (
	generateFallback = "Failed to generate DNS TXT record."
	verifyFallback   = "Failed to verify domain."
)

// GenerateDNSTXT 为命名空间和域名生成TXT记录，并附加到已加载的命名空间上
// 域名为空时返回ValidationError，不发出网络请求
func (d *Dashboard) GenerateDNSTXT(ctx context.Context, namespaceID, domain string) (txt string, err error) {
	done := d.begin(ActionGenerateDNS)
	defer done()
	defer func() {
		d.record(ActionGenerateDNS, err)
		if err != nil {
			d.notifyError("Error", err, generateFallback+" Please try again.")
		}
	}()

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", sdk.NewValidationError("Please enter a valid domain name.")
	}

	result, err := d.api.GenerateDNSTXT(ctx, namespaceID, domain)
	if err != nil {
		return "", err
	}

	txt = result.TXT
	d.annotate(namespaceID, func(v model.NamespaceView) model.NamespaceView {
		record := txt
		v.DNSTxt = &record
		return v
	})

	d.logger.Info("已生成DNS TXT记录", zap.String("namespace_id", namespaceID), zap.String("domain", domain))
	d.notifySuccess("DNS TXT Record Generated", firstNonEmpty(result.Message, "DNS TXT record has been generated successfully."))
	return txt, nil
}

// VerifyDomain 请求验证域名，成功后立即把两个集合中的该命名空间标记为已验证
// 不重新获取目录，后续刷新可能仍显示服务端尚未同步的状态
func (d *Dashboard) VerifyDomain(ctx context.Context, namespaceID string) (err error) {
	done := d.begin(ActionVerify)
	defer done()
	defer func() {
		d.record(ActionVerify, err)
		if err != nil {
			d.notifyError("Verification Failed", err, verifyFallback+" Please try again.")
		}
	}()

	result, err := d.api.VerifyDomain(ctx, namespaceID)
	if err != nil {
		return err
	}

	d.annotate(namespaceID, func(v model.NamespaceView) model.NamespaceView {
		v.Verified = true
		return v
	})

	d.logger.Info("域名验证成功", zap.String("namespace_id", namespaceID))
	d.notifySuccess("Verification Successful!", firstNonEmpty(result.Message, "Domain has been successfully verified."))
	return nil
}

// CheckDNSTXT 通过DNS查询确认TXT记录是否已发布，不改变验证状态
// txt为空时使用该命名空间在本次会话中生成的记录
func (d *Dashboard) CheckDNSTXT(ctx context.Context, namespaceID, domain, txt string) (bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false, sdk.NewValidationError("Please enter a valid domain name.")
	}
	if d.resolver == nil {
		return false, sdk.NewServerError("DNS TXT lookup is not configured.", http.StatusServiceUnavailable)
	}

	if strings.TrimSpace(txt) == "" {
		v, _, ok := d.Lookup(namespaceID)
		if !ok || v.DNSTxt == nil {
			return false, sdk.NewValidationError("No DNS TXT record has been generated for this namespace.")
		}
		txt = *v.DNSTxt
	}

	published, err := d.resolver.HasTXT(ctx, domain, txt)
	if err != nil {
		d.logger.Warn("查询TXT记录失败", zap.String("domain", domain), zap.Error(err))
		return false, sdk.NewNetworkError("Failed to look up DNS TXT records.", err)
	}

	d.logger.Debug("TXT记录检查完成", zap.String("domain", domain), zap.Bool("published", published))
	return published, nil
}

// Draft 创建命名空间对话框中的草稿
// 在命名空间创建之前生成TXT记录或验证域名时，会先创建命名空间
type Draft struct {
	d *Dashboard

	mu    sync.Mutex
	input model.NamespaceInput
	id    string
	txt   string
}

// NewDraft 创建草稿
func (d *Dashboard) NewDraft(in model.NamespaceInput) *Draft {
	return &Draft{d: d, input: in}
}

// ResumeDraft 恢复已创建过命名空间的草稿，namespaceID为空时等同于NewDraft
func (d *Dashboard) ResumeDraft(in model.NamespaceInput, namespaceID string) *Draft {
	return &Draft{d: d, input: in, id: namespaceID}
}

// ID 返回已创建的namespace_id，尚未创建时为空
func (dr *Draft) ID() string {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.id
}

// TXT 返回最近生成的TXT记录
func (dr *Draft) TXT() string {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.txt
}

// Create 创建命名空间，已创建时直接返回已有的namespace_id
func (dr *Draft) Create(ctx context.Context) (string, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.ensureCreated(ctx)
}

// ensureCreated 调用方需持有dr.mu
func (dr *Draft) ensureCreated(ctx context.Context) (string, error) {
	if dr.id != "" {
		return dr.id, nil
	}

	id, err := dr.d.CreateNamespace(ctx, dr.input)
	if err != nil {
		return "", err
	}
	dr.id = id
	return id, nil
}

// GenerateDNSTXT 生成TXT记录，命名空间不存在时先创建
// 创建失败时直接返回创建错误，不再单独通知
func (dr *Draft) GenerateDNSTXT(ctx context.Context, domain string) (string, error) {
	if strings.TrimSpace(domain) == "" {
		err := sdk.NewValidationError("Please enter a valid domain name.")
		dr.d.notifyError("Validation Error", err, "")
		return "", err
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	id, err := dr.ensureCreated(ctx)
	if err != nil {
		return "", err
	}

	txt, err := dr.d.GenerateDNSTXT(ctx, id, domain)
	if err != nil {
		return "", err
	}
	dr.txt = txt
	return txt, nil
}

// Verify 验证域名，命名空间不存在时先创建；验证成功后重新获取目录
func (dr *Draft) Verify(ctx context.Context) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	id, err := dr.ensureCreated(ctx)
	if err != nil {
		return err
	}

	if err := dr.d.VerifyDomain(ctx, id); err != nil {
		return err
	}
	return dr.d.Refresh(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
