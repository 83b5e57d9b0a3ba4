package dashboard

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/cohesivestack/valgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hewenyu/dedi-console/internal/config"
	"github.com/hewenyu/dedi-console/internal/metrics"
	"github.com/hewenyu/dedi-console/internal/refresh"
	"github.com/hewenyu/dedi-console/pkg/model"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// API 面板使用的dedi接口，*sdk.Client实现了该接口
type API interface {
	ListNamespaces(ctx context.Context) (*sdk.NamespaceList, error)
	CreateNamespace(ctx context.Context, req sdk.NamespaceRequest) (string, error)
	UpdateNamespace(ctx context.Context, namespaceID string, req sdk.NamespaceRequest) error
	GenerateDNSTXT(ctx context.Context, namespaceID, domain string) (*sdk.TXTResult, error)
	VerifyDomain(ctx context.Context, namespaceID string) (*sdk.VerifyResult, error)
}

// Authenticator 判断当前会话是否已登录
type Authenticator interface {
	Authenticated(ctx context.Context) bool
}

// TXTChecker 查询域名是否已发布TXT记录
type TXTChecker interface {
	HasTXT(ctx context.Context, domain, want string) (bool, error)
}

// Action 可能正在进行的用户操作
type Action string

const (
	ActionFetch       Action = "fetch"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionGenerateDNS Action = "generate_dns"
	ActionVerify      Action = "verify"
)

// Actions 全部操作，按展示顺序排列
var Actions = []Action{ActionFetch, ActionCreate, ActionUpdate, ActionGenerateDNS, ActionVerify}

// Options 面板依赖
type Options struct {
	API       API
	Session   Authenticator
	Resolver  TXTChecker
	Notifier  Notifier
	Navigator Navigator
	Logger    config.Logger
	// 更新后刷新目录的重试策略
	Refresh refresh.Policy
	// 未开启元数据时，更新请求是否发送占位元数据
	UpdatePlaceholderMeta bool
}

// Dashboard 命名空间面板：维护当前用户的命名空间目录，处理创建、更新和域名验证
type Dashboard struct {
	api       API
	session   Authenticator
	resolver  TXTChecker
	notifier  Notifier
	navigator Navigator
	logger    config.Logger
	policy    refresh.Policy
	scheduler *refresh.Scheduler

	placeholderMeta bool

	mu  sync.RWMutex
	dir model.Directory

	busyMu sync.Mutex
	busy   map[Action]int

	group singleflight.Group
}

// New 创建面板
func New(opts Options) *Dashboard {
	if opts.Logger == nil {
		opts.Logger = config.NewNopLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewFeed(DefaultFeedSize, opts.Logger)
	}
	if opts.Navigator == nil {
		opts.Navigator = NewLocation(opts.Logger)
	}

	return &Dashboard{
		api:             opts.API,
		session:         opts.Session,
		resolver:        opts.Resolver,
		notifier:        opts.Notifier,
		navigator:       opts.Navigator,
		logger:          opts.Logger,
		policy:          opts.Refresh,
		scheduler:       refresh.NewScheduler(opts.Logger.Named("refresh")),
		placeholderMeta: opts.UpdatePlaceholderMeta,
		dir:             model.NewDirectory(nil, nil),
		busy:            make(map[Action]int),
	}
}

// Close 取消所有未完成的刷新任务
func (d *Dashboard) Close() {
	d.scheduler.Stop()
}

// WaitRefresh 等待后台刷新任务结束，命令行在退出前调用
func (d *Dashboard) WaitRefresh() {
	d.scheduler.Wait()
}

// Load 打开面板：未登录时跳转到首页，否则加载命名空间目录
func (d *Dashboard) Load(ctx context.Context) bool {
	if !d.RequireAuth(ctx) {
		return false
	}
	d.Refresh(ctx)
	return true
}

// RequireAuth 检查登录状态，未登录时跳转到首页
func (d *Dashboard) RequireAuth(ctx context.Context) bool {
	if d.session == nil || d.session.Authenticated(ctx) {
		return true
	}
	d.navigator.Navigate(RouteHome)
	return false
}

// HandleUnauthorized 会话失效后跳转到登录页，作为sdk.Config.OnUnauthorized使用
func (d *Dashboard) HandleUnauthorized() {
	d.logger.Info("会话已失效，跳转到登录页")
	d.navigator.Navigate(RouteLogin)
}

// Busy 判断某个操作是否正在进行
func (d *Dashboard) Busy(action Action) bool {
	d.busyMu.Lock()
	defer d.busyMu.Unlock()
	return d.busy[action] > 0
}

// BusyState 返回全部操作的进行状态
func (d *Dashboard) BusyState() map[Action]bool {
	d.busyMu.Lock()
	defer d.busyMu.Unlock()

	state := make(map[Action]bool, len(Actions))
	for _, a := range Actions {
		state[a] = d.busy[a] > 0
	}
	return state
}

// begin 标记操作开始，返回结束函数
func (d *Dashboard) begin(action Action) func() {
	d.busyMu.Lock()
	d.busy[action]++
	d.busyMu.Unlock()

	return func() {
		d.busyMu.Lock()
		d.busy[action]--
		d.busyMu.Unlock()
	}
}

func (d *Dashboard) notifySuccess(title, description string) {
	d.notifier.Notify(Notification{Title: title, Description: description, Variant: VariantSuccess})
}

// notifyError 把错误转换为用户通知
// 会话失效由全局跳转处理，不再单独提示
func (d *Dashboard) notifyError(title string, err error, fallback string) {
	if sdk.IsUnauthorized(err) {
		return
	}
	if sdk.IsValidation(err) {
		title = "Validation Error"
	}
	d.notifier.Notify(Notification{
		Title:       title,
		Description: describe(err, fallback),
		Variant:     VariantDestructive,
	})
}

// describe 返回最具体的错误信息：服务端消息优先，网络错误使用通用提示
func describe(err error, fallback string) string {
	var se *sdk.Error
	if errors.As(err, &se) && se.Code != sdk.ErrNetwork && se.Message != "" {
		return se.Message
	}
	return fallback
}

func (d *Dashboard) record(action Action, err error) {
	metrics.RecordAction(string(action), err)
	if err != nil && !sdk.IsValidation(err) {
		d.logger.Warn("操作失败", zap.String("action", string(action)), zap.Error(err))
	}
}

// validateInput 校验表单输入，失败时返回ValidationError
func validateInput(in model.NamespaceInput) error {
	err := in.Validate()
	if err == nil {
		return nil
	}

	name, description := in.Normalize()
	if name == "" || description == "" {
		return sdk.NewValidationError("Name and description are required fields.")
	}

	var verr *valgo.Error
	if !errors.As(err, &verr) {
		return sdk.NewValidationError(err.Error())
	}

	keys := make([]string, 0, len(verr.Errors()))
	for k := range verr.Errors() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	messages := make([]string, 0, len(keys))
	for _, k := range keys {
		messages = append(messages, verr.Errors()[k].Messages()...)
	}
	return sdk.NewValidationError(strings.Join(messages, " "))
}
