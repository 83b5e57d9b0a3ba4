package dashboard

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hewenyu/dedi-console/internal/config"
	"github.com/hewenyu/dedi-console/internal/mockdedi"
	"github.com/hewenyu/dedi-console/internal/refresh"
	"github.com/hewenyu/dedi-console/internal/session"
	"github.com/hewenyu/dedi-console/pkg/model"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// testEnv 面板测试环境：模拟后端、已登录的会话和面板
type testEnv struct {
	backend  *mockdedi.TestServer
	owner    *mockdedi.User
	session  *session.Session
	feed     *Feed
	location *Location
	dash     *Dashboard
}

type envOption func(*Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	backend := mockdedi.NewTestServer(t)
	owner, token := backend.SeedUser(t, "owner@example.com", "pw")

	logger := config.NewNopLogger()
	sess := session.New(session.NewMemoryStore(), logger)
	require.NoError(t, sess.SetToken(context.Background(), token))

	env := &testEnv{
		backend:  backend,
		owner:    owner,
		session:  sess,
		feed:     NewFeed(20, logger),
		location: NewLocation(logger),
	}

	var dash *Dashboard
	client := sdk.NewClient(sdk.Config{
		BaseURL: backend.URL,
		Tokens:  sess,
		OnUnauthorized: func() {
			dash.HandleUnauthorized()
		},
	})

	o := Options{
		API:                   client,
		Session:               sess,
		Notifier:              env.feed,
		Navigator:             env.location,
		Logger:                logger,
		Refresh:               refresh.Policy{BaseDelay: 20 * time.Millisecond, MaxAttempts: 5},
		UpdatePlaceholderMeta: true,
	}
	for _, fn := range opts {
		fn(&o)
	}

	dash = New(o)
	t.Cleanup(dash.Close)
	env.dash = dash
	return env
}

// notifications 取出全部通知
func (e *testEnv) notifications() []Notification {
	return e.feed.Drain()
}

func (e *testEnv) calls(route string) int {
	return len(e.backend.Calls(route))
}

func TestFetchNamespaces(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "first")
	ctx := context.Background()

	first, err := env.dash.FetchNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, first.Owned, 1)
	assert.Empty(t, first.Delegated)
	assert.Equal(t, id, first.Owned[0].NamespaceID)
	assert.False(t, first.Owned[0].Verified)
	assert.Nil(t, first.Owned[0].DNSTxt)

	// 附加字段在下一次获取时被重置
	_, err = env.dash.GenerateDNSTXT(ctx, id, "example.com")
	require.NoError(t, err)
	require.NoError(t, env.dash.VerifyDomain(ctx, id))

	second, err := env.dash.FetchNamespaces(ctx)
	require.NoError(t, err)
	assert.Nil(t, second.Owned[0].DNSTxt)
	assert.False(t, second.Owned[0].Verified, "verified不沿用上次会话的值")
	assert.True(t, second.Owned[0].IsVerified)

	third, err := env.dash.FetchNamespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, third, "没有修改时两次获取结果相同")
	assert.Equal(t, third, env.dash.Snapshot())
}

func TestFetchNoNamespaces(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.dash.Refresh(context.Background()))
	assert.Empty(t, env.dash.Owned())
	assert.Empty(t, env.dash.Delegated())
	assert.Empty(t, env.notifications(), "空目录不应提示错误")
}

func TestFetchUnexpectedMessage(t *testing.T) {
	env := newTestEnv(t)
	env.backend.SeedNamespace(t, env.owner, "alpha", "first")
	ctx := context.Background()
	require.NoError(t, env.dash.Refresh(ctx))

	env.backend.SetFault(mockdedi.RouteListNamespaces, mockdedi.Fault{
		Status: http.StatusOK,
		Body:   map[string]any{"message": "Profile not found"},
	})

	_, err := env.dash.FetchNamespaces(ctx)
	require.Error(t, err)
	assert.True(t, sdk.IsServer(err))
	assert.Len(t, env.dash.Owned(), 1, "失败时保留原有目录")
	assert.Empty(t, env.notifications(), "FetchNamespaces本身不通知")

	err = env.dash.Refresh(ctx)
	require.Error(t, err)
	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Profile not found", notes[0].Description)
	assert.Equal(t, VariantDestructive, notes[0].Variant)

	// 没有消息时使用通用提示
	env.backend.SetFault(mockdedi.RouteListNamespaces, mockdedi.Fault{Status: http.StatusOK, Body: map[string]any{}})
	_, err = env.dash.FetchNamespaces(ctx)
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch namespaces", err.Error())
}

func TestSharedNamespaces(t *testing.T) {
	env := newTestEnv(t)
	partner, _ := env.backend.SeedUser(t, "partner@example.com", "pw")
	shared := env.backend.SeedNamespace(t, partner, "catalog", "shared")
	require.NoError(t, env.backend.Store().Delegate(shared, env.owner.ID))
	env.backend.SeedNamespace(t, env.owner, "mine", "owned")

	list, err := env.dash.SharedNamespaces(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared, list[0].NamespaceID)
	assert.Len(t, env.dash.Owned(), 1)
}

func TestCreateNamespace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.dash.CreateNamespace(ctx, model.NamespaceInput{Name: "my-ns ", Description: "  desc"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	calls := env.backend.Calls(mockdedi.RouteCreateNamespace)
	require.Len(t, calls, 1, "只发出一次创建请求")
	assert.Equal(t, "my-ns", calls[0].Body["name"])
	assert.Equal(t, "desc", calls[0].Body["description"])
	assert.Equal(t, map[string]any{}, calls[0].Body["meta"])

	// 创建后目录中能按id找到提交的值
	v, collection, ok := env.dash.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, model.CollectionOwned, collection)
	assert.Equal(t, "my-ns", v.Name)
	assert.Equal(t, "desc", v.Description)

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, VariantSuccess, notes[0].Variant)
	assert.Contains(t, notes[0].Description, `"my-ns"`)
}

func TestCreateNamespaceMeta(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 开启元数据且非空时发送用户元数据
	_, err := env.dash.CreateNamespace(ctx, model.NamespaceInput{
		Name: "with-meta", Description: "d", WithMeta: true, Meta: model.Meta{"region": "eu"},
	})
	require.NoError(t, err)

	// 关闭元数据时即使有内容也发送空map
	_, err = env.dash.CreateNamespace(ctx, model.NamespaceInput{
		Name: "no-meta", Description: "d", WithMeta: false, Meta: model.Meta{"region": "eu"},
	})
	require.NoError(t, err)

	calls := env.backend.Calls(mockdedi.RouteCreateNamespace)
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{"region": "eu"}, calls[0].Body["meta"])
	assert.Equal(t, map[string]any{}, calls[1].Body["meta"])
}

func TestCreateNamespaceValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   model.NamespaceInput
		message string
	}{
		{"名称为空", model.NamespaceInput{Name: "  ", Description: "d"}, "Name and description are required fields."},
		{"描述为空", model.NamespaceInput{Name: "ok", Description: ""}, "Name and description are required fields."},
		{"名称包含非法字符", model.NamespaceInput{Name: "bad name!", Description: "d"}, ""},
		{"描述过长", model.NamespaceInput{Name: "ok", Description: strings.Repeat("a", 201)}, ""},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.dash.CreateNamespace(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, sdk.IsValidation(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}

			notes := env.notifications()
			require.Len(t, notes, 1)
			assert.Equal(t, "Validation Error", notes[0].Title)
		})
	}

	assert.Equal(t, 0, env.calls(mockdedi.RouteCreateNamespace), "校验失败时不发出网络请求")
}

func TestCreateNamespaceFailure(t *testing.T) {
	tests := []struct {
		name string
		body any
		want string
	}{
		{"服务端消息", map[string]any{"message": "Namespace name already exists"}, "Namespace name already exists"},
		{"服务端错误字段", map[string]any{"error": "quota exceeded"}, "quota exceeded"},
		{"没有消息", map[string]any{}, "Failed to create namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.backend.SetFault(mockdedi.RouteCreateNamespace, mockdedi.Fault{Status: http.StatusBadRequest, Body: tt.body})

			_, err := env.dash.CreateNamespace(context.Background(), model.NamespaceInput{Name: "ns", Description: "d"})
			require.Error(t, err)
			assert.True(t, sdk.IsServer(err))

			notes := env.notifications()
			require.Len(t, notes, 1)
			assert.Equal(t, tt.want, notes[0].Description)

			// 创建失败不重试
			assert.Equal(t, 1, env.calls(mockdedi.RouteCreateNamespace))
		})
	}
}

func TestUpdateWithoutSelection(t *testing.T) {
	env := newTestEnv(t)

	err := env.dash.UpdateNamespace(context.Background(), "", model.NamespaceInput{Name: "a", Description: "b"})
	require.Error(t, err)
	assert.True(t, sdk.IsUpdateWithoutSelection(err))
	assert.Equal(t, 0, env.calls(mockdedi.RouteUpdateNamespace))

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "No namespace selected for update.", notes[0].Description)
}

func TestUpdateNamespaceMeta(t *testing.T) {
	t.Run("占位元数据", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")

		require.NoError(t, env.dash.UpdateNamespace(context.Background(), id, model.NamespaceInput{Name: "alpha", Description: "after"}))
		calls := env.backend.Calls(mockdedi.RouteUpdateNamespace)
		require.Len(t, calls, 1)
		assert.Equal(t, map[string]any{"additionalProp1": map[string]any{}}, calls[0].Body["meta"])
	})

	t.Run("关闭占位元数据", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.UpdatePlaceholderMeta = false })
		id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")

		require.NoError(t, env.dash.UpdateNamespace(context.Background(), id, model.NamespaceInput{Name: "alpha", Description: "after"}))
		calls := env.backend.Calls(mockdedi.RouteUpdateNamespace)
		require.Len(t, calls, 1)
		assert.Equal(t, map[string]any{}, calls[0].Body["meta"])
	})

	t.Run("用户元数据", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")

		in := model.NamespaceInput{Name: "alpha", Description: "after", WithMeta: true, Meta: model.Meta{"k": "v"}}
		require.NoError(t, env.dash.UpdateNamespace(context.Background(), id, in))
		calls := env.backend.Calls(mockdedi.RouteUpdateNamespace)
		require.Len(t, calls, 1)
		assert.Equal(t, map[string]any{"k": "v"}, calls[0].Body["meta"])
	})
}

func TestUpdateNamespaceBoundedRefresh(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")
	ctx := context.Background()
	require.NoError(t, env.dash.Refresh(ctx))
	listBefore := env.calls(mockdedi.RouteListNamespaces)

	// 前两次读取仍返回旧数据
	env.backend.Store().SetReadLag(2)
	start := time.Now()
	require.NoError(t, env.dash.UpdateNamespace(ctx, id, model.NamespaceInput{Name: "renamed", Description: "after"}))
	env.dash.WaitRefresh()

	calls := env.backend.Calls(mockdedi.RouteListNamespaces)[listBefore:]
	// 3次探测，第3次匹配，然后一次最终刷新
	require.Len(t, calls, 4)

	base := 20 * time.Millisecond
	assert.GreaterOrEqual(t, calls[0].At.Sub(start), base, "首次探测前等待")
	assert.GreaterOrEqual(t, calls[1].At.Sub(calls[0].At), base)
	assert.GreaterOrEqual(t, calls[2].At.Sub(calls[1].At), 2*base)

	v, _, ok := env.dash.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "renamed", v.Name)
	assert.Equal(t, "after", v.Description)
}

func TestUpdateNamespaceRefreshExhausted(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")
	ctx := context.Background()

	// 读延迟超过重试次数
	env.backend.Store().SetReadLag(100)
	start := time.Now()
	require.NoError(t, env.dash.UpdateNamespace(ctx, id, model.NamespaceInput{Name: "renamed", Description: "after"}))
	env.dash.scheduler.Wait()

	calls := env.backend.Calls(mockdedi.RouteListNamespaces)
	// 5次探测加一次最终刷新
	require.Len(t, calls, 6)

	base := 20 * time.Millisecond
	assert.GreaterOrEqual(t, calls[0].At.Sub(start), base)
	for i := 1; i < 5; i++ {
		assert.GreaterOrEqual(t, calls[i].At.Sub(calls[i-1].At), time.Duration(i)*base, "第%d次重试间隔", i)
	}

	// 最终刷新后仍是旧数据
	v, _, ok := env.dash.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "before", v.Description)
}

func TestUpdateNamespaceRefreshRetriesOnError(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Refresh = refresh.Policy{BaseDelay: 5 * time.Millisecond, MaxAttempts: 3}
	})
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")

	env.backend.SetFault(mockdedi.RouteListNamespaces, mockdedi.Fault{Status: http.StatusInternalServerError, Body: map[string]any{"message": "boom"}})
	require.NoError(t, env.dash.UpdateNamespace(context.Background(), id, model.NamespaceInput{Name: "alpha", Description: "after"}))
	env.dash.scheduler.Wait()

	// 3次失败的探测，最终刷新失败时通知用户
	assert.Equal(t, 4, env.calls(mockdedi.RouteListNamespaces))
	notes := env.notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, VariantSuccess, notes[0].Variant)
	assert.Equal(t, "boom", notes[1].Description)
}

func TestUpdateNamespaceCancelsPendingRefresh(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Refresh = refresh.Policy{BaseDelay: 100 * time.Millisecond, MaxAttempts: 1}
	})
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "before")
	ctx := context.Background()

	require.NoError(t, env.dash.UpdateNamespace(ctx, id, model.NamespaceInput{Name: "alpha", Description: "first"}))
	assert.True(t, env.dash.scheduler.Pending(id))
	require.NoError(t, env.dash.UpdateNamespace(ctx, id, model.NamespaceInput{Name: "alpha", Description: "second"}))
	env.dash.scheduler.Wait()

	// 第一次更新的刷新被取消，只有第二次的探测和最终刷新
	assert.Equal(t, 2, env.calls(mockdedi.RouteListNamespaces))
	v, _, ok := env.dash.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "second", v.Description)
}

func TestUpdateNamespaceFailure(t *testing.T) {
	env := newTestEnv(t)
	partner, _ := env.backend.SeedUser(t, "partner@example.com", "pw")
	id := env.backend.SeedNamespace(t, partner, "theirs", "d")

	err := env.dash.UpdateNamespace(context.Background(), id, model.NamespaceInput{Name: "x", Description: "y"})
	require.Error(t, err)
	assert.True(t, sdk.IsServer(err))
	assert.False(t, env.dash.scheduler.Pending(id), "失败时不安排刷新")

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Only the owner can update this namespace", notes[0].Description)
	assert.Equal(t, 1, env.calls(mockdedi.RouteUpdateNamespace), "更新失败不重试")
}

func TestGenerateDNSTXT(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "d")
	other := env.backend.SeedNamespace(t, env.owner, "beta", "d")
	ctx := context.Background()
	require.NoError(t, env.dash.Refresh(ctx))

	txt, err := env.dash.GenerateDNSTXT(ctx, id, " example.com ")
	require.NoError(t, err)
	assert.Contains(t, txt, "dedi-verification=")

	calls := env.backend.Calls(mockdedi.RouteGenerateDNSTXT)
	require.Len(t, calls, 1)
	assert.Equal(t, "/dedi/generate-dns-txt/"+id+"/example.com", calls[0].Path)

	v, _, _ := env.dash.Lookup(id)
	require.NotNil(t, v.DNSTxt)
	assert.Equal(t, txt, *v.DNSTxt)
	assert.Equal(t, model.StateTxtGenerated, model.State(v))

	untouched, _, _ := env.dash.Lookup(other)
	assert.Nil(t, untouched.DNSTxt)

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "DNS TXT Record Generated", notes[0].Title)
	assert.Equal(t, "DNS TXT record generated successfully", notes[0].Description)
}

func TestGenerateDNSTXTEmptyDomain(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dash.GenerateDNSTXT(context.Background(), "ns-1", "   ")
	require.Error(t, err)
	assert.True(t, sdk.IsValidation(err))
	assert.Empty(t, env.backend.Calls(""), "不发出任何网络请求")

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Please enter a valid domain name.", notes[0].Description)
}

func TestGenerateDNSTXTFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dash.GenerateDNSTXT(context.Background(), "missing", "example.com")
	require.Error(t, err)
	assert.True(t, sdk.IsServer(err))

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Namespace not found", notes[0].Description)
}

func TestVerifyDomainIsOptimistic(t *testing.T) {
	env := newTestEnv(t)
	partner, _ := env.backend.SeedUser(t, "partner@example.com", "pw")
	shared := env.backend.SeedNamespace(t, partner, "shared", "d")
	require.NoError(t, env.backend.Store().Delegate(shared, env.owner.ID))
	other := env.backend.SeedNamespace(t, env.owner, "mine", "d")
	ctx := context.Background()
	require.NoError(t, env.dash.Refresh(ctx))

	_, err := env.dash.GenerateDNSTXT(ctx, shared, "example.com")
	require.NoError(t, err)
	listCalls := env.calls(mockdedi.RouteListNamespaces)

	require.NoError(t, env.dash.VerifyDomain(ctx, shared))
	assert.Equal(t, listCalls, env.calls(mockdedi.RouteListNamespaces), "验证后不重新获取目录")

	v, collection, ok := env.dash.Lookup(shared)
	require.True(t, ok)
	assert.Equal(t, model.CollectionDelegated, collection)
	assert.True(t, v.Verified)
	assert.Equal(t, model.StateVerified, model.State(v))

	mine, _, _ := env.dash.Lookup(other)
	assert.False(t, mine.Verified, "其他命名空间不受影响")
}

func TestVerifyDomainFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "d")
	require.NoError(t, env.dash.Refresh(context.Background()))

	err := env.dash.VerifyDomain(context.Background(), id)
	require.Error(t, err)

	v, _, _ := env.dash.Lookup(id)
	assert.False(t, v.Verified)

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Verification Failed", notes[0].Title)
	assert.Equal(t, "No DNS TXT record generated for this namespace", notes[0].Description)
}

func TestNetworkErrorUsesGenericMessage(t *testing.T) {
	env := newTestEnv(t)
	dash := New(Options{
		API:      sdk.NewClient(sdk.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}),
		Notifier: env.feed,
	})
	defer dash.Close()

	err := dash.VerifyDomain(context.Background(), "ns-1")
	require.Error(t, err)
	assert.True(t, sdk.IsNetwork(err))

	notes := env.notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to verify domain. Please try again.", notes[0].Description)
}

func TestDraftGenerateCreatesNamespaceFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.dash.NewDraft(model.NamespaceInput{Name: "draft-ns", Description: "d"})
	assert.Empty(t, draft.ID())

	txt, err := draft.GenerateDNSTXT(ctx, "example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, txt)
	assert.Equal(t, txt, draft.TXT())
	require.NotEmpty(t, draft.ID())

	// 再次生成复用已创建的命名空间
	_, err = draft.GenerateDNSTXT(ctx, "example.org")
	require.NoError(t, err)
	assert.Equal(t, 1, env.calls(mockdedi.RouteCreateNamespace))

	require.NoError(t, draft.Verify(ctx))
	v, _, ok := env.dash.Lookup(draft.ID())
	require.True(t, ok, "验证后重新获取目录")
	assert.True(t, v.IsVerified)
}

func TestDraftEmptyDomainDoesNotCreate(t *testing.T) {
	env := newTestEnv(t)

	draft := env.dash.NewDraft(model.NamespaceInput{Name: "draft-ns", Description: "d"})
	_, err := draft.GenerateDNSTXT(context.Background(), "")
	require.Error(t, err)
	assert.True(t, sdk.IsValidation(err))
	assert.Empty(t, env.backend.Calls(""))
}

func TestDraftCreateFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.backend.SetFault(mockdedi.RouteCreateNamespace, mockdedi.Fault{
		Status: http.StatusConflict,
		Body:   map[string]any{"message": "Namespace name already exists"},
	})

	draft := env.dash.NewDraft(model.NamespaceInput{Name: "dup", Description: "d"})
	err := draft.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Namespace name already exists", err.Error())
	assert.Empty(t, draft.ID())
	assert.Equal(t, 0, env.calls(mockdedi.RouteVerifyDomain), "创建失败时不再验证")

	notes := env.notifications()
	require.Len(t, notes, 1, "只通知创建错误")
	assert.Equal(t, "Namespace name already exists", notes[0].Description)
}

func TestResumeDraft(t *testing.T) {
	env := newTestEnv(t)
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "d")

	draft := env.dash.ResumeDraft(model.NamespaceInput{Name: "alpha", Description: "d"}, id)
	_, err := draft.GenerateDNSTXT(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, env.calls(mockdedi.RouteCreateNamespace))
}

func TestUnauthorizedNavigatesToLogin(t *testing.T) {
	env := newTestEnv(t)
	env.backend.SetFault(mockdedi.RouteListNamespaces, mockdedi.Fault{Status: http.StatusUnauthorized, Body: map[string]any{"message": "expired"}})
	ctx := context.Background()

	err := env.dash.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, sdk.IsUnauthorized(err))
	assert.Equal(t, RouteLogin, env.location.Current())
	assert.Empty(t, env.notifications(), "401由跳转处理，不单独提示")

	token, err := env.session.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "收到401后清除令牌")
}

func TestLoadRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.True(t, env.dash.Load(ctx))
	assert.Equal(t, "", env.location.Current())

	require.NoError(t, env.session.Clear(ctx))
	assert.False(t, env.dash.Load(ctx))
	assert.Equal(t, RouteHome, env.location.Current())
}

type stubChecker struct {
	records map[string]string
}

func (s stubChecker) HasTXT(_ context.Context, domain, want string) (bool, error) {
	return s.records[domain] == want, nil
}

func TestCheckDNSTXT(t *testing.T) {
	checker := stubChecker{records: map[string]string{}}
	env := newTestEnv(t, func(o *Options) { o.Resolver = checker })
	id := env.backend.SeedNamespace(t, env.owner, "alpha", "d")
	ctx := context.Background()
	require.NoError(t, env.dash.Refresh(ctx))

	// 尚未生成记录
	_, err := env.dash.CheckDNSTXT(ctx, id, "example.com", "")
	assert.True(t, sdk.IsValidation(err))

	txt, err := env.dash.GenerateDNSTXT(ctx, id, "example.com")
	require.NoError(t, err)

	published, err := env.dash.CheckDNSTXT(ctx, id, "example.com", "")
	require.NoError(t, err)
	assert.False(t, published)

	checker.records["example.com"] = txt
	published, err = env.dash.CheckDNSTXT(ctx, id, "example.com", "")
	require.NoError(t, err)
	assert.True(t, published)

	v, _, _ := env.dash.Lookup(id)
	assert.False(t, v.Verified, "检查不改变验证状态")

	_, err = env.dash.CheckDNSTXT(ctx, id, " ", "")
	assert.True(t, sdk.IsValidation(err))
}

func TestBusyFlags(t *testing.T) {
	env := newTestEnv(t)
	env.backend.SetFault(mockdedi.RouteCreateNamespace, mockdedi.Fault{Delay: 200 * time.Millisecond})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = env.dash.CreateNamespace(context.Background(), model.NamespaceInput{Name: "slow", Description: "d"})
	}()

	assert.Eventually(t, func() bool { return env.dash.Busy(ActionCreate) }, time.Second, 5*time.Millisecond)
	state := env.dash.BusyState()
	assert.True(t, state[ActionCreate])
	assert.False(t, state[ActionUpdate], "不同操作互不影响")
	assert.False(t, state[ActionVerify])

	wg.Wait()
	assert.False(t, env.dash.Busy(ActionCreate))
}

func TestFeed(t *testing.T) {
	feed := NewFeed(3, config.NewNopLogger())
	for _, title := range []string{"a", "b", "c", "d"} {
		feed.Notify(Notification{Title: title})
	}

	recent := feed.Recent(0)
	require.Len(t, recent, 3, "超出容量时丢弃最旧的通知")
	assert.Equal(t, "b", recent[0].Title)
	assert.Equal(t, "d", recent[2].Title)
	assert.NotEmpty(t, recent[0].ID)
	assert.False(t, recent[0].At.IsZero())
	assert.Equal(t, VariantDefault, recent[0].Variant)

	last := feed.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "d", last[0].Title)

	assert.Len(t, feed.Drain(), 3)
	assert.Empty(t, feed.Recent(0))
}

func TestCheckDNSTXTWithoutResolver(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dash.CheckDNSTXT(context.Background(), "ns-1", "example.com", "dedi-verification=abc")
	require.Error(t, err)
	assert.True(t, sdk.IsServer(err))

	var se *sdk.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "DNS TXT lookup is not configured.", se.Message)
}

func TestFetchSharedAcrossCancelledCaller(t *testing.T) {
	env := newTestEnv(t)
	env.backend.SeedNamespace(t, env.owner, "alpha", "d")
	env.backend.SetFault(mockdedi.RouteListNamespaces, mockdedi.Fault{Delay: 150 * time.Millisecond})

	// 第一个调用方发起请求后取消
	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := env.dash.FetchNamespaces(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return env.calls(mockdedi.RouteListNamespaces) == 1
	}, time.Second, 5*time.Millisecond)

	secondDir := make(chan model.Directory, 1)
	secondErr := make(chan error, 1)
	go func() {
		dir, err := env.dash.FetchNamespaces(context.Background())
		secondDir <- dir
		secondErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	// 共享的请求不受第一个调用方取消的影响
	dir := <-secondDir
	require.NoError(t, <-secondErr)
	require.Len(t, dir.Owned, 1)
	assert.Equal(t, "alpha", dir.Owned[0].Name)
	assert.Equal(t, 1, env.calls(mockdedi.RouteListNamespaces))
}
