package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewDirectoryResetsAnnotations(t *testing.T) {
	owned := []Namespace{{NamespaceID: "ns-1", Name: "alpha", IsVerified: true}}
	delegated := []Namespace{{NamespaceID: "ns-2", Name: "beta"}}

	dir := NewDirectory(owned, delegated)
	require.Len(t, dir.Owned, 1)
	require.Len(t, dir.Delegated, 1)

	// 服务端的is_verified不影响客户端的verified
	assert.True(t, dir.Owned[0].IsVerified)
	assert.False(t, dir.Owned[0].Verified)
	assert.Nil(t, dir.Owned[0].DNSTxt)
	assert.False(t, dir.Delegated[0].Verified)
	assert.Nil(t, dir.Delegated[0].DNSTxt)
	assert.Equal(t, 2, dir.Len())
}

func TestNewDirectoryEmpty(t *testing.T) {
	dir := NewDirectory(nil, nil)
	assert.NotNil(t, dir.Owned)
	assert.NotNil(t, dir.Delegated)
	assert.Equal(t, 0, dir.Len())
}

func TestAnnotateCopiesTxt(t *testing.T) {
	prev := Annotations{Verified: true, DNSTxt: strPtr("dedi-verify=abc")}
	view := Annotate(Namespace{NamespaceID: "ns-1"}, prev)

	require.NotNil(t, view.DNSTxt)
	assert.Equal(t, "dedi-verify=abc", *view.DNSTxt)
	assert.True(t, view.Verified)

	// 修改原值不影响视图
	*prev.DNSTxt = "changed"
	assert.Equal(t, "dedi-verify=abc", *view.DNSTxt)
}

func TestDirectoryApplyTouchesOnlyMatchingRecords(t *testing.T) {
	dir := NewDirectory(
		[]Namespace{{NamespaceID: "ns-1"}, {NamespaceID: "ns-2"}},
		[]Namespace{{NamespaceID: "ns-1"}, {NamespaceID: "ns-3"}},
	)

	updated, ok := dir.Apply("ns-1", func(v NamespaceView) NamespaceView {
		v.Verified = true
		return v
	})
	require.True(t, ok)

	assert.True(t, updated.Owned[0].Verified)
	assert.False(t, updated.Owned[1].Verified)
	assert.True(t, updated.Delegated[0].Verified)
	assert.False(t, updated.Delegated[1].Verified)

	// 原目录不被修改
	assert.False(t, dir.Owned[0].Verified)

	_, ok = dir.Apply("missing", func(v NamespaceView) NamespaceView { return v })
	assert.False(t, ok)
}

func TestDirectoryFind(t *testing.T) {
	dir := NewDirectory(
		[]Namespace{{NamespaceID: "ns-1", Name: "mine"}},
		[]Namespace{{NamespaceID: "ns-2", Name: "shared"}},
	)

	v, col, ok := dir.Find("ns-2")
	require.True(t, ok)
	assert.Equal(t, CollectionDelegated, col)
	assert.Equal(t, "shared", v.Name)

	_, _, ok = dir.Find("ns-9")
	assert.False(t, ok)
}

func TestState(t *testing.T) {
	v := Annotate(Namespace{NamespaceID: "ns-1"}, Annotations{})
	assert.Equal(t, StateUnverified, State(v))

	v.DNSTxt = strPtr("txt")
	assert.Equal(t, StateTxtGenerated, State(v))

	v.Verified = true
	assert.Equal(t, StateVerified, State(v))
}

func TestHasMeaningfulMeta(t *testing.T) {
	assert.False(t, HasMeaningfulMeta(nil))
	assert.False(t, HasMeaningfulMeta(Meta{}))
	assert.False(t, HasMeaningfulMeta(Meta{"additionalProp1": map[string]any{}}))
	assert.False(t, HasMeaningfulMeta(Meta{"a": "", "b": nil}))
	assert.True(t, HasMeaningfulMeta(Meta{"owner": "team-a"}))
	assert.True(t, HasMeaningfulMeta(Meta{"n": 3}))
	assert.True(t, HasMeaningfulMeta(Meta{"nested": map[string]any{"k": "v"}}))
}

func TestNamespaceInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   NamespaceInput
		wantErr bool
	}{
		{"合法输入", NamespaceInput{Name: "my-ns_1", Description: "desc"}, false},
		{"名称带尾随空格", NamespaceInput{Name: "my-ns ", Description: "desc"}, false},
		{"空名称", NamespaceInput{Name: "  ", Description: "desc"}, true},
		{"空描述", NamespaceInput{Name: "ns", Description: ""}, true},
		{"名称含非法字符", NamespaceInput{Name: "my ns!", Description: "desc"}, true},
		{"描述超长", NamespaceInput{Name: "ns", Description: strings.Repeat("x", 201)}, true},
		{"描述恰好200字符", NamespaceInput{Name: "ns", Description: strings.Repeat("字", 200)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeTrims(t *testing.T) {
	name, desc := NamespaceInput{Name: "my-ns ", Description: "  desc "}.Normalize()
	assert.Equal(t, "my-ns", name)
	assert.Equal(t, "desc", desc)
}

func TestFilterNameAndClampDescription(t *testing.T) {
	assert.Equal(t, "myns-1_x", FilterName("my ns-1_x!"))
	assert.Equal(t, "", FilterName("  "))
	assert.Len(t, []rune(ClampDescription(strings.Repeat("a", 250))), MaxDescriptionLength)
	assert.Equal(t, "short", ClampDescription("short"))
}

func TestFormFromView(t *testing.T) {
	placeholder := Annotate(Namespace{Name: "a", Description: "b", Meta: Meta{"additionalProp1": map[string]any{}}}, Annotations{})
	in := FormFromView(placeholder)
	assert.False(t, in.WithMeta)
	assert.Empty(t, in.Meta)

	withMeta := Annotate(Namespace{Name: "a", Description: "b", Meta: Meta{"env": "prod"}}, Annotations{})
	in = FormFromView(withMeta)
	assert.True(t, in.WithMeta)
	assert.Equal(t, "prod", in.Meta["env"])
}
