package model

// Collection 命名空间所属的集合
type Collection string

const (
	// CollectionOwned 用户自己拥有的命名空间
	CollectionOwned Collection = "owned"
	// CollectionDelegated 其他用户共享给当前用户的命名空间
	CollectionDelegated Collection = "delegated"
)

// Directory 当前用户的命名空间目录
type Directory struct {
	Owned     []NamespaceView `json:"owned"`
	Delegated []NamespaceView `json:"delegated"`
}

// NewDirectory 根据服务端数据构建目录，所有客户端附加字段都会被重置
func NewDirectory(owned, delegated []Namespace) Directory {
	return Directory{
		Owned:     annotateAll(owned),
		Delegated: annotateAll(delegated),
	}
}

func annotateAll(list []Namespace) []NamespaceView {
	views := make([]NamespaceView, 0, len(list))
	for _, ns := range list {
		views = append(views, Annotate(ns, Annotations{}))
	}
	return views
}

// Find 按namespace_id查找命名空间，优先查找owned集合
func (d Directory) Find(namespaceID string) (NamespaceView, Collection, bool) {
	for _, v := range d.Owned {
		if v.NamespaceID == namespaceID {
			return v, CollectionOwned, true
		}
	}
	for _, v := range d.Delegated {
		if v.NamespaceID == namespaceID {
			return v, CollectionDelegated, true
		}
	}
	return NamespaceView{}, "", false
}

// Apply 对两个集合中匹配namespace_id的记录应用修改，返回新的目录和是否有记录被修改
func (d Directory) Apply(namespaceID string, fn func(NamespaceView) NamespaceView) (Directory, bool) {
	owned, okOwned := applyTo(d.Owned, namespaceID, fn)
	delegated, okDelegated := applyTo(d.Delegated, namespaceID, fn)
	return Directory{Owned: owned, Delegated: delegated}, okOwned || okDelegated
}

func applyTo(list []NamespaceView, namespaceID string, fn func(NamespaceView) NamespaceView) ([]NamespaceView, bool) {
	out := make([]NamespaceView, len(list))
	found := false
	for i, v := range list {
		if v.NamespaceID == namespaceID {
			out[i] = fn(v)
			found = true
			continue
		}
		out[i] = v
	}
	return out, found
}

// Len 目录中命名空间总数
func (d Directory) Len() int {
	return len(d.Owned) + len(d.Delegated)
}

// VerificationState 客户端观察到的验证状态
type VerificationState string

const (
	StateUnverified   VerificationState = "unverified"
	StateTxtGenerated VerificationState = "txt_generated"
	StateVerified     VerificationState = "verified"
)

// State 返回命名空间当前的验证状态
func State(v NamespaceView) VerificationState {
	switch {
	case v.Verified:
		return StateVerified
	case v.DNSTxt != nil:
		return StateTxtGenerated
	default:
		return StateUnverified
	}
}
