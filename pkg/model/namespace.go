package model

import (
	"time"
)

// 服务端返回的消息常量
const (
	// MessageNamespacesRetrieved 命名空间列表获取成功
	MessageNamespacesRetrieved = "User namespaces retrieved successfully"
	// MessageNoNamespaces 用户没有任何命名空间，属于正常的空状态
	MessageNoNamespaces = "No namespaces found"
	// MessageNamespaceCreated 命名空间创建成功
	MessageNamespaceCreated = "Namespace created successfully"
	// MessageNamespaceUpdated 命名空间更新成功
	MessageNamespaceUpdated = "namespace updated"
)

// Meta 命名空间元数据，空map等同于没有元数据
type Meta map[string]any

// Namespace 表示服务端返回的命名空间
type Namespace struct {
	NamespaceID   string    `json:"namespace_id"`   // 服务端分配的唯一标识，不可变
	Name          string    `json:"name"`           // 命名空间名称
	Description   string    `json:"description"`    // 命名空间描述
	Meta          Meta      `json:"meta,omitempty"` // 元数据
	CreatedAt     time.Time `json:"created_at"`     // 创建时间
	UpdatedAt     time.Time `json:"updated_at"`     // 更新时间
	RegistryCount int       `json:"registry_count"` // 注册表数量
	VersionCount  int       `json:"version_count"`  // 版本数量
	Version       string    `json:"version"`        // 当前版本
	TTL           int       `json:"ttl"`            // 生存时间
	Digest        string    `json:"digest"`         // 摘要
	IsVerified    bool      `json:"is_verified"`    // 服务端的域名验证状态
}

// Annotations 仅存在于客户端会话中的附加字段，不会发送到服务端
type Annotations struct {
	Verified bool    `json:"verified"`
	DNSTxt   *string `json:"dnsTxt"`
}

// NamespaceView 命名空间视图模型：服务端记录加上客户端附加字段
type NamespaceView struct {
	Namespace
	Annotations
}

// Annotate 将客户端附加字段合并到服务端记录上
func Annotate(ns Namespace, prev Annotations) NamespaceView {
	ann := prev
	if prev.DNSTxt != nil {
		txt := *prev.DNSTxt
		ann.DNSTxt = &txt
	}
	return NamespaceView{Namespace: ns, Annotations: ann}
}

// HasMeaningfulMeta 判断元数据中是否存在实际内容
// 空字符串、nil以及空map都不算内容
func HasMeaningfulMeta(meta Meta) bool {
	for _, v := range meta {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val != "" {
				return true
			}
		case map[string]any:
			if len(val) > 0 {
				return true
			}
		case Meta:
			if len(val) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}
