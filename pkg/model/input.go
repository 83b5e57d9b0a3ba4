package model

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cohesivestack/valgo"
)

// MaxDescriptionLength 描述的最大字符数
const MaxDescriptionLength = 200

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nameDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// NamespaceInput 创建或更新命名空间时的表单输入
type NamespaceInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Meta        Meta   `json:"meta,omitempty"`
	// WithMeta 用户是否开启了元数据编辑
	WithMeta bool `json:"with_meta"`
}

// Validate 校验必填字段、名称字符集和描述长度
func (in NamespaceInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)

	return valgo.Is(
		valgo.String(name, "name").Not().Blank().
			Passing(func(s string) bool {
				return s == "" || namePattern.MatchString(s)
			}, "Name may only contain letters, digits, '_' and '-'"),
	).Is(
		valgo.String(description, "description").Not().Blank().
			Passing(func(s string) bool {
				return utf8.RuneCountInString(s) <= MaxDescriptionLength
			}, "Description must be at most 200 characters"),
	).Error()
}

// Normalize 返回去除首尾空白后的名称和描述
func (in NamespaceInput) Normalize() (name, description string) {
	return strings.TrimSpace(in.Name), strings.TrimSpace(in.Description)
}

// FilterName 去除名称中不允许的字符，用于输入阶段过滤
func FilterName(s string) string {
	return nameDisallowed.ReplaceAllString(s, "")
}

// ClampDescription 截断超过长度限制的描述
func ClampDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionLength {
		return s
	}
	return string([]rune(s)[:MaxDescriptionLength])
}

// FormFromView 根据已有命名空间预填更新表单
// 只有元数据存在实际内容时才开启元数据编辑
func FormFromView(v NamespaceView) NamespaceInput {
	in := NamespaceInput{
		Name:        v.Name,
		Description: v.Description,
		Meta:        Meta{},
	}
	if HasMeaningfulMeta(v.Meta) {
		in.Meta = v.Meta
		in.WithMeta = true
	}
	return in
}
