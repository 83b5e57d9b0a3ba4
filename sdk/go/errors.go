package sdk

import (
	"errors"
	"fmt"
)

// Error 定义SDK操作可能返回的错误类型
type Error struct {
	Code    int
	Message string
	// Status HTTP状态码，仅在收到响应时有值
	Status int
	Err    error
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// 定义错误代码
const (
	// ErrValidation 客户端字段校验失败，不会发起网络请求
	ErrValidation = iota + 1
	// ErrNetwork 请求无法完成
	ErrNetwork
	// ErrServer 服务端返回业务失败或非成功状态
	ErrServer
	// ErrUnauthorized 服务端返回401
	ErrUnauthorized
	// ErrUpdateWithoutSelection 更新时未选择命名空间
	ErrUpdateWithoutSelection
)

// NewValidationError 创建校验错误
func NewValidationError(message string) *Error {
	return &Error{
		Code:    ErrValidation,
		Message: message,
	}
}

// NewNetworkError 创建网络错误
func NewNetworkError(message string, err error) *Error {
	return &Error{
		Code:    ErrNetwork,
		Message: message,
		Err:     err,
	}
}

// NewServerError 创建服务端错误
func NewServerError(message string, status int) *Error {
	return &Error{
		Code:    ErrServer,
		Message: message,
		Status:  status,
	}
}

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(message string) *Error {
	return &Error{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  401,
	}
}

// NewUpdateWithoutSelectionError 创建未选择命名空间错误
func NewUpdateWithoutSelectionError() *Error {
	return &Error{
		Code:    ErrUpdateWithoutSelection,
		Message: "No namespace selected for update.",
	}
}

// CodeOf 返回错误代码，非SDK错误返回0
func CodeOf(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool { return CodeOf(err) == ErrValidation }

// IsNetwork 判断是否为网络错误
func IsNetwork(err error) bool { return CodeOf(err) == ErrNetwork }

// IsServer 判断是否为服务端错误
func IsServer(err error) bool { return CodeOf(err) == ErrServer }

// IsUnauthorized 判断是否为未授权错误
func IsUnauthorized(err error) bool { return CodeOf(err) == ErrUnauthorized }

// IsUpdateWithoutSelection 判断是否为未选择命名空间错误
func IsUpdateWithoutSelection(err error) bool { return CodeOf(err) == ErrUpdateWithoutSelection }

// firstNonEmpty 按顺序返回第一个非空字符串
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func httpStatusMessage(status int, text string) string {
	return fmt.Sprintf("HTTP %d: %s", status, text)
}
