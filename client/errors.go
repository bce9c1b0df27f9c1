package client

import (
	"fmt"

	"github.com/bithomp/signing-sdk-go/types"
)

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsServiceError 检查错误是否携带服务端规范化错误
func IsServiceError(err error) (*types.ServiceError, bool) {
	return types.IsServiceError(err)
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeService         = 1003 // 服务端错误
	ErrCodeClosed          = 1004 // 客户端已关闭
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "network error",
		Err:     err,
	}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(err error) *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: "request timeout",
		Err:     err,
	}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidResponse,
		Message: "invalid response",
		Err:     err,
	}
}

// NewServiceError 包装服务端规范化错误
func NewServiceError(se *types.ServiceError) *Error {
	return &Error{
		Code:    ErrCodeService,
		Message: "service error",
		Err:     se,
	}
}
