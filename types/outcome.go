package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OutcomeKind 终结结果类别
type OutcomeKind int

const (
	// OutcomeSigned 签名成功
	OutcomeSigned OutcomeKind = iota
	// OutcomeCancelled 用户显式取消
	OutcomeCancelled
	// OutcomeExpired payload 过期，需重新发起
	OutcomeExpired
	// OutcomeTransportError 传输层失败（创建/获取 payload 失败等）
	OutcomeTransportError
)

// String 返回类别名（日志与提示分类用）
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSigned:
		return "signed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExpired:
		return "expired"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome 签名请求的终结结果
//
// 每次成功发起的请求恰好产生一个 Outcome，产生后不可被后续事件改写。
type Outcome struct {
	Kind OutcomeKind

	// 以下字段仅 Kind == OutcomeSigned 时有效
	Account   string          // 签名账户
	TxID      string          // 交易哈希
	Hex       string          // 签名后的交易 blob
	UserToken string          // 服务端签发的用户令牌
	Raw       json.RawMessage // 原始签名结果响应体

	// Reason 仅 Kind == OutcomeTransportError 时有效
	Reason string

	// ConfirmationDelayed 确认轮询触顶后以"结果可能延迟"收尾
	// 签名本身已成功，仅确认判定不确定（非致命）
	ConfirmationDelayed bool
}

// Terminal Outcome 永远是终结的；此方法只为可读性存在
func (o *Outcome) Terminal() bool { return true }

// ServiceError 签名服务/账本后端返回的规范化错误
//
// 远端错误一律规范化为该类型后再进入 Outcome，
// 不允许未捕获地穿透到调用方
type ServiceError struct {
	// Code 服务端错误码（可为空）
	Code string `json:"code,omitempty"`

	// Message 服务端错误说明
	Message string `json:"message"`

	// Reference 关联引用：服务端给出的或客户端本地生成的排障 ID
	Reference string `json:"reference,omitempty"`

	// Status HTTP 状态码
	Status int `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsServiceError 检查错误链中是否包含 ServiceError
func IsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
