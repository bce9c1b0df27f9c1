package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// PayloadRequest 创建签名 payload 的请求体
type PayloadRequest struct {
	// TxJSON 待签名交易对象（由 Intent.TxJSON 生成）
	TxJSON map[string]interface{} `json:"txjson"`

	// Options payload 选项
	Options PayloadOptions `json:"options"`

	// UserToken 上次签名成功后服务端签发的用户令牌（回头客识别，可选）
	UserToken string `json:"user_token,omitempty"`
}

// PayloadOptions payload 选项
type PayloadOptions struct {
	// Expire 有效期（分钟）
	Expire int `json:"expire"`

	// Submit 签名后是否由服务端自动提交
	Submit bool `json:"submit"`

	// ReturnURL 移动端签名完成后的返回地址（可选）
	ReturnURL *ReturnURL `json:"return_url,omitempty"`
}

// ReturnURL 移动端返回地址
type ReturnURL struct {
	// App 钱包 App 内打开的地址
	App string `json:"app,omitempty"`
	// Web 浏览器返回地址
	Web string `json:"web,omitempty"`
}

// PayloadRefs payload 的展示/订阅引用
type PayloadRefs struct {
	// QRPNG QR 码图片地址（桌面模式下由调用方渲染）
	QRPNG string `json:"qr_png"`
	// WebsocketStatus 状态通道地址
	WebsocketStatus string `json:"websocket_status"`
}

// PayloadNext deep link 集合
type PayloadNext struct {
	// Always 移动端始终可用的跳转地址
	Always string `json:"always"`
}

// PayloadCreated 创建 payload 的响应
//
// 对应一张未决的签名票据：同一控制器同一时刻最多持有一张，
// 签名 / 过期 / 显式取消 任一事件后即作废。
type PayloadCreated struct {
	// UUID 不透明关联令牌
	UUID string `json:"uuid"`

	// Next deep link
	Next PayloadNext `json:"next"`

	// Refs QR 与状态通道引用
	Refs PayloadRefs `json:"refs"`

	// Pushed 服务端是否已向已知设备推送
	Pushed bool `json:"pushed"`

	// CreatedAt / ExpiresAt 本地记录的生命周期边界
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// PayloadMeta 查询 payload 时的状态元信息
type PayloadMeta struct {
	Signed    bool `json:"signed"`
	Cancelled bool `json:"cancelled"`
	Expired   bool `json:"expired"`
	Resolved  bool `json:"resolved"`
}

// PayloadApplication 签名服务应用信息
type PayloadApplication struct {
	// IssuedUserToken 本次签名后签发的用户令牌
	IssuedUserToken string `json:"issued_user_token"`
}

// PayloadResponse 签名结果
type PayloadResponse struct {
	// Account 签名账户
	Account string `json:"account"`
	// TxID 交易哈希
	TxID string `json:"txid"`
	// Hex 签名后的交易 blob
	Hex string `json:"hex"`
}

// PayloadResult GET /payload/{id} 的响应
type PayloadResult struct {
	Meta        PayloadMeta        `json:"meta"`
	Application PayloadApplication `json:"application"`
	Response    PayloadResponse    `json:"response"`

	// Raw 原始响应体，随 Signed 结果透传给调用方
	Raw json.RawMessage `json:"-"`
}

// StatusEvent 状态通道推送的单条事件
//
// 所有字段均为可选：服务端按需下发，未出现的字段为 nil
type StatusEvent struct {
	// Opened 钱包 App 已收到/展示请求
	Opened *bool `json:"opened,omitempty"`

	// Signed 签名完成（true）或被钱包侧拒绝（false）
	Signed *bool `json:"signed,omitempty"`

	// ExpiresInSeconds 过期倒计时；<= 0 表示 payload 已失效
	ExpiresInSeconds *int `json:"expires_in_seconds,omitempty"`
}

// TxLookup GET /transaction/{hash} 的响应
//
// 账本后端的两种历史格式都返回过账本号字段：
// ledger_index（新）与 inLedger（旧），反序列化时做回退
type TxLookup struct {
	Validated   bool
	LedgerIndex uint32
}

// UnmarshalJSON 兼容 ledger_index / inLedger 两种字段名
func (t *TxLookup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Validated   bool    `json:"validated"`
		LedgerIndex *uint32 `json:"ledger_index"`
		InLedger    *uint32 `json:"inLedger"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal tx lookup: %w", err)
	}
	t.Validated = raw.Validated
	switch {
	case raw.LedgerIndex != nil:
		t.LedgerIndex = *raw.LedgerIndex
	case raw.InLedger != nil:
		t.LedgerIndex = *raw.InLedger
	default:
		t.LedgerIndex = 0
	}
	return nil
}

// IndexStatus GET /index/status 的响应：二级索引当前处理到的账本位置
type IndexStatus struct {
	LedgerIndex uint32 `json:"ledgerIndex"`
}
