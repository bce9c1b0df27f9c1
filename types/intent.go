package types

import (
	"fmt"
	"strings"

	"github.com/bithomp/signing-sdk-go/utils"
)

// DeliveryHint 投递模式偏好
type DeliveryHint string

const (
	// DeliveryAuto 由控制器根据设备环境选择
	DeliveryAuto DeliveryHint = ""
	// DeliveryDesktop 桌面模式：QR 码 + WebSocket 状态通道
	DeliveryDesktop DeliveryHint = "desktop"
	// DeliveryMobile 移动模式：直接跳转 deep link
	DeliveryMobile DeliveryHint = "mobile"
)

// Memo 账本备注字段（wire 层使用大写 hex 编码）
type Memo struct {
	Type   string // 明文，编码前
	Data   string // 明文，编码前
	Format string // MIME 类型，例如 "text/plain"，可为空
}

// Intent 待签名交易意图
//
// 由表单/调用方构造，引擎视其为不可变对象：
// 唯一允许的"修改"是 WithProvenance 返回附加了标准字段的副本。
// 请求终结后即丢弃。
type Intent struct {
	// TransactionType 交易类型判别字段（"Payment"、"NFTokenMint" 等）
	TransactionType string

	// Account 发起账户（classic 地址，可为空，由钱包侧填充）
	Account string

	// Fields 其余交易字段（Amount、Destination、Flags 等）
	Fields map[string]interface{}

	// Memos 调用方自带的备注
	Memos []Memo

	// SourceTag 来源标签（可选）
	SourceTag *uint32

	// RedirectTarget 签名成功后的跳转目标（移动端 return URL 会带上）
	RedirectTarget string

	// SignOnly 只签名不自动提交；同时跳过 provenance 字段注入
	SignOnly bool

	// WalletHint 投递模式偏好
	WalletHint DeliveryHint
}

// reservedFields Intent.Fields 中不允许出现的键
// 这些字段由 Intent 的显式成员或引擎负责填充
var reservedFields = map[string]bool{
	"TransactionType": true,
	"Account":         true,
	"Memos":           true,
	"SourceTag":       true,
}

// Validate 校验意图是否可以进入传输层
// 校验失败属于 ValidationError 范畴：在任何网络调用之前拒绝，不重试
func (i *Intent) Validate() error {
	if i == nil {
		return fmt.Errorf("intent is nil")
	}
	if strings.TrimSpace(i.TransactionType) == "" {
		return fmt.Errorf("intent missing TransactionType")
	}
	for k := range i.Fields {
		if reservedFields[k] {
			return fmt.Errorf("intent field %q is reserved", k)
		}
	}
	for idx, m := range i.Memos {
		if m.Data == "" && m.Type == "" {
			return fmt.Errorf("intent memo %d is empty", idx)
		}
	}
	return nil
}

// Clone 返回深拷贝（Fields 和 Memos 均复制）
func (i *Intent) Clone() *Intent {
	cp := *i
	if i.Fields != nil {
		cp.Fields = make(map[string]interface{}, len(i.Fields))
		for k, v := range i.Fields {
			cp.Fields[k] = v
		}
	}
	if i.Memos != nil {
		cp.Memos = make([]Memo, len(i.Memos))
		copy(cp.Memos, i.Memos)
	}
	if i.SourceTag != nil {
		tag := *i.SourceTag
		cp.SourceTag = &tag
	}
	return &cp
}

// HasMemoData 判断是否已存在 Data 相同的备注（provenance 注入去重用）
func (i *Intent) HasMemoData(data string) bool {
	for _, m := range i.Memos {
		if m.Data == data {
			return true
		}
	}
	return false
}

// WithProvenance 返回附加了应用标识备注和固定来源标签的副本
//
// 规则（见控制器 pre-submit enrichment）：
// - SignOnly 透传模式不做任何注入
// - 已存在 Data 相同的备注时跳过备注注入
// - 调用方已显式设置 SourceTag 时不覆盖
func (i *Intent) WithProvenance(memoData string, sourceTag uint32) *Intent {
	if i.SignOnly {
		return i
	}
	cp := i.Clone()
	if memoData != "" && !cp.HasMemoData(memoData) {
		cp.Memos = append(cp.Memos, Memo{Data: memoData})
	}
	if cp.SourceTag == nil {
		tag := sourceTag
		cp.SourceTag = &tag
	}
	return cp
}

// TxJSON 构建提交给签名服务的交易 JSON 对象
//
// Memo 字段按账本惯例编码为大写 hex
func (i *Intent) TxJSON() map[string]interface{} {
	tx := make(map[string]interface{}, len(i.Fields)+4)
	for k, v := range i.Fields {
		tx[k] = v
	}
	tx["TransactionType"] = i.TransactionType
	if i.Account != "" {
		tx["Account"] = i.Account
	}
	if i.SourceTag != nil {
		tx["SourceTag"] = *i.SourceTag
	}
	if len(i.Memos) > 0 {
		memos := make([]map[string]interface{}, 0, len(i.Memos))
		for _, m := range i.Memos {
			memo := make(map[string]interface{}, 3)
			if m.Type != "" {
				memo["MemoType"] = utils.EncodeMemoHex(m.Type)
			}
			if m.Data != "" {
				memo["MemoData"] = utils.EncodeMemoHex(m.Data)
			}
			if m.Format != "" {
				memo["MemoFormat"] = utils.EncodeMemoHex(m.Format)
			}
			memos = append(memos, map[string]interface{}{"Memo": memo})
		}
		tx["Memos"] = memos
	}
	return tx
}
