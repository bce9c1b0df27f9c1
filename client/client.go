package client

import (
	"context"

	"github.com/bithomp/signing-sdk-go/types"
)

// Client 签名服务与账本后端的客户端接口
type Client interface {
	// CreatePayload 创建签名 payload（REST，失败不自动重试）
	CreatePayload(ctx context.Context, req *types.PayloadRequest) (*types.PayloadCreated, error)

	// GetPayload 获取 payload 当前状态与签名结果
	GetPayload(ctx context.Context, payloadID string) (*types.PayloadResult, error)

	// CancelPayload 作废 payload（取消流程中 best-effort 调用）
	CancelPayload(ctx context.Context, payloadID string) error

	// GetTransaction 按哈希查询交易（确认引擎用）
	GetTransaction(ctx context.Context, hash string) (*types.TxLookup, error)

	// GetIndexStatus 查询二级索引当前处理到的账本位置
	GetIndexStatus(ctx context.Context) (*types.IndexStatus, error)

	// SubscribeStatus 订阅单个 payload 的状态通道
	SubscribeStatus(ctx context.Context, statusRef string) (StatusSubscription, error)

	// Close 关闭连接
	Close() error
}

// StatusSubscription 单个 payload 的状态通道订阅
//
// 通道不做自动重连：底层断开时 Events 关闭、Err 返回原因，
// 由控制器降级为手动查询（避免静默无限重连掩盖已死的 payload）
type StatusSubscription interface {
	// Events 事件流；终结事件（signed / 过期）或底层断开后关闭
	Events() <-chan *types.StatusEvent

	// Err 返回导致通道关闭的传输层错误（正常终结时为 nil）
	Err() error

	// Close 关闭订阅；幂等，重复关闭是 no-op
	Close() error
}

// NewClient 创建客户端
func NewClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return newAPIClient(config)
}
