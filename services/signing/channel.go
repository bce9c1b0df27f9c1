package signing

import (
	"github.com/bithomp/signing-sdk-go/client"
	"github.com/bithomp/signing-sdk-go/types"
)

// ChannelState 状态通道状态机
//
// Connecting → Open → {Signed | Rejected | Expired | Errored}
// 终结状态投递后通道即关闭，不再处理后续事件
type ChannelState int

const (
	// ChannelConnecting 已建立订阅，等待钱包侧动作
	ChannelConnecting ChannelState = iota
	// ChannelOpen 钱包 App 已收到/展示请求（非终结，仅用于 UI 提示）
	ChannelOpen
	// ChannelSigned 签名完成（终结）
	ChannelSigned
	// ChannelRejected 钱包侧拒绝签名（终结）
	ChannelRejected
	// ChannelExpired 倒计时归零，payload 失效（终结）
	ChannelExpired
	// ChannelErrored 底层连接在终结事件前断开（终结）
	// 通道自身不重连，由控制器降级为手动查询
	ChannelErrored
)

// Terminal 判断状态是否终结
func (s ChannelState) Terminal() bool {
	switch s {
	case ChannelSigned, ChannelRejected, ChannelExpired, ChannelErrored:
		return true
	}
	return false
}

// String 状态名
func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelSigned:
		return "signed"
	case ChannelRejected:
		return "rejected"
	case ChannelExpired:
		return "expired"
	case ChannelErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// statusChannel 把原始订阅事件折叠为状态机转移
type statusChannel struct {
	sub     client.StatusSubscription
	updates chan ChannelState
}

// watchStatus 在订阅之上启动状态机
//
// 每个 payload 恰好一个实例；updates 在终结状态后关闭
func watchStatus(sub client.StatusSubscription) *statusChannel {
	ch := &statusChannel{
		sub:     sub,
		updates: make(chan ChannelState, 4),
	}
	go ch.loop()
	return ch
}

// loop 事件折叠循环
//
// 同一条事件同时携带 signed 与归零倒计时时，到期优先（显式 tie-break）
func (c *statusChannel) loop() {
	defer close(c.updates)

	c.updates <- ChannelConnecting

	// Open 只投递一次；加上 Connecting 与唯一的终结状态，
	// 总投递数不超过 updates 的缓冲，循环永不阻塞
	opened := false
	for ev := range c.sub.Events() {
		state, terminal := translate(ev)
		if state == nil {
			continue
		}
		if *state == ChannelOpen {
			if opened {
				continue
			}
			opened = true
		}
		c.updates <- *state
		if terminal {
			c.sub.Close()
			return
		}
	}

	// 终结事件之前事件流就关闭了：传输层断开
	if c.sub.Err() != nil {
		c.updates <- ChannelErrored
	}
}

// translate 将单条原始事件映射为状态转移；到期优先于签名
func translate(ev *types.StatusEvent) (*ChannelState, bool) {
	if ev.ExpiresInSeconds != nil && *ev.ExpiresInSeconds <= 0 {
		state := ChannelExpired
		return &state, true
	}
	if ev.Signed != nil {
		state := ChannelSigned
		if !*ev.Signed {
			state = ChannelRejected
		}
		return &state, true
	}
	if ev.Opened != nil && *ev.Opened {
		state := ChannelOpen
		return &state, false
	}
	return nil, false
}

// Updates 状态转移流
func (c *statusChannel) Updates() <-chan ChannelState {
	return c.updates
}

// Close 关闭通道；幂等
func (c *statusChannel) Close() {
	c.sub.Close()
}
