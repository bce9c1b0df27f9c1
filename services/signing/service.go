package signing

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bithomp/signing-sdk-go/client"
	"github.com/bithomp/signing-sdk-go/services/confirmation"
	"github.com/bithomp/signing-sdk-go/types"
)

// State 签名请求状态机
type State int

const (
	// StateIdle 无未决请求
	StateIdle State = iota
	// StateInterstitialConfirmation 等待用户风险确认（危险交易类型）
	StateInterstitialConfirmation
	// StateChoosingWallet 已发起，payload 尚未创建
	StateChoosingWallet
	// StateAwaitingSignature payload 已投递，等待钱包侧动作
	StateAwaitingSignature
	// StateResolving 已收到签名事件，获取签名结果中
	StateResolving
	// StateTerminal 已产生终结结果
	StateTerminal
)

// Phase 回调事件阶段
type Phase int

const (
	// PhaseRiskAcknowledgeRequired 需要用户先调用 ConfirmRisk
	PhaseRiskAcknowledgeRequired Phase = iota
	// PhasePayloadReady payload 已创建：桌面模式渲染 QR，移动模式跳转 deep link
	PhasePayloadReady
	// PhaseOpened 钱包 App 已收到/展示请求
	PhaseOpened
	// PhaseChannelLost 状态通道断开，提示用户手动 CheckStatus
	PhaseChannelLost
	// PhaseSignedConfirming 已签名，确认轮询进行中
	PhaseSignedConfirming
	// PhaseTerminal 终结结果
	PhaseTerminal
)

// Event 投递给调用方回调的事件
type Event struct {
	Phase Phase

	// Payload 仅 PhasePayloadReady 时有效
	Payload *types.PayloadCreated

	// Mode 本次请求选定的投递模式（PhasePayloadReady 起有效）
	Mode types.DeliveryHint

	// Outcome 仅 PhaseTerminal 时有效
	Outcome *types.Outcome

	// Confirmation 确认流程的结果（需确认的流程随 PhaseTerminal 附带）
	Confirmation *confirmation.Result
}

// Callback 事件回调；每次成功发起的请求恰好收到一个 PhaseTerminal
type Callback func(*Event)

// AccountBinder 外部协作者：把确认签名的账户转换为应用侧"已登录账户"
type AccountBinder interface {
	BindAccount(ctx context.Context, account, userToken string) error
}

// Service 签名请求控制器接口
//
// 每个控制器同一时刻最多一个活动请求；
// 多个控制器实例可以共存，互不共享可变状态（用户令牌除外，见 TokenStore）
type Service interface {
	// Start 发起签名请求
	//
	// 意图校验失败时同步返回错误且不触发回调；
	// 已有未决请求时新请求替换旧请求：旧 payload 被 best-effort 作废，
	// 旧请求的结果被丢弃（不会产生第二个终结回调）
	Start(ctx context.Context, intent *types.Intent, cb Callback) error

	// ConfirmRisk 用户确认风险提示；仅 StateInterstitialConfirmation 时有效
	ConfirmRisk()

	// Cancel 显式取消当前请求
	//
	// 同步产生 Terminal(Cancelled)，关闭状态通道，中止确认轮询，
	// 并 best-effort 通知服务端作废 payload（通知失败不改变本地结果）
	Cancel()

	// CheckStatus 手动查询一次 payload 状态并在已终结时收尾
	// 用于通道断开后的降级路径和移动端签名返回后的收尾
	CheckStatus(ctx context.Context) error

	// State 当前状态（诊断用）
	State() State
}

// Config 控制器配置
type Config struct {
	// ExpireMinutes payload 有效期（分钟），默认 3
	ExpireMinutes int

	// ProvenanceMemo 注入交易的固定应用标识备注（明文）
	ProvenanceMemo string

	// SourceTag 注入交易的固定来源标签
	SourceTag uint32

	// ReturnURL 移动模式签名完成后的返回地址前缀
	ReturnURL string

	// DefaultDelivery 意图未给出偏好时的投递模式，默认桌面
	DefaultDelivery types.DeliveryHint

	// Confirmation 确认引擎参数（nil 时用默认）
	Confirmation *confirmation.Config

	// Binder 账户绑定钩子（可选；绑定失败只记日志）
	Binder AccountBinder

	// Tokens 用户令牌存储（nil 时用进程级默认实例）
	Tokens *TokenStore

	// Logger 日志器（可选）
	Logger client.Logger
}

// 默认的 provenance 注入值
const (
	defaultProvenanceMemo = "signing-sdk-go"
	defaultSourceTag      = 10011001
)

// riskAckRequired 需要插入风险确认页的交易类型：
// 破坏性/不可逆操作，或设置敏感账户标志的操作
var riskAckRequired = map[string]bool{
	"AccountDelete": true,
	"SetRegularKey": true,
	"SignerListSet": true,
}

// asfDisableMaster AccountSet 的禁用主密钥标志
const asfDisableMaster = 4

// needsRiskAck 判断意图是否需要风险确认
func needsRiskAck(intent *types.Intent) bool {
	if riskAckRequired[intent.TransactionType] {
		return true
	}
	if intent.TransactionType == "AccountSet" {
		if flag, ok := numericField(intent.Fields, "SetFlag"); ok && flag == asfDisableMaster {
			return true
		}
	}
	return false
}

// numericField 读取 JSON 到 map 后数字可能是多种 Go 类型
func numericField(fields map[string]interface{}, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// request 一次签名请求的私有状态
//
// 代号（gen）用于忽略被替换请求的迟到事件：
// 任何事件投递前都比对代号，不匹配即丢弃
type request struct {
	gen     uint64
	intent  *types.Intent
	cb      Callback
	mode    types.DeliveryHint
	cancel  context.CancelFunc
	riskCh  chan struct{}
	payload *types.PayloadCreated
	channel *statusChannel
	done    bool // 已产生（或已丢弃）终结结果；controller.mu 保护
}

// controller 签名请求控制器实现
type controller struct {
	client  client.Client
	cfg     Config
	confirm confirmation.Service
	tokens  *TokenStore
	logger  client.Logger

	mu    sync.Mutex
	state State
	gen   uint64
	cur   *request
}

// NewService 创建控制器
func NewService(c client.Client, cfg *Config) Service {
	if cfg == nil {
		cfg = &Config{}
	}
	conf := *cfg
	if conf.ExpireMinutes <= 0 {
		conf.ExpireMinutes = 3
	}
	if conf.ProvenanceMemo == "" {
		conf.ProvenanceMemo = defaultProvenanceMemo
	}
	if conf.SourceTag == 0 {
		conf.SourceTag = defaultSourceTag
	}
	if conf.DefaultDelivery == types.DeliveryAuto {
		conf.DefaultDelivery = types.DeliveryDesktop
	}
	if conf.Tokens == nil {
		conf.Tokens = defaultTokenStore
	}
	if conf.Logger == nil {
		conf.Logger = client.NopLogger()
	}

	confirmCfg := conf.Confirmation
	if confirmCfg == nil {
		confirmCfg = confirmation.DefaultConfig()
		confirmCfg.Logger = conf.Logger
	}

	return &controller{
		client:  c,
		cfg:     conf,
		confirm: confirmation.NewService(c, confirmCfg),
		tokens:  conf.Tokens,
		logger:  conf.Logger,
		state:   StateIdle,
	}
}

// State 当前状态
func (c *controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start 发起签名请求
func (c *controller) Start(ctx context.Context, intent *types.Intent, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("callback is nil")
	}
	if err := intent.Validate(); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.replaceLocked()
	c.gen++
	req := &request{
		gen:    c.gen,
		intent: intent.Clone(),
		cb:     cb,
		mode:   c.chooseMode(intent),
		cancel: cancel,
		riskCh: make(chan struct{}),
	}
	c.cur = req
	if needsRiskAck(intent) {
		c.state = StateInterstitialConfirmation
	} else {
		c.state = StateChoosingWallet
		close(req.riskCh)
	}
	needAck := c.state == StateInterstitialConfirmation
	c.mu.Unlock()

	go c.run(runCtx, req, needAck)
	return nil
}

// replaceLocked 丢弃当前未决请求（调用方持有 c.mu）
//
// 旧请求被标记为已终结（静默丢弃，不触发回调）、其上下文被取消，
// 已创建的 payload 异步 best-effort 作废
func (c *controller) replaceLocked() {
	old := c.cur
	if old == nil || old.done {
		return
	}
	old.done = true
	old.cancel()
	if old.channel != nil {
		old.channel.Close()
	}
	if old.payload != nil {
		c.cancelPayloadAsync(old.payload.UUID)
	}
	c.cur = nil
}

// cancelPayloadAsync best-effort 通知服务端作废 payload
// 失败只记日志，不影响本地结果
func (c *controller) cancelPayloadAsync(payloadID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.client.CancelPayload(ctx, payloadID); err != nil {
			c.logger.Warn("cancel payload failed", "payload", payloadID, "error", err)
		}
	}()
}

// ConfirmRisk 用户确认风险提示
func (c *controller) ConfirmRisk() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInterstitialConfirmation || c.cur == nil || c.cur.done {
		return
	}
	c.state = StateChoosingWallet
	close(c.cur.riskCh)
}

// Cancel 显式取消当前请求
func (c *controller) Cancel() {
	c.mu.Lock()
	req := c.cur
	if req == nil || req.done {
		c.mu.Unlock()
		return
	}
	req.done = true
	c.state = StateTerminal
	cb := req.cb
	channel := req.channel
	payload := req.payload
	c.mu.Unlock()

	// 本地终结对调用方同步生效
	cb(&Event{Phase: PhaseTerminal, Mode: req.mode, Outcome: &types.Outcome{Kind: types.OutcomeCancelled}})

	req.cancel()
	if channel != nil {
		channel.Close()
	}
	if payload != nil {
		c.cancelPayloadAsync(payload.UUID)
	}
}

// setState 请求仍有效时更新状态
func (c *controller) setState(req *request, s State) {
	c.mu.Lock()
	if req.gen == c.gen && !req.done {
		c.state = s
	}
	c.mu.Unlock()
}

// emit 投递事件；被替换/已终结的请求的事件被丢弃
// 返回 false 表示事件被丢弃
func (c *controller) emit(req *request, ev *Event) bool {
	c.mu.Lock()
	if req.gen != c.gen || req.done {
		c.mu.Unlock()
		return false
	}
	if ev.Phase == PhaseTerminal {
		req.done = true
		c.state = StateTerminal
	}
	c.mu.Unlock()

	ev.Mode = req.mode
	req.cb(ev)
	return true
}

// terminate 产生终结结果
func (c *controller) terminate(req *request, outcome *types.Outcome, conf *confirmation.Result) {
	if c.emit(req, &Event{Phase: PhaseTerminal, Outcome: outcome, Confirmation: conf}) {
		c.logger.Info("sign request terminal", "outcome", outcome.Kind.String(), "txid", outcome.TxID)
	}
}

// run 单个请求的主流程
func (c *controller) run(ctx context.Context, req *request, needAck bool) {
	// 风险确认门：确认之前不创建 payload
	if needAck {
		if !c.emit(req, &Event{Phase: PhaseRiskAcknowledgeRequired}) {
			return
		}
		select {
		case <-req.riskCh:
		case <-ctx.Done():
			return
		}
	}

	payload, err := c.createPayload(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.terminate(req, &types.Outcome{Kind: types.OutcomeTransportError, Reason: err.Error()}, nil)
		return
	}

	c.mu.Lock()
	if req.gen != c.gen || req.done {
		c.mu.Unlock()
		// 请求在创建期间被替换/取消：作废刚创建的 payload
		c.cancelPayloadAsync(payload.UUID)
		return
	}
	req.payload = payload
	c.mu.Unlock()

	if !c.emit(req, &Event{Phase: PhasePayloadReady, Payload: payload}) {
		return
	}
	c.setState(req, StateAwaitingSignature)

	if req.mode == types.DeliveryMobile {
		// 移动模式：设备跳转 deep link 即投递本身，不开状态通道；
		// 由本地过期计时器兜底，签名返回后靠 CheckStatus 收尾
		c.awaitWithoutChannel(ctx, req)
		return
	}

	sub, err := c.client.SubscribeStatus(ctx, payload.Refs.WebsocketStatus)
	if err != nil {
		c.logger.Warn("status channel subscribe failed", "payload", payload.UUID, "error", err)
		c.emit(req, &Event{Phase: PhaseChannelLost})
		c.awaitWithoutChannel(ctx, req)
		return
	}

	channel := watchStatus(sub)
	c.mu.Lock()
	if req.gen != c.gen || req.done {
		c.mu.Unlock()
		channel.Close()
		return
	}
	req.channel = channel
	c.mu.Unlock()

	c.awaitChannel(ctx, req, channel)
}

// awaitChannel 桌面模式等待循环
func (c *controller) awaitChannel(ctx context.Context, req *request, channel *statusChannel) {
	expiry := time.NewTimer(time.Until(req.payload.ExpiresAt))
	defer expiry.Stop()

	updates := channel.Updates()
	for {
		select {
		case <-ctx.Done():
			channel.Close()
			return

		case <-expiry.C:
			channel.Close()
			c.terminate(req, &types.Outcome{Kind: types.OutcomeExpired}, nil)
			return

		case state, ok := <-updates:
			if !ok {
				// 通道在终结事件前关闭且无错误：等待过期或手动查询
				updates = nil
				continue
			}
			switch state {
			case ChannelOpen:
				c.emit(req, &Event{Phase: PhaseOpened})
			case ChannelSigned:
				// 本地时钟已过期时到期优先，与通道内的 tie-break 一致：
				// select 在计时器与缓冲事件同时就绪时不保证取哪个分支
				if !time.Now().Before(req.payload.ExpiresAt) {
					channel.Close()
					c.terminate(req, &types.Outcome{Kind: types.OutcomeExpired}, nil)
					return
				}
				c.resolve(ctx, req)
				return
			case ChannelRejected:
				c.terminate(req, &types.Outcome{Kind: types.OutcomeCancelled}, nil)
				return
			case ChannelExpired:
				c.terminate(req, &types.Outcome{Kind: types.OutcomeExpired}, nil)
				return
			case ChannelErrored:
				// 不自动重连：降级为手动查询，过期计时器兜底
				c.emit(req, &Event{Phase: PhaseChannelLost})
			}
		}
	}
}

// awaitWithoutChannel 无状态通道时的等待：本地过期计时器兜底
func (c *controller) awaitWithoutChannel(ctx context.Context, req *request) {
	expiry := time.NewTimer(time.Until(req.payload.ExpiresAt))
	defer expiry.Stop()

	select {
	case <-ctx.Done():
	case <-expiry.C:
		c.terminate(req, &types.Outcome{Kind: types.OutcomeExpired}, nil)
	}
}

// chooseMode 一次性选定投递模式（不在各调用点重复判断设备类型）
func (c *controller) chooseMode(intent *types.Intent) types.DeliveryHint {
	if intent.WalletHint != types.DeliveryAuto {
		return intent.WalletHint
	}
	return c.cfg.DefaultDelivery
}

// createPayload 注入 provenance 字段并调用传输层
func (c *controller) createPayload(ctx context.Context, req *request) (*types.PayloadCreated, error) {
	enriched := req.intent.WithProvenance(c.cfg.ProvenanceMemo, c.cfg.SourceTag)

	payloadReq := &types.PayloadRequest{
		TxJSON: enriched.TxJSON(),
		Options: types.PayloadOptions{
			Expire: c.cfg.ExpireMinutes,
			Submit: !enriched.SignOnly,
		},
		UserToken: c.tokens.Load(),
	}

	if req.mode == types.DeliveryMobile && c.cfg.ReturnURL != "" {
		payloadReq.Options.ReturnURL = &types.ReturnURL{
			App: c.buildReturnURL(enriched),
			Web: c.buildReturnURL(enriched),
		}
	}

	return c.client.CreatePayload(ctx, payloadReq)
}

// buildReturnURL 构建移动端返回地址
//
// 带上签名后的跳转目标；需要确认流程的类型加 receipt 标记，
// 返回页据此做签名后的对象 ID 解析
func (c *controller) buildReturnURL(intent *types.Intent) string {
	q := url.Values{}
	if intent.RedirectTarget != "" {
		q.Set("redirect", intent.RedirectTarget)
	}
	if c.confirm.NeedsConfirmation(intent.TransactionType) {
		q.Set("receipt", "true")
	}
	if len(q) == 0 {
		return c.cfg.ReturnURL
	}
	return c.cfg.ReturnURL + "?" + q.Encode()
}

// resolve 获取签名结果并收尾
//
// 这是整个流程中唯一读取签名值的位置
func (c *controller) resolve(ctx context.Context, req *request) {
	c.setState(req, StateResolving)

	result, err := c.client.GetPayload(ctx, req.payload.UUID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.terminate(req, &types.Outcome{Kind: types.OutcomeTransportError, Reason: err.Error()}, nil)
		return
	}

	c.finishSigned(ctx, req, result)
}

// finishSigned 由签名结果构建 Signed 终结结果（含确认流程）
func (c *controller) finishSigned(ctx context.Context, req *request, result *types.PayloadResult) {
	outcome := &types.Outcome{
		Kind:      types.OutcomeSigned,
		Account:   result.Response.Account,
		TxID:      result.Response.TxID,
		Hex:       result.Response.Hex,
		UserToken: result.Application.IssuedUserToken,
		Raw:       result.Raw,
	}

	// 令牌供下一次 payload 创建时做回头客识别
	c.tokens.Store(result.Application.IssuedUserToken)

	if c.cfg.Binder != nil {
		if err := c.cfg.Binder.BindAccount(ctx, outcome.Account, outcome.UserToken); err != nil {
			c.logger.Warn("account binding failed", "account", outcome.Account, "error", err)
		}
	}

	if !c.confirm.NeedsConfirmation(req.intent.TransactionType) {
		c.terminate(req, outcome, nil)
		return
	}

	if !c.emit(req, &Event{Phase: PhaseSignedConfirming}) {
		return
	}

	conf, err := c.confirm.Confirm(ctx, outcome.TxID)
	if err != nil {
		if ctx.Err() != nil {
			// 取消/替换已经各自收尾，这里的结果直接丢弃
			return
		}
		// 确认判定失败不致命：签名本身已成功
		c.logger.Warn("confirmation failed", "txid", outcome.TxID, "error", err)
		outcome.ConfirmationDelayed = true
		c.terminate(req, outcome, nil)
		return
	}

	outcome.ConfirmationDelayed = conf.Delayed
	c.terminate(req, outcome, conf)
}

// CheckStatus 手动查询一次 payload 状态
//
// 通道断开的降级路径与移动端签名返回后的收尾共用：
// payload 已终结时产生对应的终结结果，仍未决时返回 nil 不做任何事
func (c *controller) CheckStatus(ctx context.Context) error {
	c.mu.Lock()
	req := c.cur
	if req == nil || req.done || req.payload == nil {
		c.mu.Unlock()
		return fmt.Errorf("no active sign request")
	}
	payloadID := req.payload.UUID
	channel := req.channel
	c.mu.Unlock()

	result, err := c.client.GetPayload(ctx, payloadID)
	if err != nil {
		return fmt.Errorf("check status failed: %w", err)
	}

	switch {
	case result.Meta.Signed:
		if channel != nil {
			channel.Close()
		}
		c.finishSigned(ctx, req, result)
	case result.Meta.Cancelled:
		c.terminate(req, &types.Outcome{Kind: types.OutcomeCancelled}, nil)
	case result.Meta.Expired:
		c.terminate(req, &types.Outcome{Kind: types.OutcomeExpired}, nil)
	}
	return nil
}
