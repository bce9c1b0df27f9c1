package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bithomp/signing-sdk-go/types"
)

// statusSubscription 单个 payload 的状态通道订阅实现
//
// 约束（与控制器的契约）：
// - 每个 payload 恰好一个订阅实例
// - 终结事件（signed / 倒计时归零）后立即自闭，不再处理后续消息
// - 底层断开不自动重连，由控制器降级为手动查询
type statusSubscription struct {
	conn   *websocket.Conn
	events chan *types.StatusEvent
	done   chan struct{}
	closed atomic.Bool
	errMu  sync.Mutex
	err    error
}

// SubscribeStatus 订阅 payload 状态通道
func (c *apiClient) SubscribeStatus(ctx context.Context, statusRef string) (StatusSubscription, error) {
	if c.closed.Load() {
		return nil, &Error{Code: ErrCodeClosed, Message: "client is closed"}
	}
	if statusRef == "" {
		return nil, NewInvalidResponseError(fmt.Errorf("status channel ref is empty"))
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, toWebsocketScheme(statusRef), nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial status channel: %w", err))
	}

	sub := &statusSubscription{
		conn:   conn,
		events: make(chan *types.StatusEvent, 8),
		done:   make(chan struct{}),
	}

	go sub.readLoop(c.logger, c.debug)

	return sub, nil
}

// toWebsocketScheme 将 http/https 引用改写为 ws/wss
func toWebsocketScheme(ref string) string {
	switch {
	case strings.HasPrefix(ref, "http://"):
		return "ws://" + ref[len("http://"):]
	case strings.HasPrefix(ref, "https://"):
		return "wss://" + ref[len("https://"):]
	case strings.HasPrefix(ref, "ws://"), strings.HasPrefix(ref, "wss://"):
		return ref
	default:
		return "wss://" + ref
	}
}

// readLoop 消息读取循环
//
// 事件按服务端下发顺序投递；终结事件投递后自闭
func (s *statusSubscription) readLoop(logger Logger, debug bool) {
	defer func() {
		s.closeOnce()
		close(s.events)
	}()

	for {
		if s.closed.Load() {
			return
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.setErr(fmt.Errorf("status channel read: %w", err))
			}
			return
		}

		var ev types.StatusEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			// 服务端的欢迎语等非 JSON 消息，跳过
			continue
		}
		if ev.Opened == nil && ev.Signed == nil && ev.ExpiresInSeconds == nil {
			continue
		}

		if debug {
			logger.Debug("status channel event", "raw", string(raw))
		}

		select {
		case s.events <- &ev:
		case <-s.done:
			return
		}

		// 终结事件：signed 或倒计时归零
		if ev.Signed != nil || (ev.ExpiresInSeconds != nil && *ev.ExpiresInSeconds <= 0) {
			return
		}
	}
}

// Events 事件流
func (s *statusSubscription) Events() <-chan *types.StatusEvent {
	return s.events
}

// Err 返回导致通道关闭的传输层错误
func (s *statusSubscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *statusSubscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// closeOnce 关闭底层连接；幂等
func (s *statusSubscription) closeOnce() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
		s.conn.Close()
	}
}

// Close 关闭订阅；重复关闭是 no-op
func (s *statusSubscription) Close() error {
	s.closeOnce()
	return nil
}
