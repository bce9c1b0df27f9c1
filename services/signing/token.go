package signing

import "sync/atomic"

// TokenStore 进程级"最近用户令牌"存储
//
// 创建 payload 时读取（回头客识别），签名成功后写入。
// 令牌是建议性数据而非安全关键数据，last-writer-wins 可接受，
// 因此用 atomic.Value 而不加锁。
type TokenStore struct {
	v atomic.Value // string
}

// Load 读取最近一次签发的用户令牌；没有时返回空串
func (s *TokenStore) Load() string {
	if tok, ok := s.v.Load().(string); ok {
		return tok
	}
	return ""
}

// Store 写入新签发的用户令牌；空串忽略
func (s *TokenStore) Store(token string) {
	if token == "" {
		return
	}
	s.v.Store(token)
}

// defaultTokenStore 未注入 TokenStore 的控制器共享的默认实例
var defaultTokenStore = &TokenStore{}
