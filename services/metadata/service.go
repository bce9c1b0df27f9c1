package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bithomp/signing-sdk-go/client"
	"github.com/bithomp/signing-sdk-go/services/confirmation"
)

// Service 元数据加载服务接口
//
// "按 URI 轮询直到就绪"的流程（NFT mint 后的元数据加载等）
// 与确认引擎共用同一个有界轮询器，不各自重复实现
type Service interface {
	// Fetch 拉取 URI 指向的 JSON 元数据；未就绪时按固定间隔重试
	Fetch(ctx context.Context, uri string) (json.RawMessage, error)
}

// ErrNotReady 元数据在重试上限内始终未就绪
var ErrNotReady = errors.New("metadata not ready")

// Config 元数据加载参数
type Config struct {
	// Interval 重试间隔
	Interval time.Duration
	// MaxAttempts 最大尝试次数
	MaxAttempts int
	// IPFSGateway ipfs:// URI 的网关前缀
	IPFSGateway string
	// HTTPClient 可注入的 HTTP 客户端（nil 时使用默认）
	HTTPClient *http.Client
	// Logger 日志器（可选）
	Logger client.Logger
}

// DefaultConfig 返回默认参数：24 次 × 5 秒 ≈ 2 分钟
func DefaultConfig() *Config {
	return &Config{
		Interval:    5 * time.Second,
		MaxAttempts: 24,
		IPFSGateway: "https://ipfs.io/ipfs/",
	}
}

// metadataService 元数据加载实现
type metadataService struct {
	cfg    Config
	http   *http.Client
	logger client.Logger
}

// NewService 创建元数据加载服务
func NewService(cfg *Config) Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	httpCli := cfg.HTTPClient
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = client.NopLogger()
	}
	return &metadataService{
		cfg:    *cfg,
		http:   httpCli,
		logger: logger,
	}
}

// resolveURI 将 ipfs:// URI 改写为网关地址
func (s *metadataService) resolveURI(uri string) string {
	if strings.HasPrefix(uri, "ipfs://") {
		return s.cfg.IPFSGateway + strings.TrimPrefix(uri, "ipfs://")
	}
	return uri
}

// Fetch 拉取 JSON 元数据
func (s *metadataService) Fetch(ctx context.Context, uri string) (json.RawMessage, error) {
	if uri == "" {
		return nil, fmt.Errorf("metadata uri is empty")
	}
	target := s.resolveURI(uri)

	var payload json.RawMessage
	stats, err := confirmation.Run(ctx, func(ctx context.Context, n int) (bool, uint64, error) {
		raw, ferr := s.fetchOnce(ctx, target)
		if ferr != nil {
			s.logger.Debug("metadata fetch attempt failed", "uri", target, "attempt", n, "error", ferr)
			return false, 0, ferr
		}
		payload = raw
		return true, 0, nil
	}, confirmation.Options{
		Interval:    s.cfg.Interval,
		MaxAttempts: s.cfg.MaxAttempts,
	})
	if err != nil {
		if errors.Is(err, confirmation.ErrExhausted) {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrNotReady, stats.Attempts, stats.LastErr)
		}
		return nil, err
	}
	return payload, nil
}

// fetchOnce 单次 GET；非 200 或非法 JSON 都视为"未就绪"
func (s *metadataService) fetchOnce(ctx context.Context, uri string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid json body")
	}
	return json.RawMessage(body), nil
}
