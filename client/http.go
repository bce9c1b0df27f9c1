package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bithomp/signing-sdk-go/types"
)

// apiClient REST + WebSocket 客户端实现
type apiClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   Logger
	debug    bool
	retry    *RetryConfig
	closed   atomic.Bool
}

// newAPIClient 创建客户端实现
func newAPIClient(config *Config) (*apiClient, error) {
	endpoint, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("unsupported endpoint scheme: %q", endpoint.Scheme)
	}

	httpCli := &http.Client{
		Timeout: time.Duration(config.Timeout) * time.Second,
	}
	if config.TLS != nil && config.TLS.Insecure {
		httpCli.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug && config.Logger != nil {
			logger := config.Logger
			retryConfig.OnRetry = func(attempt int, err error) {
				logger.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &apiClient{
		endpoint: config.Endpoint,
		apiKey:   config.APIKey,
		client:   httpCli,
		logger:   logger,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// doJSON 执行一次 HTTP 调用并解码 JSON 响应
//
// 处理流程：构建请求 → 调试日志 → 发送 → 状态码检查 → 错误规范化 → 解码
func (c *apiClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) ([]byte, error) {
	if c.closed.Load() {
		return nil, &Error{Code: ErrCodeClosed, Message: "client is closed"}
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, NewInvalidResponseError(fmt.Errorf("marshal request: %w", err))
		}
		if c.debug {
			c.logger.Debug("API request", "method", method, "path", path, "body", string(encoded))
		}
		reqBody = bytes.NewReader(encoded)
	} else if c.debug {
		c.logger.Debug("API request", "method", method, "path", path)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	// 本地关联 ID，服务端排障与 ServiceError.Reference 回填两用
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("read response: %w", err))
	}

	if c.debug {
		c.logger.Debug("API response", "status", resp.StatusCode, "body", string(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewServiceError(normalizeServiceError(resp.StatusCode, respBody, requestID))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, NewInvalidResponseError(fmt.Errorf("unmarshal %s %s: %w", method, path, err))
		}
	}
	return respBody, nil
}

// normalizeServiceError 将非 2xx 响应体规范化为 ServiceError
//
// 服务端错误体格式：{"error": {"code": "...", "message": "...", "reference": "..."}}
// 解析不出时退化为以 HTTP 状态为准的通用错误，Reference 用本地请求 ID 补齐
func normalizeServiceError(status int, body []byte, requestID string) *types.ServiceError {
	var wrapper struct {
		Error *types.ServiceError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil && wrapper.Error.Message != "" {
		se := wrapper.Error
		se.Status = status
		if se.Reference == "" {
			se.Reference = requestID
		}
		return se
	}
	return &types.ServiceError{
		Message:   http.StatusText(status),
		Reference: requestID,
		Status:    status,
	}
}

// CreatePayload 创建签名 payload
//
// 非幂等调用：失败不自动重试，TransportError 立即上浮由控制器处理
func (c *apiClient) CreatePayload(ctx context.Context, req *types.PayloadRequest) (*types.PayloadCreated, error) {
	if req == nil || req.TxJSON == nil {
		return nil, NewInvalidResponseError(fmt.Errorf("payload request missing txjson"))
	}

	var created types.PayloadCreated
	err := withRetry(ctx, func() error {
		_, err := c.doJSON(ctx, http.MethodPost, "/payload", req, &created)
		return err
	}, noRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("create payload failed: %w", err)
	}
	if created.UUID == "" {
		return nil, NewInvalidResponseError(fmt.Errorf("payload response missing uuid"))
	}

	created.CreatedAt = time.Now()
	created.ExpiresAt = created.CreatedAt.Add(time.Duration(req.Options.Expire) * time.Minute)
	return &created, nil
}

// GetPayload 获取 payload 状态与签名结果
func (c *apiClient) GetPayload(ctx context.Context, payloadID string) (*types.PayloadResult, error) {
	if payloadID == "" {
		return nil, NewInvalidResponseError(fmt.Errorf("payload id is empty"))
	}

	var result types.PayloadResult
	var raw []byte
	err := withRetry(ctx, func() error {
		var err error
		raw, err = c.doJSON(ctx, http.MethodGet, "/payload/"+url.PathEscape(payloadID), nil, &result)
		return err
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("get payload failed: %w", err)
	}

	result.Raw = raw
	return &result, nil
}

// CancelPayload 作废 payload
func (c *apiClient) CancelPayload(ctx context.Context, payloadID string) error {
	if payloadID == "" {
		return NewInvalidResponseError(fmt.Errorf("payload id is empty"))
	}

	_, err := c.doJSON(ctx, http.MethodDelete, "/payload/"+url.PathEscape(payloadID), nil, nil)
	if err != nil {
		return fmt.Errorf("cancel payload failed: %w", err)
	}
	return nil
}

// GetTransaction 按哈希查询交易
func (c *apiClient) GetTransaction(ctx context.Context, hash string) (*types.TxLookup, error) {
	if hash == "" {
		return nil, NewInvalidResponseError(fmt.Errorf("transaction hash is empty"))
	}

	var lookup types.TxLookup
	err := withRetry(ctx, func() error {
		_, err := c.doJSON(ctx, http.MethodGet, "/transaction/"+url.PathEscape(hash), nil, &lookup)
		return err
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("get transaction failed: %w", err)
	}
	return &lookup, nil
}

// GetIndexStatus 查询二级索引处理位置
func (c *apiClient) GetIndexStatus(ctx context.Context) (*types.IndexStatus, error) {
	var status types.IndexStatus
	err := withRetry(ctx, func() error {
		_, err := c.doJSON(ctx, http.MethodGet, "/index/status", nil, &status)
		return err
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("get index status failed: %w", err)
	}
	return &status, nil
}

// Close 关闭客户端
func (c *apiClient) Close() error {
	c.closed.Store(true)
	c.client.CloseIdleConnections()
	return nil
}
