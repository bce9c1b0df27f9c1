package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/bithomp/signing-sdk-go/types"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// MaxRetries 最大重试次数
	MaxRetries int
	// InitialDelay 初始延迟（毫秒）
	InitialDelay int
	// MaxDelay 最大延迟（毫秒）
	MaxDelay int
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// Retryable 判断错误是否可重试的函数
	Retryable func(error) bool
	// OnRetry 重试前的回调函数
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500,
		MaxDelay:          5000,
		BackoffMultiplier: 2.0,
		Retryable:         isRetryableError,
	}
}

// noRetryConfig 禁用重试
// payload 创建等非幂等调用使用：传输失败立即上浮，不自动重试
func noRetryConfig() *RetryConfig {
	return &RetryConfig{MaxRetries: 0}
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 网络错误（连接失败、超时等）
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	// DNS 错误
	if _, ok := err.(*net.DNSError); ok {
		return true
	}

	// 服务端错误按 HTTP 状态码判断
	var se *types.ServiceError
	if errors.As(err, &se) {
		return isRetryableHTTPStatus(se.Status)
	}

	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}

// isRetryableHTTPStatus 判断 HTTP 状态码是否可重试
func isRetryableHTTPStatus(statusCode int) bool {
	// 5xx（服务器错误）
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	// 429（请求过多）
	return statusCode == 429
}

// backoffDelay 计算第 attempt 次重试前的退避延迟
func backoffDelay(attempt int, config *RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if max := float64(config.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay) * time.Millisecond
}

// withRetry 带重试的函数执行器
func withRetry(ctx context.Context, fn func() error, config *RetryConfig) error {
	if config == nil {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= config.MaxRetries {
			break
		}

		retryable := config.Retryable
		if retryable == nil {
			retryable = isRetryableError
		}
		if !retryable(err) {
			return err
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt, config)):
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("retry failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
