package client

// Config 客户端配置
type Config struct {
	// Endpoint 签名服务端点地址
	Endpoint string

	// APIKey 访问令牌（可选，置于 Authorization: Bearer）
	APIKey string

	// Timeout 单次 HTTP 请求超时时间（秒）
	Timeout int

	// Retry 重试配置（nil 时使用默认配置）
	Retry *RetryConfig

	// TLS 配置
	TLS *TLSConfig

	// 调试模式
	Debug bool

	// 日志器（可选，nil 时不输出）
	Logger Logger
}

// TLSConfig TLS 配置
type TLSConfig struct {
	Insecure bool // 跳过 TLS 验证（仅用于开发）
}

// Logger 日志接口
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:3001",
		Timeout:  30,
		Debug:    false,
	}
}
