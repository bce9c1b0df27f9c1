package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bithomp/signing-sdk-go/client"
)

// Service 确认引擎接口
//
// 签名成功之后判定交易是否可以当作最终结果，容忍两种独立的滞后：
// 账本校验延迟、二级索引（crawler）落后于账本
type Service interface {
	// NeedsConfirmation 判断交易类型是否需要二级索引确认
	NeedsConfirmation(txType string) bool

	// Confirm 执行确认轮询；每次签名恰好调用一次
	Confirm(ctx context.Context, txHash string) (*Result, error)
}

// Config 确认引擎参数
type Config struct {
	// TxInterval 交易校验轮询间隔
	TxInterval time.Duration
	// TxMaxAttempts 交易校验最大轮询次数
	TxMaxAttempts int
	// TxMaxElapsed 交易校验墙钟上限
	TxMaxElapsed time.Duration

	// IndexInterval 索引追赶轮询间隔
	IndexInterval time.Duration
	// IndexStallLimit 索引位置连续未前进的容忍次数（防活锁）
	IndexStallLimit int

	// LagThreshold 索引落后超过该值时直接定稿
	// （落后太多意味着后端已经在直接服务新鲜数据）
	LagThreshold uint32

	// Logger 日志器（可选）
	Logger client.Logger
}

// DefaultConfig 返回默认参数
func DefaultConfig() *Config {
	return &Config{
		TxInterval:      3 * time.Second,
		TxMaxAttempts:   5,
		TxMaxElapsed:    30 * time.Second,
		IndexInterval:   time.Second,
		IndexStallLimit: 12,
		LagThreshold:    1000,
	}
}

// Result 一次确认运行的结果；每次运行恰好产生一个
type Result struct {
	// Validated 交易已通过账本校验
	Validated bool

	// LedgerIndex 交易入账的账本号（未校验时为 0）
	LedgerIndex uint32

	// Indexed 二级索引已追上交易所在账本
	Indexed bool

	// Delayed 轮询触顶/停滞后乐观定稿，结果可能延迟（非致命）
	Delayed bool

	// TxAttempts / IndexAttempts 两个阶段各自的探测次数
	TxAttempts    int
	IndexAttempts int
}

// attempt 单次探测的瞬态记录，运行结束即丢弃（仅调试日志用）
type attempt struct {
	number  int
	elapsed time.Duration
	ledger  uint32
	indexed bool
}

// engine 确认引擎实现
type engine struct {
	client client.Client
	cfg    Config
	logger client.Logger
}

// NewService 创建确认引擎
func NewService(c client.Client, cfg *Config) Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = client.NopLogger()
	}
	return &engine{
		client: c,
		cfg:    *cfg,
		logger: logger,
	}
}

// confirmationRequired 需要二级索引确认的交易类型：
// 产生派生账本对象、其 ID 需要由 crawler 计算后才能展示的流程
var confirmationRequired = map[string]bool{
	"NFTokenMint":        true,
	"NFTokenCreateOffer": true,
	"NFTokenAcceptOffer": true,
	"URITokenMint":       true,
	"AMMCreate":          true,
}

// NeedsConfirmation 判断交易类型是否需要二级索引确认
// 大多数类型不需要：签名即成功
func (e *engine) NeedsConfirmation(txType string) bool {
	return confirmationRequired[txType]
}

// Confirm 执行确认轮询
//
// 阶段一：等待交易通过账本校验（固定间隔，次数+耗时双上限，
// 触顶后带 Delayed 标记乐观推进而不是阻塞）。
// 阶段二：等待二级索引追上交易所在账本（不按次数封顶，
// 由单调进展检查兜底：位置连续多次未前进视为停滞并定稿）。
func (e *engine) Confirm(ctx context.Context, txHash string) (*Result, error) {
	if txHash == "" {
		return nil, fmt.Errorf("transaction hash is empty")
	}

	result := &Result{}
	start := time.Now()
	var attempts []attempt

	txStats, err := Run(ctx, func(ctx context.Context, n int) (bool, uint64, error) {
		lookup, lerr := e.client.GetTransaction(ctx, txHash)
		if lerr != nil {
			return false, 0, lerr
		}
		rec := attempt{number: n, elapsed: time.Since(start)}
		if lookup.Validated && lookup.LedgerIndex > 0 {
			result.Validated = true
			result.LedgerIndex = lookup.LedgerIndex
			rec.ledger = lookup.LedgerIndex
			attempts = append(attempts, rec)
			return true, 0, nil
		}
		attempts = append(attempts, rec)
		return false, 0, nil
	}, Options{
		Interval:    e.cfg.TxInterval,
		MaxAttempts: e.cfg.TxMaxAttempts,
		MaxElapsed:  e.cfg.TxMaxElapsed,
	})
	result.TxAttempts = txStats.Attempts
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			// 校验等待触顶：签名本身已成功，乐观推进
			e.logger.Warn("transaction validation wait exhausted", "hash", txHash, "attempts", txStats.Attempts)
			result.Delayed = true
			e.logAttempts(txHash, attempts)
			return result, nil
		}
		return nil, err
	}

	if !result.Validated {
		result.Delayed = true
		return result, nil
	}

	indexStats, err := Run(ctx, func(ctx context.Context, n int) (bool, uint64, error) {
		status, serr := e.client.GetIndexStatus(ctx)
		if serr != nil {
			return false, 0, serr
		}
		rec := attempt{number: n, elapsed: time.Since(start), ledger: status.LedgerIndex}
		if status.LedgerIndex >= result.LedgerIndex {
			result.Indexed = true
			rec.indexed = true
			attempts = append(attempts, rec)
			return true, 0, nil
		}
		if result.LedgerIndex-status.LedgerIndex > e.cfg.LagThreshold {
			// 索引落后太多：后端此时直接服务新鲜数据，定稿
			attempts = append(attempts, rec)
			return true, 0, nil
		}
		attempts = append(attempts, rec)
		return false, uint64(status.LedgerIndex), nil
	}, Options{
		Interval:   e.cfg.IndexInterval,
		StallLimit: e.cfg.IndexStallLimit,
	})
	result.IndexAttempts = indexStats.Attempts
	if err != nil {
		if errors.Is(err, ErrStalled) {
			e.logger.Warn("index catch-up stalled", "hash", txHash, "ledger", result.LedgerIndex, "attempts", indexStats.Attempts)
			result.Delayed = true
			e.logAttempts(txHash, attempts)
			return result, nil
		}
		return nil, err
	}

	e.logAttempts(txHash, attempts)
	return result, nil
}

// logAttempts 调试输出探测序列后丢弃
func (e *engine) logAttempts(txHash string, attempts []attempt) {
	for _, a := range attempts {
		e.logger.Debug("confirmation attempt",
			"hash", txHash,
			"attempt", a.number,
			"elapsed_ms", a.elapsed.Milliseconds(),
			"ledger", a.ledger,
			"indexed", a.indexed,
		)
	}
}
