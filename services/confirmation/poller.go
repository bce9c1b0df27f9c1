package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// 有界轮询的统一退出原因
var (
	// ErrExhausted 达到次数或耗时上限（"放弃并乐观推进"出口）
	ErrExhausted = errors.New("poll attempts exhausted")

	// ErrStalled 进展位置连续多次未前进（防活锁出口）
	ErrStalled = errors.New("poll progress stalled")
)

// Probe 单次探测函数
//
// 返回值：
// - done: true 表示目标达成，轮询正常结束
// - pos: 进展位置（如索引处理到的账本号）；仅 Options.StallLimit > 0 时参与停滞检测
// - err: 本次探测失败；视为可重试，不会中断轮询
type Probe func(ctx context.Context, attempt int) (done bool, pos uint64, err error)

// Options 轮询参数
//
// 固定间隔 + 次数/耗时上限 + 停滞检测，三者组合出本仓库所有轮询场景：
// 交易校验等待、索引追赶、元数据加载
type Options struct {
	// Interval 两次探测之间的固定延迟
	Interval time.Duration

	// MaxAttempts 最大探测次数；0 表示不按次数封顶
	MaxAttempts int

	// MaxElapsed 墙钟耗时上限；0 表示不按耗时封顶
	MaxElapsed time.Duration

	// StallLimit 进展位置连续未前进（含回退）的容忍次数；0 表示不检测
	StallLimit int
}

// Stats 一次轮询的统计
type Stats struct {
	// Attempts 实际探测次数
	Attempts int

	// Elapsed 总耗时
	Elapsed time.Duration

	// LastErr 最后一次探测错误（正常结束时可能为 nil）
	LastErr error
}

// Run 执行有界轮询
//
// 立即执行第一次探测，之后按固定间隔重试。永不无限阻塞：
// 每次运行要么 done 正常结束（返回 nil），要么以
// ErrExhausted / ErrStalled / ctx 错误之一终止。
func Run(ctx context.Context, probe Probe, opts Options) (*Stats, error) {
	if probe == nil {
		return nil, fmt.Errorf("probe is nil")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if opts.MaxAttempts <= 0 && opts.MaxElapsed <= 0 && opts.StallLimit <= 0 {
		return nil, fmt.Errorf("poll must be bounded by attempts, elapsed time or stall limit")
	}

	start := time.Now()
	stats := &Stats{}

	var (
		lastPos    uint64
		posTracked bool
		stalled    int
	)

	for attempt := 1; ; attempt++ {
		stats.Attempts = attempt

		done, pos, err := probe(ctx, attempt)
		stats.LastErr = err
		stats.Elapsed = time.Since(start)
		if done {
			return stats, nil
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		// 停滞检测：位置未前进（包括回退和探测失败）都算停滞
		if opts.StallLimit > 0 {
			if err == nil && (!posTracked || pos > lastPos) {
				lastPos = pos
				posTracked = true
				stalled = 0
			} else {
				stalled++
				if stalled >= opts.StallLimit {
					return stats, ErrStalled
				}
			}
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return stats, ErrExhausted
		}
		if opts.MaxElapsed > 0 && time.Since(start) >= opts.MaxElapsed {
			return stats, ErrExhausted
		}

		select {
		case <-ctx.Done():
			stats.Elapsed = time.Since(start)
			return stats, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
