// Package backoff 实现指数退避重连机制。
// 用于 WebSocket 断线重连时的延迟计算，避免频繁重连导致服务端拒绝。
// 默认参数：initial=1s，max=30s，multiplier=2.0，max_attempts=10。
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Backoff 指数退避计算器。
// 每次调用 Next() 返回下一次重试的等待时间：
//
//	delay = min(initial * multiplier^attempt, max)
//
// attempt 从 0 开始，每次 Next() 调用后自增。超过 maxAttempts 次连续失败后
// Exhausted() 返回 true，调用方应停止重连并保持 DISCONNECTED。
type Backoff struct {
	// initial 首次重试的基础等待时间
	initial time.Duration
	// max 等待时间上限
	max time.Duration
	// multiplier 每次失败后延迟的增长倍数
	multiplier float64
	// jitter 抖动比例（0-1），0 表示无抖动
	jitter float64
	// maxAttempts 连续失败次数上限，0 表示不限
	maxAttempts int
	// attempt 当前已用尽的重试次数
	attempt int
}

// New 创建新的退避计算器。
// 参数 initial: 首次延迟；max: 延迟上限；multiplier: 增长倍数；jitter: 抖动比例（0-1）。
func New(initial, max time.Duration, multiplier, jitter float64) *Backoff {
	return &Backoff{
		initial:    initial,
		max:        max,
		multiplier: multiplier,
		jitter:     jitter,
	}
}

// NewDefault 创建参考参数的退避计算器：initial=1s，max=30s，multiplier=2.0，
// 无抖动，max_attempts=10。
func NewDefault() *Backoff {
	b := New(time.Second, 30*time.Second, 2.0, 0)
	b.maxAttempts = 10
	return b
}

// WithMaxAttempts 设置连续失败次数上限，返回同一实例以便链式调用。
func (b *Backoff) WithMaxAttempts(n int) *Backoff {
	b.maxAttempts = n
	return b
}

// Next 获取下次重试的等待时间，并将内部重试计数自增一次。
func (b *Backoff) Next() time.Duration {
	scaled := float64(b.initial) * math.Pow(b.multiplier, float64(b.attempt))
	delay := time.Duration(scaled)

	if delay > b.max {
		delay = b.max
	}

	if b.jitter > 0 {
		jitterFactor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	b.attempt++

	return delay
}

// Reset 重置退避计算器。在连接成功（WebSocket 握手完成）后调用。
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前已用尽的重试次数。
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Exhausted 报告连续失败次数是否已达到上限；达到后调用方应停止重连。
func (b *Backoff) Exhausted() bool {
	return b.maxAttempts > 0 && b.attempt >= b.maxAttempts
}

// MaxAttempts 获取配置的连续失败次数上限。
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}
