package refresh

import (
	"context"
	"time"
)

// 默认重试参数
const (
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxAttempts = 5
)

// Outcome 一轮轮询的结束原因
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
)

// Probe 第attempt次探测，返回是否已观察到期望的数据
type Probe func(ctx context.Context, attempt int) (bool, error)

// Policy 有界轮询策略
// 首次探测前等待BaseDelay，第n次探测失败后等待n×BaseDelay
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultPolicy 返回默认策略
func DefaultPolicy() Policy {
	return Policy{BaseDelay: DefaultBaseDelay, MaxAttempts: DefaultMaxAttempts}
}

func (p Policy) normalized() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Delay 第attempt次探测失败后到下一次探测的等待时间
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.normalized().BaseDelay
}

// Poll 按策略执行探测，直到匹配、次数用尽或ctx取消
// 探测返回错误与未匹配同样处理，onError用于记录错误
func (p Policy) Poll(ctx context.Context, probe Probe, onError func(attempt int, err error)) (Outcome, int) {
	p = p.normalized()

	if !sleep(ctx, p.BaseDelay) {
		return OutcomeCancelled, 0
	}

	for attempt := 1; ; attempt++ {
		matched, err := probe(ctx, attempt)
		if err != nil && onError != nil {
			onError(attempt, err)
		}
		if ctx.Err() != nil {
			return OutcomeCancelled, attempt
		}
		if err == nil && matched {
			return OutcomeMatched, attempt
		}
		if attempt >= p.MaxAttempts {
			return OutcomeExhausted, attempt
		}
		if !sleep(ctx, p.Delay(attempt)) {
			return OutcomeCancelled, attempt
		}
	}
}

// sleep 等待d，ctx取消时提前返回false
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
