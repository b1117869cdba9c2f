package tcpserver

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// AcceptLimiter 基于 Token Bucket 的接入速率限流器
type AcceptLimiter struct {
	limiter       *rate.Limiter
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewAcceptLimiter 创建接入限流器
// ratePerSec: 每秒允许的新连接数（稳定速率）
// burst: 突发容量（桶的大小）
func NewAcceptLimiter(ratePerSec int, burst int) *AcceptLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 100
	}
	if burst <= 0 {
		burst = ratePerSec * 2
	}

	return &AcceptLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Allow 检查是否允许接入（非阻塞）
func (l *AcceptLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowedCount.Add(1)
		return true
	}
	l.rejectedCount.Add(1)
	return false
}

// AllowedCount 允许的接入数（累计）
func (l *AcceptLimiter) AllowedCount() int64 { return l.allowedCount.Load() }

// RejectedCount 被拒绝的接入数（累计）
func (l *AcceptLimiter) RejectedCount() int64 { return l.rejectedCount.Load() }
