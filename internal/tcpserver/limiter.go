package tcpserver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// ConnectionLimiter 连接数限流器（基于 Semaphore）
type ConnectionLimiter struct {
	sem           chan struct{}
	timeout       time.Duration
	maxConn       int
	activeCount   atomic.Int64
	rejectedCount atomic.Int64
}

// NewConnectionLimiter 创建连接限流器
// maxConn: 最大并发连接数
// timeout: 获取连接许可的超时时间
func NewConnectionLimiter(maxConn int, timeout time.Duration) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = 5000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ConnectionLimiter{
		sem:     make(chan struct{}, maxConn),
		timeout: timeout,
		maxConn: maxConn,
	}
}

// Acquire 获取连接许可
func (l *ConnectionLimiter) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.activeCount.Add(1)
		return nil
	case <-ctx.Done():
		l.rejectedCount.Add(1)
		return fmt.Errorf("connection limit exceeded: max=%d", l.maxConn)
	}
}

// Release 释放连接许可
func (l *ConnectionLimiter) Release() {
	select {
	case <-l.sem:
		l.activeCount.Add(-1)
	default:
	}
}

// ActiveCount 当前活跃连接数
func (l *ConnectionLimiter) ActiveCount() int64 { return l.activeCount.Load() }

// RejectedCount 被拒绝的连接数（累计）
func (l *ConnectionLimiter) RejectedCount() int64 { return l.rejectedCount.Load() }
