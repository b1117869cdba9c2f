package session

import (
	"errors"
	"sync"
	"time"
)

// ErrDetached 会话已与连接解绑，无法发送
var ErrDetached = errors.New("session: detached from connection")

// Session 单个客户端会话。生命周期由 Manager 管理；脚本侧可以跨调用
// 持有会话引用（共享所有权），解绑后仅发送能力失效。
type Session struct {
	id     uint32
	remote string
	now    func() time.Time

	mu          sync.Mutex
	send        func([]byte) error
	nextAllowed map[byte]time.Time // opcode -> 最早允许再次触发的时间
}

// ID 返回会话标识
func (s *Session) ID() uint32 { return s.id }

// RemoteAddr 返回对端地址（日志用）
func (s *Session) RemoteAddr() string { return s.remote }

// MayRun 判断 opcode 是否已过冷却，允许触发处理器
func (s *Session) MayRun(opcode byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.nextAllowed[opcode]
	if !ok {
		return true
	}
	return !s.now().Before(next)
}

// RecordFired 记录 opcode 于当前时刻触发，delay 为最小重触发间隔（ms）。
// delay<=0 表示不限流。
func (s *Session) RecordFired(opcode byte, delay int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delay <= 0 {
		delete(s.nextAllowed, opcode)
		return
	}
	s.nextAllowed[opcode] = s.now().Add(time.Duration(delay) * time.Millisecond)
}

// Send 向会话对应连接写出一帧原始数据
func (s *Session) Send(p []byte) error {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send == nil {
		return ErrDetached
	}
	return send(p)
}

func (s *Session) detach() {
	s.mu.Lock()
	s.send = nil
	s.mu.Unlock()
}
