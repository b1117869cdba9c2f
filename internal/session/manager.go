package session

import (
	"sync"
	"time"
)

// Option Manager 可选配置
type Option func(*Manager)

// WithNow 注入时间源（测试用）
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager 会话管理器：整数会话 ID -> 在线会话
type Manager struct {
	mu     sync.RWMutex
	byID   map[uint32]*Session
	nextID uint32
	now    func() time.Time
}

// NewManager 创建会话管理器
func NewManager(opts ...Option) *Manager {
	m := &Manager{byID: make(map[uint32]*Session), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach 为新连接创建会话并登记。send 为出站写回调。
func (m *Manager) Attach(remote string, send func([]byte) error) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &Session{
		id:          m.nextID,
		remote:      remote,
		now:         m.now,
		send:        send,
		nextAllowed: make(map[byte]time.Time),
	}
	m.byID[s.id] = s
	return s
}

// Detach 连接断开时移除会话。脚本侧残留的引用仍然安全，仅失去发送能力。
func (m *Manager) Detach(id uint32) {
	m.mu.Lock()
	s := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()
	if s != nil {
		s.detach()
	}
}

// Get 按 ID 解析在线会话
func (m *Manager) Get(id uint32) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.byID[id]
	m.mu.RUnlock()
	return s, ok
}

// Count 当前在线会话数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
