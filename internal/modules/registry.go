package modules

import "sync"

// Registry 绑定表：每个 opcode 至多一个 Module（可能未加载，即保留槽位）。
// 读（dispatch）并发，写（注册/清空）互斥。
type Registry struct {
	mu       sync.RWMutex
	bindings map[byte]*Module
}

// NewRegistry 创建空绑定表
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[byte]*Module)}
}

// Register 注册候选模块。
// 槽位已有未加载的同类别条目时就地合并（保留条目身份）；
// 已加载或类别不符时拒绝，已有绑定不受影响；
// 槽位为空时直接插入。kind 未配置的候选一律拒绝。
func (r *Registry) Register(candidate *Module) bool {
	if candidate == nil || candidate.kind == KindNone {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bindings[candidate.opcode]; ok {
		if !existing.loaded && existing.kind == candidate.kind {
			existing.merge(candidate)
			return true
		}
		return false
	}
	r.bindings[candidate.opcode] = candidate
	return true
}

// Lookup 返回 opcode 槽位上的条目。requireLoaded 为 true 时仅返回已加载条目；
// 为 false 时不论加载状态（注册阶段用来探测保留槽位）。
func (r *Registry) Lookup(opcode byte, requireLoaded bool) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.bindings[opcode]
	if !ok {
		return nil, false
	}
	if requireLoaded && !m.loaded {
		return nil, false
	}
	return m, true
}

// findRunnable 扫描绑定表，返回第一个匹配 opcode、已加载且 mayRun 放行的
// RecvByte 模块的脚本身份与延迟。命中即停：单次 dispatch 至多触发一个处理器。
func (r *Registry) findRunnable(opcode byte, mayRun func(byte) bool) (scriptID int, delay int16, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.bindings {
		if m.kind == KindRecvByte && m.opcode == opcode && m.loaded && mayRun(m.opcode) {
			return m.scriptID, m.delay, true
		}
	}
	return 0, 0, false
}

// Reinitializer 脚本运行时的重建生命周期
type Reinitializer interface {
	Reinitialize() error
}

// ClearAll 全量重载前的维护操作：先解除所有模块的脚本绑定（保留槽位），
// 再重建脚本运行时。顺序不可颠倒，避免条目残留指向已销毁执行上下文的身份。
func (r *Registry) ClearAll(rt Reinitializer) error {
	r.mu.Lock()
	for _, m := range r.bindings {
		m.clearBinding()
	}
	r.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Reinitialize()
}

// Info 绑定表条目快照（运维接口用）
type Info struct {
	Opcode byte   `json:"opcode"`
	Kind   string `json:"kind"`
	Delay  int16  `json:"delay"`
	Loaded bool   `json:"loaded"`
}

// Snapshot 导出当前绑定表
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.bindings))
	for _, m := range r.bindings {
		out = append(out, Info{Opcode: m.opcode, Kind: m.kind.String(), Delay: m.delay, Loaded: m.loaded})
	}
	return out
}

// Len 槽位数（含未加载）
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
