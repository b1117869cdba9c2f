package modules

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 处理器类别。封闭枚举：注册表的冲突/合并逻辑只依赖类别相等性，
// 新类别加入不需要改动注册算法。
type Kind uint8

const (
	// KindNone 未配置
	KindNone Kind = iota
	// KindRecvByte 按入站 opcode 触发
	KindRecvByte
)

func (k Kind) String() string {
	switch k {
	case KindRecvByte:
		return "recvbyte"
	default:
		return "none"
	}
}

// KindFromString 解析类别标签，未知返回 KindNone
func KindFromString(s string) Kind {
	if strings.EqualFold(s, "recvbyte") {
		return KindRecvByte
	}
	return KindNone
}

var (
	// ErrMissingType 定义缺少 type 属性
	ErrMissingType = errors.New("modules: missing module type")
	// ErrMissingByte recvbyte 类别缺少 byte 属性
	ErrMissingByte = errors.New("modules: missing byte for recvbyte module")
)

// Module 一条 opcode -> 脚本函数绑定及其运行策略。
// opcode 与 kind 配置后不变；脚本身份与 loaded 可经热替换更新。
// 所有 Module 由 Registry 独占持有。
type Module struct {
	opcode   byte
	kind     Kind
	delay    int16
	scriptID int
	loaded   bool
}

// NewModule 创建未配置模块
func NewModule() *Module {
	return &Module{kind: KindNone}
}

// Configure 按属性集配置模块。失败不产生任何部分状态。
func (m *Module) Configure(def Def) error {
	kind := KindFromString(def.Type)
	if def.Type == "" {
		return ErrMissingType
	}
	if kind == KindNone {
		return fmt.Errorf("modules: invalid module type %q", def.Type)
	}
	if def.Byte == nil {
		return ErrMissingByte
	}
	if *def.Byte < 0 || *def.Byte > 0xFF {
		return fmt.Errorf("modules: byte %d out of range", *def.Byte)
	}
	if def.Delay < 0 || def.Delay > 0x7FFF {
		return fmt.Errorf("modules: delay %d out of range", def.Delay)
	}

	m.opcode = byte(*def.Byte)
	m.kind = kind
	m.delay = int16(def.Delay)
	return nil
}

// Bind 绑定脚本身份并标记已加载
func (m *Module) Bind(scriptID int) {
	m.scriptID = scriptID
	m.loaded = true
}

// Opcode 监听的 opcode
func (m *Module) Opcode() byte { return m.opcode }

// Kind 处理器类别
func (m *Module) Kind() Kind { return m.kind }

// Delay 最小重触发间隔（ms）
func (m *Module) Delay() int16 { return m.delay }

// ScriptID 绑定的脚本身份；loaded 为 false 时无意义
func (m *Module) ScriptID() int { return m.scriptID }

// Loaded 是否已绑定脚本
func (m *Module) Loaded() bool { return m.loaded }

// merge 就地合并：仅拷贝脚本绑定，保留对象身份，
// 使外部已持有的引用无需重新解析即可观察到更新。
func (m *Module) merge(from *Module) {
	m.scriptID = from.scriptID
	m.loaded = from.loaded
}

// clearBinding 解除脚本绑定，保留 opcode 槽位
func (m *Module) clearBinding() {
	m.scriptID = 0
	m.loaded = false
}
