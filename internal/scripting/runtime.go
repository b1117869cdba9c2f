package scripting

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"go.uber.org/zap"

	"github.com/odyssia-dev/realmgate/internal/session"
	"github.com/odyssia-dev/realmgate/internal/wire"
)

// ErrCallStackOverflow 脚本调用嵌套超过上限，本次调用被拒绝
var ErrCallStackOverflow = errors.New("scripting: call stack overflow")

// DefaultMaxCallDepth 默认嵌套上限
const DefaultMaxCallDepth = 8

// 处理器表在 Lua registry 中的键
const handlerTableField = "realmgate_handlers"

// Runtime 进程级 Lua 执行上下文。共享状态不支持并发调用，
// 所有脚本调用经 mu 串行化；depth 为有界重入计数，超限直接拒绝
// 而非排队，防止脚本嵌套压穿原生调用栈。
type Runtime struct {
	mu       sync.Mutex
	l        *lua.State
	logger   *zap.Logger
	maxDepth int
	depth    int

	nextID    int
	sources   map[int]string // scriptID -> 脚本来源（错误归因）
	currentID int
}

// NewRuntime 创建并初始化运行时。maxDepth<=0 取默认值。
func NewRuntime(maxDepth int, logger *zap.Logger) *Runtime {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{logger: logger, maxDepth: maxDepth}
	r.initState()
	return r
}

func (r *Runtime) initState() {
	l := lua.NewState()
	lua.OpenLibraries(l)
	registerSessionType(l)
	registerMessageType(l)
	l.NewTable()
	l.SetField(lua.RegistryIndex, handlerTableField)

	r.l = l
	r.depth = 0
	r.nextID = 0
	r.currentID = 0
	r.sources = make(map[int]string)
}

// Reinitialize 丢弃并重建 Lua 状态。既有脚本身份随旧状态一并作废，
// 调用方须先解除注册表中的绑定再调用。
func (r *Runtime) Reinitialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initState()
	return nil
}

// LoadHandler 编译并执行脚本文件，取其返回的处理函数存入处理器表，
// 返回脚本身份（1 起，0 保留为未绑定）。
func (r *Runtime) LoadHandler(path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.l.Top()
	defer r.l.SetTop(top)

	if err := lua.LoadFile(r.l, path, ""); err != nil {
		return 0, fmt.Errorf("load script %s: %w", path, err)
	}
	return r.storeHandler(path)
}

// LoadHandlerString 同 LoadHandler，但从内存块加载（测试与内置脚本用）
func (r *Runtime) LoadHandlerString(name, chunk string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	top := r.l.Top()
	defer r.l.SetTop(top)

	if err := lua.LoadBuffer(r.l, chunk, name, ""); err != nil {
		return 0, fmt.Errorf("load script %s: %w", name, err)
	}
	return r.storeHandler(name)
}

// storeHandler 运行栈顶的已编译 chunk，要求其返回一个函数
func (r *Runtime) storeHandler(source string) (int, error) {
	if err := r.l.ProtectedCall(0, 1, 0); err != nil {
		return 0, fmt.Errorf("run script %s: %w", source, err)
	}
	if r.l.TypeOf(-1) != lua.TypeFunction {
		return 0, fmt.Errorf("script %s must return a handler function", source)
	}

	r.nextID++
	id := r.nextID
	r.l.Field(lua.RegistryIndex, handlerTableField)
	r.l.Insert(-2)
	r.l.RawSetInt(-2, id)
	r.sources[id] = source
	return id, nil
}

// reserveCallSlot 占用一个重入槽位；已达上限时返回 false 且计数不变
func (r *Runtime) reserveCallSlot() bool {
	if r.depth >= r.maxDepth {
		return false
	}
	r.depth++
	return true
}

func (r *Runtime) releaseCallSlot() {
	r.depth--
}

// CallDepth 当前嵌套深度
func (r *Runtime) CallDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.depth
}

// ExecuteRecvByte 同步调用脚本处理函数，即发即忘，丢弃返回值。
// 参数生命周期：会话共享所有权，脚本可跨调用保留；
// 报文以借用视图传入，调用返回即失效；opcode 按值传入。
func (r *Runtime) ExecuteRecvByte(scriptID int, sess *session.Session, msg *wire.Message, opcode byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.reserveCallSlot() {
		r.logger.Error("call stack overflow, too many nested script calls",
			zap.Uint32("session_id", sess.ID()),
			zap.String("script", r.sources[scriptID]),
		)
		return ErrCallStackOverflow
	}
	defer r.releaseCallSlot()

	prev := r.currentID
	r.currentID = scriptID
	defer func() { r.currentID = prev }()

	top := r.l.Top()
	defer r.l.SetTop(top)

	r.l.Field(lua.RegistryIndex, handlerTableField)
	r.l.RawGetInt(-1, scriptID)
	r.l.Remove(-2)
	if r.l.TypeOf(-1) != lua.TypeFunction {
		return fmt.Errorf("scripting: handler %d not bound", scriptID)
	}

	pushSession(r.l, sess)
	view := msg.Borrow()
	defer view.Release()
	pushMessage(r.l, view)
	r.l.PushInteger(int(opcode))

	if err := r.l.ProtectedCall(3, 0, 0); err != nil {
		return fmt.Errorf("script %s: %w", r.sources[scriptID], err)
	}
	return nil
}
